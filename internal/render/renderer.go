// Package render turns dialogue-engine output into ordered platform sends.
package render

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"lunabot/internal/catalog"
	"lunabot/internal/domain"
	"lunabot/internal/metrics"
)

// loyaltyToken marks a dialogue turn that completes the loyalty flow.
var loyaltyToken = regexp.MustCompile(`(?i)\[LEALTAD_COMPLETA\]`)

// LoyaltyStarter starts the loyalty sequence for a conversation.
type LoyaltyStarter interface {
	StartLoyalty(chatID string)
}

// RendererConfig holds the dependencies of a Renderer.
type RendererConfig struct {
	Platform domain.Platform
	Cards    CardLookup     // default catalog.Default()
	Loyalty  LoyaltyStarter // optional
	ChunkLen int            // default MaxChunkLen
	Logger   *slog.Logger
}

// Renderer dispatches output events to the platform in order.
// It is best effort: a failed send is logged and the pass continues.
type Renderer struct {
	platform domain.Platform
	cards    CardLookup
	loyalty  LoyaltyStarter
	chunkLen int
	logger   *slog.Logger
}

// NewRenderer creates a renderer with the given configuration.
func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.ChunkLen <= 0 {
		cfg.ChunkLen = MaxChunkLen
	}
	if cfg.Cards == nil {
		cfg.Cards = catalog.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		platform: cfg.Platform,
		cards:    cfg.Cards,
		loyalty:  cfg.Loyalty,
		chunkLen: cfg.ChunkLen,
		logger:   cfg.Logger,
	}
}

// SetLoyalty wires the loyalty trigger after construction; the engagement
// scheduler and the renderer depend on each other.
func (r *Renderer) SetLoyalty(l LoyaltyStarter) {
	r.loyalty = l
}

// Render sends every event for chatID in order.
func (r *Renderer) Render(ctx context.Context, chatID string, events []domain.OutputEvent) {
	for _, evt := range events {
		switch evt.Type {
		case domain.EventText, domain.EventSpeak:
			r.RenderText(ctx, chatID, evt.Message)
		case domain.EventVisual:
			if evt.ImageURL != "" {
				r.sendImage(ctx, chatID, evt.ImageURL)
			}
		case domain.EventEnd:
			// Reserved for close-of-conversation behaviour.
		default:
			r.logger.Debug("ignoring output event", "chat_id", chatID, "type", evt.Raw)
		}
	}
}

// RenderText runs one free-text message through directive parsing and
// chunking and sends the result.
func (r *Renderer) RenderText(ctx context.Context, chatID, text string) {
	if text == "" {
		return
	}

	if loyaltyToken.MatchString(text) {
		text = loyaltyToken.ReplaceAllString(text, "")
		if r.loyalty != nil {
			r.logger.Info("loyalty flow completed", "chat_id", chatID)
			r.loyalty.StartLoyalty(chatID)
		}
	}

	for _, seg := range ParseDirectives(text, r.cards, r.logger) {
		switch seg.Kind {
		case SegmentText:
			for _, chunk := range Chunk(strings.TrimSpace(seg.Content), r.chunkLen) {
				r.sendText(ctx, chatID, chunk)
			}
		case SegmentImage:
			r.sendImage(ctx, chatID, seg.URL)
		}
	}
}

func (r *Renderer) sendText(ctx context.Context, chatID, text string) {
	if err := r.platform.SendText(ctx, chatID, text, true); err != nil {
		metrics.SendFailures.Inc()
		r.logger.Error("text send failed", "chat_id", chatID, "len", len(text), "err", err)
		return
	}
	metrics.TextSends.Inc()
}

func (r *Renderer) sendImage(ctx context.Context, chatID, url string) {
	if err := r.platform.SendImage(ctx, chatID, url); err != nil {
		metrics.SendFailures.Inc()
		r.logger.Error("image send failed", "chat_id", chatID, "url", url, "err", err)
		return
	}
	metrics.ImageSends.Inc()
}
