// Package agent runs the turn loop: each inbound platform message becomes
// one dialogue-engine call whose output is rendered back to the user.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lunabot/internal/domain"
	"lunabot/internal/metrics"
)

const defaultConcurrency = 3

// ApologyText is sent, once, when the dialogue engine cannot be reached.
const ApologyText = "✨ Mi luz, algo no funcionó bien al conectar con mi energía. Intenta de nuevo en un momento por favor 🌙💚"

// Renderer delivers engine output for one conversation.
type Renderer interface {
	Render(ctx context.Context, chatID string, events []domain.OutputEvent)
}

// Engagement is notified of every user turn.
type Engagement interface {
	Touch(chatID string)
}

// Loop is the turn orchestrator.
type Loop struct {
	engine      domain.Engine
	platform    domain.Platform
	renderer    Renderer
	engagement  Engagement
	bus         domain.MessageBus
	logger      *slog.Logger
	concurrency int
}

// LoopConfig holds the dependencies of the turn loop.
type LoopConfig struct {
	Engine      domain.Engine
	Platform    domain.Platform
	Renderer    Renderer
	Engagement  Engagement // optional
	Bus         domain.MessageBus
	Logger      *slog.Logger
	Concurrency int // max turns in flight (default 3)
}

// NewLoop creates a turn loop. Concurrency below 1 falls back to the default.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		engine:      cfg.Engine,
		platform:    cfg.Platform,
		renderer:    cfg.Renderer,
		engagement:  cfg.Engagement,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run consumes inbound messages with bounded concurrency until ctx is
// cancelled or the bus closes, then waits for turns in flight.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("turn loop started", "engine", l.engine.Name(), "concurrency", l.concurrency)

	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("turn loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, turn loop stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func(m domain.InboundMessage) {
				defer wg.Done()
				defer func() { <-sem }()
				l.HandleTurn(ctx, m)
			}(msg)
		}
	}
}

// HandleTurn processes one inbound message. The user sees either the
// rendered engine output or exactly one apology.
func (l *Loop) HandleTurn(ctx context.Context, msg domain.InboundMessage) {
	start := time.Now()
	logger := l.logger.With("turn_id", uuid.NewString(), "chat_id", msg.ChatID)
	metrics.TurnsTotal.Inc()

	text := DescribeInbound(msg)
	logger.Info("turn started", "kind", msg.Kind, "text_len", len(text))

	if l.engagement != nil {
		l.engagement.Touch(msg.ChatID)
	}

	if err := l.platform.ShowComposing(ctx, msg.ChatID); err != nil {
		logger.Warn("composing indicator failed", "err", err)
	}

	events, err := l.engine.Interact(ctx, msg.ChatID, text)
	if err != nil {
		metrics.EngineErrors.Inc()
		logger.Error("dialogue engine failed", "engine", l.engine.Name(), "err", err)
		if err := l.platform.SendText(ctx, msg.ChatID, ApologyText, false); err != nil {
			metrics.SendFailures.Inc()
			logger.Error("apology send failed", "err", err)
		}
		return
	}

	l.renderer.Render(ctx, msg.ChatID, events)
	logger.Info("turn finished", "events", len(events), "duration", time.Since(start))
}
