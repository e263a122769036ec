// Package provider implements the dialogue-engine clients.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lunabot/internal/domain"
	"lunabot/internal/metrics"
)

const defaultVoiceflowBase = "https://general-runtime.voiceflow.com"

// Voiceflow implements domain.Engine against the Voiceflow Dialog API.
type Voiceflow struct {
	apiKey    string
	versionID string
	apiBase   string
	client    *http.Client
	logger    *slog.Logger
}

// VoiceflowConfig configures a Voiceflow client.
type VoiceflowConfig struct {
	APIKey    string
	VersionID string
	APIBase   string        // default general-runtime
	Timeout   time.Duration // whole request, default 30s
	Client    *http.Client  // optional, overrides Timeout
	Logger    *slog.Logger
}

// NewVoiceflow creates a client, filling in the default base URL and HTTP client.
func NewVoiceflow(cfg VoiceflowConfig) *Voiceflow {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultVoiceflowBase
	}
	if cfg.Client == nil {
		cfg.Client = newHTTPClient(cfg.Timeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Voiceflow{
		apiKey:    cfg.APIKey,
		versionID: cfg.VersionID,
		apiBase:   strings.TrimRight(cfg.APIBase, "/"),
		client:    cfg.Client,
		logger:    cfg.Logger,
	}
}

func (v *Voiceflow) Name() string { return "voiceflow" }

type vfRequest struct {
	Request vfAction `json:"request"`
	Config  vfConfig `json:"config"`
}

type vfAction struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

type vfConfig struct {
	TTS       bool `json:"tts"`
	StripSSML bool `json:"stripSSML"`
}

type vfTrace struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type vfPayload struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

func (v *Voiceflow) interactURL(conversationID string) string {
	return fmt.Sprintf("%s/state/%s/user/%s/interact",
		v.apiBase, url.PathEscape(v.versionID), url.PathEscape(conversationID))
}

// Interact sends one text turn and returns the ordered output events.
// Any failure wraps domain.ErrEngineUnavailable; nothing is retried.
func (v *Voiceflow) Interact(ctx context.Context, conversationID, text string) ([]domain.OutputEvent, error) {
	start := time.Now()
	defer metrics.EngineLatency.ObserveSince(start)

	jsonBody, err := json.Marshal(vfRequest{
		Request: vfAction{Type: "text", Payload: text},
		Config:  vfConfig{TTS: false, StripSSML: true},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", domain.ErrEngineUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.interactURL(conversationID), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %v", domain.ErrEngineUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", v.apiKey)

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: voiceflow request: %v", domain.ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: voiceflow %d: %s", domain.ErrEngineUnavailable, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var traces []vfTrace
	if err := json.NewDecoder(resp.Body).Decode(&traces); err != nil {
		return nil, fmt.Errorf("%w: decode traces: %v", domain.ErrEngineUnavailable, err)
	}

	events := make([]domain.OutputEvent, 0, len(traces))
	for _, tr := range traces {
		events = append(events, v.toEvent(tr))
	}

	v.logger.Debug("voiceflow interact",
		"conversation_id", conversationID,
		"traces", len(traces),
		"duration", time.Since(start),
	)
	return events, nil
}

// toEvent maps a trace to an output event. Payloads of types the relay does
// not render are never decoded, since their shape varies.
func (v *Voiceflow) toEvent(tr vfTrace) domain.OutputEvent {
	evt := domain.OutputEvent{Raw: tr.Type}

	switch tr.Type {
	case "text":
		evt.Type = domain.EventText
	case "speak":
		evt.Type = domain.EventSpeak
	case "visual":
		evt.Type = domain.EventVisual
	case "end":
		evt.Type = domain.EventEnd
		return evt
	default:
		evt.Type = domain.EventOther
		return evt
	}

	var p vfPayload
	if len(tr.Payload) > 0 {
		if err := json.Unmarshal(tr.Payload, &p); err != nil {
			v.logger.Warn("unreadable trace payload", "type", tr.Type, "err", err)
		}
	}
	evt.Message = p.Message
	evt.ImageURL = p.Image
	return evt
}
