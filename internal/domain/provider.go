package domain

import "context"

// EventType classifies a single dialogue-engine output event.
type EventType string

const (
	EventText   EventType = "text"
	EventSpeak  EventType = "speak"
	EventVisual EventType = "visual"
	EventEnd    EventType = "end"
	EventOther  EventType = "other"
)

// OutputEvent is one step of a dialogue-engine response.
// Order within a response is significant.
type OutputEvent struct {
	Type     EventType
	Message  string // text and speak events
	ImageURL string // visual events
	Raw      string // original engine type name, kept for logging
}

// Engine is the remote dialogue engine.
type Engine interface {
	Name() string
	// Interact sends one user turn and returns the ordered output events.
	// Failures wrap ErrEngineUnavailable.
	Interact(ctx context.Context, conversationID, text string) ([]OutputEvent, error)
}
