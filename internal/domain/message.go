package domain

import "time"

// ContentKind classifies what an inbound platform message carried.
type ContentKind string

const (
	KindText     ContentKind = "text"
	KindPhoto    ContentKind = "photo"
	KindDocument ContentKind = "document"
	KindSticker  ContentKind = "sticker"
	KindVoice    ContentKind = "voice"
	KindAudio    ContentKind = "audio"
	KindOther    ContentKind = "other"
)

// InboundMessage is one user message received from a channel.
type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	Content   string      // literal text, empty for non-text messages
	Kind      ContentKind // what the message carried
	Timestamp time.Time
}
