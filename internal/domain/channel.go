package domain

import "context"

// Channel is a user-facing chat transport that feeds the bus.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}

// Platform is the outbound side of a chat transport.
// Every method is independently fallible; errors wrap ErrSendFailed.
type Platform interface {
	SendText(ctx context.Context, chatID, text string, formatted bool) error
	SendImage(ctx context.Context, chatID, url string) error
	ShowComposing(ctx context.Context, chatID string) error
}
