// Package bus carries inbound platform messages to the turn loop.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"lunabot/internal/domain"
)

const (
	defaultBufferSize     = 100
	defaultPublishTimeout = 10 * time.Second
)

// InMemoryBus is a buffered Go channel with a bounded wait on publish.
type InMemoryBus struct {
	inbound chan domain.InboundMessage
	done    chan struct{}
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New creates a bus holding up to bufferSize undelivered messages.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		inbound: make(chan domain.InboundMessage, bufferSize),
		done:    make(chan struct{}),
		timeout: defaultPublishTimeout,
		logger:  logger,
	}
}

// Publish enqueues msg. When the buffer is full it waits up to the publish
// timeout, then drops the message with an error log.
func (b *InMemoryBus) Publish(msg domain.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("publish on closed bus", "chat_id", msg.ChatID)
		return
	}

	select {
	case b.inbound <- msg:
		return
	default:
	}

	b.logger.Warn("inbound bus full, waiting", "channel", msg.Channel, "chat_id", msg.ChatID)
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case b.inbound <- msg:
	case <-b.done:
		b.logger.Warn("bus closed while waiting, message dropped", "chat_id", msg.ChatID)
	case <-timer.C:
		b.logger.Error("message dropped: bus full",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"waited", b.timeout,
		)
	}
}

// Subscribe returns the inbound channel. It is closed by Close.
func (b *InMemoryBus) Subscribe() <-chan domain.InboundMessage {
	return b.inbound
}

// Close stops the bus. Blocked publishers are released first, then the
// inbound channel is closed so subscribers drain and exit.
func (b *InMemoryBus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)

		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		close(b.inbound)
	})
}
