package domain

// MessageBus routes inbound messages from channels to the turn loop.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	Close()
}
