package bus

import (
	"log"
	"sync"
)

// MessageBus connects channel adapters to the gateway. Inbound messages from
// every channel funnel into a single buffered channel; outbound messages are
// dispatched to the subscriber registered for their channel name.
type MessageBus struct {
	Inbound chan InboundMessage

	mu          sync.RWMutex
	subscribers map[string]func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &MessageBus{
		Inbound:     make(chan InboundMessage, bufSize),
		subscribers: make(map[string]func(OutboundMessage)),
	}
}

func (b *MessageBus) SubscribeOutbound(channel string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = fn
}

func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.mu.RLock()
	fn := b.subscribers[msg.Channel]
	b.mu.RUnlock()

	if fn == nil {
		log.Printf("[bus] no outbound subscriber for channel %q", msg.Channel)
		return
	}
	fn(msg)
}
