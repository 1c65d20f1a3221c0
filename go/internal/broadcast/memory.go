package broadcast

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-node dev runs. Every
// channel handle with the same name sees every send, including the sender's
// own handle, mirroring the self-echo behavior of the production transport.
// Delivery is synchronous, which keeps tests deterministic.
type MemoryBus struct {
	mu       sync.Mutex
	channels map[string][]*memoryChannel
	closed   bool
}

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{channels: make(map[string][]*memoryChannel)}
}

func (b *MemoryBus) Channel(name string) Channel {
	return &memoryChannel{bus: b, name: name, handlers: make(map[string][]Handler)}
}

func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.channels = make(map[string][]*memoryChannel)
}

func (b *MemoryBus) dispatch(name, event string, data []byte) {
	b.mu.Lock()
	subscribers := make([]*memoryChannel, len(b.channels[name]))
	copy(subscribers, b.channels[name])
	b.mu.Unlock()

	for _, ch := range subscribers {
		ch.deliver(event, data)
	}
}

type memoryChannel struct {
	bus  *MemoryBus
	name string

	mu         sync.Mutex
	handlers   map[string][]Handler
	subscribed bool
}

func (c *memoryChannel) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	c.bus.mu.Lock()
	closed := c.bus.closed
	c.bus.mu.Unlock()
	if closed {
		return fmt.Errorf("send %s: bus closed", event)
	}
	c.bus.dispatch(c.name, event, data)
	return nil
}

func (c *memoryChannel) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

func (c *memoryChannel) Subscribe() error {
	c.mu.Lock()
	c.subscribed = true
	c.mu.Unlock()

	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	for _, existing := range c.bus.channels[c.name] {
		if existing == c {
			return nil
		}
	}
	c.bus.channels[c.name] = append(c.bus.channels[c.name], c)
	return nil
}

func (c *memoryChannel) Unsubscribe() {
	c.mu.Lock()
	c.subscribed = false
	c.mu.Unlock()

	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	subs := c.bus.channels[c.name]
	for i, existing := range subs {
		if existing == c {
			c.bus.channels[c.name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

func (c *memoryChannel) deliver(event string, data []byte) {
	c.mu.Lock()
	if !c.subscribed {
		c.mu.Unlock()
		return
	}
	handlers := make([]Handler, len(c.handlers[event]))
	copy(handlers, c.handlers[event])
	c.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}
