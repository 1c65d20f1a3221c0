package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS-backed bus.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the default NATS bus configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSBus implements Bus over core NATS pub/sub. Core NATS matches the
// channel contract exactly: at-most-once, unordered across receivers, and
// the publisher's own subscriptions hear its publishes.
type NATSBus struct {
	nc *nats.Conn
}

// NewNATSBus connects to NATS and returns a bus over the connection.
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSBus{nc: nc}, nil
}

func (b *NATSBus) Channel(name string) Channel {
	return &natsChannel{
		nc:       b.nc,
		name:     subjectToken(name),
		handlers: make(map[string][]Handler),
	}
}

func (b *NATSBus) Close() {
	b.nc.Close()
}

type natsChannel struct {
	nc   *nats.Conn
	name string

	mu         sync.Mutex
	handlers   map[string][]Handler
	subs       []*nats.Subscription
	subscribed bool
}

func (c *natsChannel) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	if err := c.nc.Publish(c.subject(event), data); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

func (c *natsChannel) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
	if c.subscribed {
		if err := c.subscribeEvent(event, h); err != nil {
			log.Warn().Err(err).Str("channel", c.name).Str("event", event).
				Msg("late handler subscribe failed")
		}
	}
}

func (c *natsChannel) Subscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribed {
		return nil
	}
	for event, hs := range c.handlers {
		for _, h := range hs {
			if err := c.subscribeEvent(event, h); err != nil {
				return err
			}
		}
	}
	c.subscribed = true
	return nil
}

// subscribeEvent must be called with c.mu held.
func (c *natsChannel) subscribeEvent(event string, h Handler) error {
	sub, err := c.nc.Subscribe(c.subject(event), func(m *nats.Msg) {
		h(m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s.%s: %w", c.name, event, err)
	}
	c.subs = append(c.subs, sub)
	return nil
}

func (c *natsChannel) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("channel", c.name).Msg("unsubscribe failed")
		}
	}
	c.subs = nil
	c.subscribed = false
}

func (c *natsChannel) subject(event string) string {
	return c.name + "." + subjectToken(event)
}

// subjectToken keeps channel and event names legal as NATS subject tokens.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
