// Package broadcast provides the fan-out transport the sync core runs on:
// named logical channels with fire-and-forget sends and push delivery.
// There is no delivery guarantee and no ordering guarantee across receivers;
// senders receive their own sends (self-echo). Durability lives elsewhere.
package broadcast

// Handler receives the raw payload of one event delivery.
type Handler func(payload []byte)

// Channel is one logical broadcast channel.
type Channel interface {
	// Send publishes payload (JSON-marshaled) under the given event name.
	// Fire-and-forget: an error means the local send failed, never that a
	// peer missed it.
	Send(event string, payload any) error

	// On registers a push handler for an event name. Handlers registered
	// before Subscribe become live when Subscribe is called; handlers
	// registered afterwards become live immediately.
	On(event string, h Handler)

	// Subscribe activates delivery for all registered handlers.
	Subscribe() error

	// Unsubscribe tears down delivery for this channel handle.
	Unsubscribe()
}

// Bus hands out channels by name. Two handles for the same name reach the
// same set of peers.
type Bus interface {
	Channel(name string) Channel
	Close()
}
