package broadcast

import "testing"

func TestMemoryBusSelfEcho(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ch := bus.Channel("room")
	var got []string
	ch.On("ping", func(data []byte) { got = append(got, string(data)) })
	if err := ch.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := ch.Send("ping", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(got) != 1 || got[0] != `"hello"` {
		t.Fatalf("got %v, want the sender's own handle to hear its publish", got)
	}
}

func TestMemoryBusFansOutPerChannel(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	a := bus.Channel("room")
	b := bus.Channel("room")
	other := bus.Channel("elsewhere")

	var aGot, bGot, otherGot int
	a.On("ev", func([]byte) { aGot++ })
	b.On("ev", func([]byte) { bGot++ })
	other.On("ev", func([]byte) { otherGot++ })
	for _, ch := range []Channel{a, b, other} {
		if err := ch.Subscribe(); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	if err := a.Send("ev", 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if aGot != 1 || bGot != 1 {
		t.Fatalf("same-channel delivery = %d/%d, want 1/1", aGot, bGot)
	}
	if otherGot != 0 {
		t.Fatalf("cross-channel leak: %d", otherGot)
	}
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	sender := bus.Channel("room")
	if err := sender.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	receiver := bus.Channel("room")
	var got int
	receiver.On("ev", func([]byte) { got++ })
	if err := receiver.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	receiver.Unsubscribe()
	if err := sender.Send("ev", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got != 0 {
		t.Fatalf("delivery after unsubscribe: %d", got)
	}
}

func TestMemoryBusEventsAreIndependent(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ch := bus.Channel("room")
	var pings, pongs int
	ch.On("ping", func([]byte) { pings++ })
	ch.On("pong", func([]byte) { pongs++ })
	if err := ch.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := ch.Send("ping", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if pings != 1 || pongs != 0 {
		t.Fatalf("ping/pong = %d/%d, want 1/0", pings, pongs)
	}
}
