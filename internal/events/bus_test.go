package events

import "testing"

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(EventPlaylistUpdated)
	b := bus.Subscribe(EventPlaylistUpdated)
	other := bus.Subscribe(EventMediaDeleted)

	bus.Publish(EventPlaylistUpdated, Payload{"playlist_id": "p1"})

	for _, sub := range []Subscriber{a, b} {
		select {
		case got := <-sub:
			if got.String("playlist_id") != "p1" {
				t.Fatalf("payload: got %v", got)
			}
		default:
			t.Fatal("expected delivery")
		}
	}
	select {
	case got := <-other:
		t.Fatalf("unexpected delivery to other type: %v", got)
	default:
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventMediaUpdated)
	for i := 0; i < cap(sub)+10; i++ {
		bus.Publish(EventMediaUpdated, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("buffer: got %d want %d", len(sub), cap(sub))
	}
}

func TestBusUnsubscribeClosesOnce(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventDeviceUpdated)

	bus.Unsubscribe(EventDeviceUpdated, sub)
	bus.Unsubscribe(EventDeviceUpdated, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	if bus.Count(EventDeviceUpdated) != 0 {
		t.Fatalf("count: got %d want 0", bus.Count(EventDeviceUpdated))
	}
	bus.Publish(EventDeviceUpdated, Payload{})
}

func TestPayloadString(t *testing.T) {
	p := Payload{"s": "x", "n": 3}
	if p.String("s") != "x" || p.String("n") != "" || p.String("missing") != "" {
		t.Fatalf("unexpected lookups: %q %q", p.String("s"), p.String("n"))
	}
}
