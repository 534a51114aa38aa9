/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_signage/internal/events"
)

func newRedisBus(t *testing.T, addr, node string) *RedisBus {
	t.Helper()
	cfg := DefaultRedisConfig()
	cfg.Addr = addr
	bus, err := NewRedisBus(cfg, node, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func receive(t *testing.T, sub events.Subscriber) events.Payload {
	t.Helper()
	select {
	case p := <-sub:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRedisBusCrossNodeDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newRedisBus(t, mr.Addr(), "node-a")
	b := newRedisBus(t, mr.Addr(), "node-b")

	subA := a.Subscribe(events.EventPlaylistUpdated)
	subB := b.Subscribe(events.EventPlaylistUpdated)

	a.Publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": "p1"})

	if got := receive(t, subA).String("playlist_id"); got != "p1" {
		t.Fatalf("local delivery: got %q", got)
	}
	if got := receive(t, subB).String("playlist_id"); got != "p1" {
		t.Fatalf("remote delivery: got %q", got)
	}

	// The publisher must not see its own message twice.
	select {
	case p := <-subA:
		t.Fatalf("echo delivered: %v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisBusFallsBackWhenUnreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	bus, err := NewRedisBus(cfg, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer bus.Close()

	if bus.NodeID() == "" {
		t.Fatal("expected generated node id")
	}
	sub := bus.Subscribe(events.EventMediaDeleted)
	bus.Publish(events.EventMediaDeleted, events.Payload{"media_id": "m1"})
	if got := receive(t, sub).String("media_id"); got != "m1" {
		t.Fatalf("got %q", got)
	}
}

func TestRedisBusUnsubscribeClosesChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	bus := newRedisBus(t, mr.Addr(), "node-a")

	sub := bus.Subscribe(events.EventDeviceUpdated)
	bus.Unsubscribe(events.EventDeviceUpdated, sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed subscriber")
	}
	bus.mu.Lock()
	_, open := bus.channels[events.EventDeviceUpdated]
	bus.mu.Unlock()
	if open {
		t.Fatal("redis subscription should be closed with last subscriber")
	}
}

func TestRelayDeliverSkipsOwnMessages(t *testing.T) {
	r := newRelay("nats", "self", zerolog.Nop())
	sub := r.local.Subscribe(events.EventMediaUpdated)

	own, err := encodeEnvelope(events.EventMediaUpdated, events.Payload{"media_id": "own"}, "self")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r.deliver(events.EventMediaUpdated, own)

	remote, err := encodeEnvelope(events.EventMediaUpdated, events.Payload{"media_id": "remote"}, "other")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r.deliver(events.EventMediaUpdated, remote)
	r.deliver(events.EventMediaUpdated, []byte("not json"))

	if got := receive(t, sub).String("media_id"); got != "remote" {
		t.Fatalf("got %q want remote", got)
	}
	select {
	case p := <-sub:
		t.Fatalf("unexpected extra delivery: %v", p)
	default:
	}
}

func TestEnvelopeCarriesUniqueID(t *testing.T) {
	a, _ := encodeEnvelope(events.EventMediaCreated, events.Payload{}, "n")
	b, _ := encodeEnvelope(events.EventMediaCreated, events.Payload{}, "n")
	ea, err := decodeEnvelope(a)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	eb, _ := decodeEnvelope(b)
	if ea.ID == "" || ea.ID == eb.ID {
		t.Fatalf("envelope ids: %q %q", ea.ID, eb.ID)
	}
	if ea.EventType != events.EventMediaCreated || ea.NodeID != "n" {
		t.Fatalf("envelope: %+v", ea)
	}
}

func TestNATSBusUnreachableDeliversLocally(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 100 * time.Millisecond
	bus, err := NewNATSBus(cfg, "", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewNATSBus: %v", err)
	}
	defer bus.Close()

	sub := bus.Subscribe(events.EventDeviceDeleted)
	bus.Publish(events.EventDeviceDeleted, events.Payload{"device_id": "d1"})
	if got := receive(t, sub).String("device_id"); got != "d1" {
		t.Fatalf("got %q", got)
	}
}
