package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/store"
	"github.com/rs/zerolog"
)

type fakeLookup struct {
	devices   map[string]content.Device
	lookups   []string
	touched   []string
	touchErr  error
	lookupErr error
}

func (f *fakeLookup) DeviceByToken(_ context.Context, token string) (content.Device, error) {
	f.lookups = append(f.lookups, token)
	if f.lookupErr != nil {
		return content.Device{}, f.lookupErr
	}
	dev, ok := f.devices[token]
	if !ok {
		return content.Device{}, store.ErrNotFound
	}
	return dev, nil
}

func (f *fakeLookup) UpdateDeviceLastActive(_ context.Context, id string, _ time.Time) error {
	f.touched = append(f.touched, id)
	return f.touchErr
}

func TestResolveBlankTokenSkipsLookup(t *testing.T) {
	lookup := &fakeLookup{}
	r := NewResolver(lookup, zerolog.Nop())

	for _, token := range []string{"", "   ", "\t\n"} {
		if _, err := r.Resolve(context.Background(), token); !errors.Is(err, ErrNotFound) {
			t.Fatalf("token %q: got %v want ErrNotFound", token, err)
		}
	}
	if len(lookup.lookups) != 0 {
		t.Fatalf("expected no store lookups, got %v", lookup.lookups)
	}
}

func TestResolveTrimsToken(t *testing.T) {
	lookup := &fakeLookup{devices: map[string]content.Device{"abc": {ID: "d1", Token: "abc"}}}
	r := NewResolver(lookup, zerolog.Nop())

	dev, err := r.Resolve(context.Background(), "  abc ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dev.ID != "d1" {
		t.Fatalf("device: got %+v", dev)
	}
	if lookup.lookups[0] != "abc" {
		t.Fatalf("lookup token: got %q want abc", lookup.lookups[0])
	}
}

func TestResolvePropagatesTransportErrors(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewResolver(&fakeLookup{lookupErr: boom}, zerolog.Nop())

	_, err := r.Resolve(context.Background(), "abc")
	if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v want transport error", err)
	}
}

func TestMarkActiveIsBestEffort(t *testing.T) {
	lookup := &fakeLookup{touchErr: errors.New("read only")}
	r := NewResolver(lookup, zerolog.Nop())

	r.MarkActive(context.Background(), content.Device{ID: "d1"})
	if len(lookup.touched) != 1 || lookup.touched[0] != "d1" {
		t.Fatalf("touched: got %v", lookup.touched)
	}
}
