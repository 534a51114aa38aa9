package playlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/store"
	"github.com/rs/zerolog"
)

type fakeSource struct {
	meta    map[string]content.PlaylistMeta
	entries map[string][]content.Entry
	media   map[string]content.MediaItem
	err     error
}

func (f *fakeSource) PlaylistByID(_ context.Context, id string) (content.PlaylistMeta, error) {
	if f.err != nil {
		return content.PlaylistMeta{}, f.err
	}
	m, ok := f.meta[id]
	if !ok {
		return content.PlaylistMeta{}, store.ErrNotFound
	}
	return m, nil
}

func (f *fakeSource) PlaylistEntries(_ context.Context, id string) ([]content.Entry, error) {
	return f.entries[id], nil
}

func (f *fakeSource) MediaByIDs(_ context.Context, ids []string) (map[string]content.MediaItem, error) {
	out := map[string]content.MediaItem{}
	for _, id := range ids {
		if m, ok := f.media[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func TestLoadOrdersByPositionAndDropsDangling(t *testing.T) {
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	src := &fakeSource{
		meta: map[string]content.PlaylistMeta{"p1": {ID: "p1", Name: "Lobby", UpdatedAt: updated}},
		entries: map[string][]content.Entry{"p1": {
			{Position: 3, MediaID: "c"},
			{Position: 1, MediaID: "a"},
			{Position: 2, MediaID: "deleted"},
			{Position: 4, MediaID: "a"},
		}},
		media: map[string]content.MediaItem{
			"a": {ID: "a", Kind: content.KindImage},
			"c": {ID: "c", Kind: content.KindNews},
		},
	}

	p, err := NewLoader(src, zerolog.Nop()).Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []string{"a", "c", "a"}
	if p.Len() != len(want) {
		t.Fatalf("len: got %d want %d", p.Len(), len(want))
	}
	for i, item := range p.Items {
		if item.ID != want[i] {
			t.Fatalf("item %d: got %s want %s", i, item.ID, want[i])
		}
	}
	if !p.UpdatedAt.Equal(updated) || p.Name != "Lobby" {
		t.Fatalf("meta not carried: %+v", p.PlaylistMeta)
	}
}

func TestLoadEmptyPlaylistIsValid(t *testing.T) {
	src := &fakeSource{
		meta:    map[string]content.PlaylistMeta{"p1": {ID: "p1"}},
		entries: map[string][]content.Entry{"p1": {{Position: 1, MediaID: "gone"}}},
	}

	p, err := NewLoader(src, zerolog.Nop()).Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !p.Empty() {
		t.Fatalf("expected empty playlist, got %d items", p.Len())
	}
}

func TestLoadMissingPlaylist(t *testing.T) {
	l := NewLoader(&fakeSource{}, zerolog.Nop())
	if _, err := l.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}

	boom := errors.New("timeout")
	l = NewLoader(&fakeSource{err: boom}, zerolog.Nop())
	_, err := l.Load(context.Background(), "p1")
	if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v want wrapped transport error", err)
	}
}
