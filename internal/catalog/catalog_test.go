package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_signage/internal/db"
	"github.com/friendsincode/grimnir_signage/internal/events"
	"github.com/friendsincode/grimnir_signage/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *events.Bus) {
	t.Helper()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{NowFunc: tick})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := events.NewBus()
	svc := NewService(database, bus, zerolog.Nop())
	svc.now = tick
	return svc, database, bus
}

func mustMedia(t *testing.T, svc *Service, title string) models.MediaItem {
	t.Helper()
	m, err := svc.CreateMedia(context.Background(), MediaInput{Title: title, Kind: "image", Content: "https://cdn.example.com/" + title + ".png", Duration: 5})
	if err != nil {
		t.Fatalf("create media %s: %v", title, err)
	}
	return m
}

func mustPlaylist(t *testing.T, svc *Service, name string, media ...models.MediaItem) models.Playlist {
	t.Helper()
	ctx := context.Background()
	p, err := svc.CreatePlaylist(ctx, PlaylistInput{Name: name})
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}
	for _, m := range media {
		if _, err := svc.AddMedia(ctx, p.ID, m.ID); err != nil {
			t.Fatalf("add media: %v", err)
		}
	}
	return p
}

func playlistUpdatedAt(t *testing.T, database *gorm.DB, id string) time.Time {
	t.Helper()
	var p models.Playlist
	if err := database.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("load playlist: %v", err)
	}
	return p.UpdatedAt
}

func mediaIDs(d PlaylistDetail) []string {
	out := make([]string, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.Media.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateMediaValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    MediaInput
		field string
	}{
		{"unknown type", MediaInput{Title: "x", Kind: "audio", Content: "x"}, "type"},
		{"blank title", MediaInput{Title: "  ", Kind: "image", Content: "x"}, "title"},
		{"blank content", MediaInput{Title: "x", Kind: "news", Content: ""}, "content"},
		{"negative duration", MediaInput{Title: "x", Kind: "video", Content: "x", Duration: -1}, "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateMedia(ctx, tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("got %v want validation error on %s", err, tt.field)
			}
		})
	}

	m, err := svc.CreateMedia(ctx, MediaInput{Title: " Welcome ", Kind: "NEWS", Content: "<h1>hi</h1>"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Kind != models.MediaNews || m.Title != "Welcome" || m.ID == "" {
		t.Fatalf("created: got %+v", m)
	}
}

func TestAddMediaAppendsAndBumps(t *testing.T) {
	svc, database, bus := newTestService(t)
	ctx := context.Background()
	updates := bus.Subscribe(events.EventPlaylistUpdated)

	a, b := mustMedia(t, svc, "a"), mustMedia(t, svc, "b")
	p := mustPlaylist(t, svc, "Lobby", a)
	before := playlistUpdatedAt(t, database, p.ID)

	entry, err := svc.AddMedia(ctx, p.ID, b.ID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if entry.Position != 1 {
		t.Fatalf("position: got %d want 1", entry.Position)
	}
	if after := playlistUpdatedAt(t, database, p.ID); !after.After(before) {
		t.Fatalf("updated_at not bumped: before %v after %v", before, after)
	}

	detail, err := svc.GetPlaylist(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := mediaIDs(detail); !equalIDs(got, []string{a.ID, b.ID}) {
		t.Fatalf("items: got %v", got)
	}

	if p := <-updates; p.String("playlist_id") == "" {
		t.Fatalf("event payload: got %v", p)
	}

	if _, err := svc.AddMedia(ctx, p.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing media: got %v want ErrNotFound", err)
	}
	if _, err := svc.AddMedia(ctx, "missing", a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing playlist: got %v want ErrNotFound", err)
	}
}

func TestRemoveMediaDropsEveryOccurrence(t *testing.T) {
	svc, database, _ := newTestService(t)
	ctx := context.Background()

	a, b := mustMedia(t, svc, "a"), mustMedia(t, svc, "b")
	p := mustPlaylist(t, svc, "Lobby", a, b, a)
	before := playlistUpdatedAt(t, database, p.ID)

	if err := svc.RemoveMedia(ctx, p.ID, a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	detail, _ := svc.GetPlaylist(ctx, p.ID)
	if got := mediaIDs(detail); !equalIDs(got, []string{b.ID}) {
		t.Fatalf("items: got %v", got)
	}
	if after := playlistUpdatedAt(t, database, p.ID); !after.After(before) {
		t.Fatal("updated_at not bumped")
	}
	if err := svc.RemoveMedia(ctx, p.ID, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: got %v want ErrNotFound", err)
	}
}

func TestReorderRewritesPositions(t *testing.T) {
	svc, database, _ := newTestService(t)
	ctx := context.Background()

	a, b, c := mustMedia(t, svc, "a"), mustMedia(t, svc, "b"), mustMedia(t, svc, "c")
	p := mustPlaylist(t, svc, "Lobby", a, b, c)
	before := playlistUpdatedAt(t, database, p.ID)

	if err := svc.Reorder(ctx, p.ID, []string{c.ID, a.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	detail, _ := svc.GetPlaylist(ctx, p.ID)
	if got := mediaIDs(detail); !equalIDs(got, []string{c.ID, a.ID}) {
		t.Fatalf("items: got %v", got)
	}
	for i, it := range detail.Items {
		if it.Position != i {
			t.Fatalf("position[%d]: got %d", i, it.Position)
		}
	}
	if after := playlistUpdatedAt(t, database, p.ID); !after.After(before) {
		t.Fatal("updated_at not bumped")
	}

	if err := svc.Reorder(ctx, p.ID, []string{a.ID, "missing"}); !IsValidation(err) {
		t.Fatalf("unknown id: got %v want validation error", err)
	}
	detail, _ = svc.GetPlaylist(ctx, p.ID)
	if got := mediaIDs(detail); !equalIDs(got, []string{c.ID, a.ID}) {
		t.Fatalf("failed reorder must not change items: got %v", got)
	}
}

func TestDeleteMediaCleansPlaylists(t *testing.T) {
	svc, database, bus := newTestService(t)
	ctx := context.Background()
	deleted := bus.Subscribe(events.EventMediaDeleted)

	a, b := mustMedia(t, svc, "a"), mustMedia(t, svc, "b")
	p := mustPlaylist(t, svc, "Lobby", a, b)
	untouched := mustPlaylist(t, svc, "Other", b)
	before := playlistUpdatedAt(t, database, p.ID)
	otherBefore := playlistUpdatedAt(t, database, untouched.ID)

	if _, err := svc.DeleteMedia(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	detail, _ := svc.GetPlaylist(ctx, p.ID)
	if got := mediaIDs(detail); !equalIDs(got, []string{b.ID}) {
		t.Fatalf("items: got %v", got)
	}
	if after := playlistUpdatedAt(t, database, p.ID); !after.After(before) {
		t.Fatal("affected playlist not bumped")
	}
	if after := playlistUpdatedAt(t, database, untouched.ID); !after.Equal(otherBefore) {
		t.Fatalf("unaffected playlist bumped: %v -> %v", otherBefore, after)
	}
	if _, err := svc.GetMedia(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: got %v", err)
	}
	if p := <-deleted; p.String("media_id") != a.ID {
		t.Fatalf("event: got %v", p)
	}
	if _, err := svc.DeleteMedia(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
}

func TestDeletePlaylistUnbindsDevices(t *testing.T) {
	svc, _, bus := newTestService(t)
	ctx := context.Background()
	deviceEvents := bus.Subscribe(events.EventDeviceUpdated)

	p := mustPlaylist(t, svc, "Lobby", mustMedia(t, svc, "a"))
	d, err := svc.CreateDevice(ctx, DeviceInput{Name: "Front"})
	if err != nil {
		t.Fatalf("create device: %v", err)
	}
	if _, err := svc.AssignPlaylist(ctx, d.ID, p.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	<-deviceEvents

	if err := svc.DeletePlaylist(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := svc.GetDevice(ctx, d.ID)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if got.PlaylistID != nil {
		t.Fatalf("device still bound to %s", *got.PlaylistID)
	}
	if ev := <-deviceEvents; ev.String("token") != d.Token {
		t.Fatalf("unbind event: got %v", ev)
	}
	if _, err := svc.GetPlaylist(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted playlist: got %v", err)
	}
}

func TestDeviceLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDevice(ctx, DeviceInput{Name: "Front", Description: "desk"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, _ := svc.CreateDevice(ctx, DeviceInput{Name: "Back"})
	if d.Token == "" || d.Token == other.Token {
		t.Fatalf("tokens: %q %q", d.Token, other.Token)
	}

	updated, err := svc.UpdateDevice(ctx, d.ID, DeviceInput{Name: "Front door"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Token != d.Token || updated.Name != "Front door" {
		t.Fatalf("updated: got %+v", updated)
	}

	if _, err := svc.AssignPlaylist(ctx, d.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assign missing playlist: got %v", err)
	}
	p := mustPlaylist(t, svc, "Lobby")
	bound, err := svc.AssignPlaylist(ctx, d.ID, p.ID)
	if err != nil || bound.BoundPlaylist() != p.ID {
		t.Fatalf("assign: got %+v %v", bound, err)
	}
	unbound, err := svc.UnassignPlaylist(ctx, d.ID)
	if err != nil || unbound.PlaylistID != nil {
		t.Fatalf("unassign: got %+v %v", unbound, err)
	}

	if _, err := svc.CreateDevice(ctx, DeviceInput{}); !IsValidation(err) {
		t.Fatalf("blank name: got %v", err)
	}
	if err := svc.DeleteDevice(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ := svc.ListDevices(ctx)
	if len(list) != 1 || list[0].ID != other.ID {
		t.Fatalf("list: got %+v", list)
	}
}

func TestListPlaylistsCountsItems(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a, b := mustMedia(t, svc, "a"), mustMedia(t, svc, "b")
	mustPlaylist(t, svc, "B side", a)
	mustPlaylist(t, svc, "A side", a, b)
	mustPlaylist(t, svc, "Empty")

	list, err := svc.ListPlaylists(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := map[string]int{"A side": 2, "B side": 1, "Empty": 0}
	if len(list) != 3 || list[0].Name != "A side" {
		t.Fatalf("order: got %+v", list)
	}
	for _, p := range list {
		if p.ItemCount != want[p.Name] {
			t.Fatalf("%s: got %d want %d", p.Name, p.ItemCount, want[p.Name])
		}
	}
}
