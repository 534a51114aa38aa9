package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/playout"
	"github.com/friendsincode/grimnir_signage/internal/store"
)

// unknownDevices resolves nothing.
type unknownDevices struct {
	resolves atomic.Int32
}

func (u *unknownDevices) Resolve(ctx context.Context, token string) (content.Device, error) {
	u.resolves.Add(1)
	return content.Device{}, store.ErrNotFound
}

func (u *unknownDevices) MarkActive(ctx context.Context, dev content.Device) {}

func (u *unknownDevices) Load(ctx context.Context, playlistID string) (content.Playlist, error) {
	return content.Playlist{}, store.ErrNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *playout.Manager, *unknownDevices) {
	t.Helper()
	backend := &unknownDevices{}
	opts := playout.DefaultOptions()
	opts.TransitionWindow = 5 * time.Millisecond
	opts.DefaultDuration = time.Hour
	opts.NoticeDuration = time.Hour
	manager := playout.NewManager(backend, backend, playout.Settings{RefreshInterval: time.Hour, Options: opts}, nil, zerolog.Nop())

	h, err := NewHandler(manager, zerolog.Nop())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown()
	})
	return srv, manager, backend
}

func dial(t *testing.T, srv *httptest.Server, path string) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(ws.StatusNormalClosure, "") })
	return conn
}

// waitFrame reads frames until match accepts one.
func waitFrame(t *testing.T, conn *ws.Conn, match func(playout.Frame) bool) playout.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var msg serverMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if msg.Type == "frame" && msg.Frame != nil && match(*msg.Frame) {
			return *msg.Frame
		}
	}
}

func sendMessage(t *testing.T, conn *ws.Conn, msg clientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

func TestViewerPage_RendersTokenAndVideo(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/view/lobby-1?video=" + "https%3A%2F%2Fcdn.example.com%2Fa.mp4%3Fx%3D1%26y%3D2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), `data-token="lobby-1"`) {
		t.Fatalf("token missing from page: %s", body)
	}
	if !strings.Contains(string(body), `a.mp4?x=1&amp;y=2`) {
		t.Fatalf("video not escaped: %s", body)
	}
}

func TestViewerPage_ServesScript(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/static/viewer.js")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d want 200", resp.StatusCode)
	}
}

func TestViewerSocket_NotFoundAndRetry(t *testing.T) {
	srv, manager, backend := newTestServer(t)
	conn := dial(t, srv, "/view/missing-token/ws")

	f := waitFrame(t, conn, func(f playout.Frame) bool { return f.State == playout.ViewNotFound })
	if f.Token != "missing-token" {
		t.Fatalf("token: got %q want missing-token", f.Token)
	}
	if got := len(manager.Sessions()); got != 1 {
		t.Fatalf("sessions: got %d want 1", got)
	}

	sendMessage(t, conn, clientMessage{Type: msgRefresh})
	waitFrame(t, conn, func(f playout.Frame) bool { return f.Notice == "Updating content" })

	deadline := time.Now().Add(5 * time.Second)
	for backend.resolves.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("resolves: got %d want 2", backend.resolves.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close(ws.StatusNormalClosure, "")
	for len(manager.Sessions()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not closed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestViewerSocket_KioskVideoEndedAdvances(t *testing.T) {
	srv, _, backend := newTestServer(t)
	conn := dial(t, srv, "/view/any/ws?video=https%3A%2F%2Fcdn.example.com%2Floop.mp4")

	first := waitFrame(t, conn, func(f playout.Frame) bool {
		return f.State == playout.ViewPlaying && f.Item != nil && f.Opacity == 1
	})
	if first.Item.Variant != "video_direct" || first.Item.Src != "https://cdn.example.com/loop.mp4" {
		t.Fatalf("kiosk item: got %+v", first.Item)
	}
	if first.Overlay {
		t.Fatal("kiosk frame shows overlay")
	}

	// Stale feedback is ignored, current feedback advances.
	sendMessage(t, conn, clientMessage{Type: msgEnded, Seq: first.Seq + 100})
	sendMessage(t, conn, clientMessage{Type: msgEnded, Seq: first.Seq})
	next := waitFrame(t, conn, func(f playout.Frame) bool {
		return f.State == playout.ViewPlaying && f.Seq > first.Seq
	})
	if next.Seq != first.Seq+1 {
		t.Fatalf("seq: got %d want %d", next.Seq, first.Seq+1)
	}
	if got := backend.resolves.Load(); got != 0 {
		t.Fatalf("kiosk resolved device %d times", got)
	}
}

func TestSocketRenderer_DropsOldestWhenFull(t *testing.T) {
	r := newSocketRenderer(2)
	for seq := uint64(1); seq <= 3; seq++ {
		if err := r.Render(playout.Frame{Seq: seq}); err != nil {
			t.Fatalf("render %d: %v", seq, err)
		}
	}
	if got := (<-r.frames).Seq; got != 2 {
		t.Fatalf("first queued: got %d want 2", got)
	}
	if got := (<-r.frames).Seq; got != 3 {
		t.Fatalf("second queued: got %d want 3", got)
	}

	r.detach()
	if err := r.Render(playout.Frame{Seq: 4}); !errors.Is(err, playout.ErrNoSurface) {
		t.Fatalf("render after detach: got %v want ErrNoSurface", err)
	}
}

// pairDevices binds every token to a two-image playlist.
type pairDevices struct{}

func (pairDevices) Resolve(ctx context.Context, token string) (content.Device, error) {
	return content.Device{ID: "dev-" + token, Name: "Screen", Token: token, PlaylistID: "pl-pair"}, nil
}

func (pairDevices) MarkActive(ctx context.Context, dev content.Device) {}

func (pairDevices) Load(ctx context.Context, playlistID string) (content.Playlist, error) {
	return content.Playlist{
		PlaylistMeta: content.PlaylistMeta{ID: playlistID, Name: "Pair", UpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		Items: []content.MediaItem{
			{ID: "m-1", Title: "First", Kind: content.KindImage, Content: "https://cdn.example.com/1.jpg", DurationSec: 3600},
			{ID: "m-2", Title: "Second", Kind: content.KindImage, Content: "https://cdn.example.com/2.jpg", DurationSec: 3600},
		},
	}, nil
}

func TestViewerSocket_OverlayCounterStartsAtOne(t *testing.T) {
	backend := pairDevices{}
	opts := playout.DefaultOptions()
	opts.TransitionWindow = 5 * time.Millisecond
	manager := playout.NewManager(backend, backend, playout.Settings{RefreshInterval: time.Hour, Options: opts}, nil, zerolog.Nop())
	h, err := NewHandler(manager, zerolog.Nop())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown()
	})

	conn := dial(t, srv, "/view/hall/ws")
	f := waitFrame(t, conn, func(f playout.Frame) bool { return f.State == playout.ViewPlaying })
	if f.Item == nil || f.Item.ID != "m-1" {
		t.Fatalf("first item: got %+v", f.Item)
	}
	if f.Counter != "1 / 2" {
		t.Fatalf("counter: got %q want %q", f.Counter, "1 / 2")
	}
}

func TestViewerScript_PrintsCounterVerbatim(t *testing.T) {
	script, err := StaticFS.ReadFile("static/viewer.js")
	if err != nil {
		t.Fatalf("read viewer.js: %v", err)
	}
	src := string(script)
	if !strings.Contains(src, "overlayPosition.textContent = f.counter") {
		t.Fatal("viewer.js does not print the frame counter")
	}
	if strings.Contains(src, "f.position") {
		t.Fatal("viewer.js recomputes the overlay position")
	}
}
