/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package web

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/grimnir_signage/internal/playout"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
)

const (
	frameBuffer  = 16
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client message types.
const (
	msgEnded      = "ended"
	msgError      = "error"
	msgPlayFailed = "play_failed"
	msgRefresh    = "refresh"
)

type serverMessage struct {
	Type  string         `json:"type"`
	Frame *playout.Frame `json:"frame,omitempty"`
}

type clientMessage struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

// socketRenderer hands frames from the session loop to the socket writer.
// Render never blocks: when the writer falls behind the oldest queued frame
// is dropped, since every frame fully describes the surface.
type socketRenderer struct {
	frames chan playout.Frame
	closed atomic.Bool
}

func newSocketRenderer(size int) *socketRenderer {
	return &socketRenderer{frames: make(chan playout.Frame, size)}
}

func (r *socketRenderer) Render(f playout.Frame) error {
	if r.closed.Load() {
		return playout.ErrNoSurface
	}
	for {
		select {
		case r.frames <- f:
			return nil
		default:
		}
		select {
		case <-r.frames:
		default:
		}
	}
}

func (r *socketRenderer) detach() { r.closed.Store(true) }

func (h *Handler) handleViewerSocket(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	renderer := newSocketRenderer(frameBuffer)
	sess, err := h.sessions.Open(r.Context(), token, r.URL.Query().Get("video"), renderer)
	if err != nil {
		h.logger.Warn().Err(err).Msg("open session")
		conn.Close(ws.StatusTryAgainLater, "unavailable")
		return
	}
	defer h.sessions.Close(sess.ID())
	defer renderer.detach()

	telemetry.WebsocketClients.Inc()
	defer telemetry.WebsocketClients.Dec()

	logger := h.logger.With().Str("session_id", sess.ID()).Logger()
	logger.Info().Str("token", token).Msg("viewer connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			var msg clientMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				if ws.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					logger.Debug().Err(err).Msg("viewer read failed")
				}
				return
			}
			switch msg.Type {
			case msgEnded:
				sess.Report(playout.MediaEvent{Seq: msg.Seq, Kind: playout.MediaEnded})
			case msgError:
				sess.Report(playout.MediaEvent{Seq: msg.Seq, Kind: playout.MediaLoadError})
			case msgPlayFailed:
				sess.Report(playout.MediaEvent{Seq: msg.Seq, Kind: playout.MediaPlayFailed})
			case msgRefresh:
				sess.Refresh()
			default:
				logger.Debug().Str("type", msg.Type).Msg("unknown viewer message")
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("viewer disconnected")
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-sess.Done():
			conn.Close(ws.StatusGoingAway, "session closed")
			return
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err != nil {
				logger.Debug().Err(err).Msg("viewer ping failed")
				return
			}
		case f := <-renderer.frames:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, serverMessage{Type: "frame", Frame: &f})
			wcancel()
			if err != nil {
				logger.Debug().Err(err).Msg("viewer write failed")
				return
			}
		}
	}
}
