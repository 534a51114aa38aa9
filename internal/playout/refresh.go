package playout

import (
	"context"
	"errors"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/store"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "grimnir_signage/playout"

// Resolver maps the viewer token to a device.
type Resolver interface {
	Resolve(ctx context.Context, token string) (content.Device, error)
	MarkActive(ctx context.Context, dev content.Device)
}

// Loader loads a playlist with its media.
type Loader interface {
	Load(ctx context.Context, playlistID string) (content.Playlist, error)
}

// Action tells the session what to do with a refresh result.
type Action uint8

const (
	// ActionKeep leaves the engine alone.
	ActionKeep Action = iota
	// ActionReplace loads a changed playlist and restarts at index 0.
	ActionReplace
	// ActionNoContent shows the no-content view.
	ActionNoContent
	// ActionNotFound shows the device-not-found view.
	ActionNotFound
)

// Decision is the outcome of applying a fetch.
type Decision struct {
	Action   Action
	Outcome  string
	Device   content.Device
	Playlist content.Playlist
}

// FetchResult is the network half of a tick. It carries no held state so it
// can be produced off the session loop.
type FetchResult struct {
	NotFound bool
	Device   *content.Device
	Playlist *content.Playlist
	Err      error
}

// Refresher holds the last applied device and playlist for one token and
// decides whether fresh data should disturb playback.
type Refresher struct {
	token    string
	resolver Resolver
	loader   Loader
	logger   zerolog.Logger

	device   *content.Device
	playlist *content.Playlist
}

// NewRefresher creates a refresher for token.
func NewRefresher(token string, resolver Resolver, loader Loader, logger zerolog.Logger) *Refresher {
	return &Refresher{token: token, resolver: resolver, loader: loader, logger: logger}
}

// Tick fetches and applies in one step.
func (r *Refresher) Tick(ctx context.Context) Decision {
	return r.Apply(r.Fetch(ctx))
}

// Fetch resolves the device, records activity and loads its playlist. It
// only reads immutable fields and is safe to run off the session loop.
func (r *Refresher) Fetch(ctx context.Context) FetchResult {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "playout.refresh")
	defer span.End()

	start := time.Now()
	defer func() { telemetry.RefreshDuration.Observe(time.Since(start).Seconds()) }()

	dev, err := r.resolver.Resolve(ctx, r.token)
	if errors.Is(err, store.ErrNotFound) {
		span.SetAttributes(attribute.Bool("device.found", false))
		return FetchResult{NotFound: true}
	}
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.Warn().Err(err).Msg("device lookup failed")
		return FetchResult{Err: err}
	}

	r.resolver.MarkActive(ctx, dev)
	span.SetAttributes(attribute.String("device.id", dev.ID), attribute.String("playlist.id", dev.PlaylistID))

	res := FetchResult{Device: &dev}
	if !dev.Bound() {
		return res
	}

	p, err := r.loader.Load(ctx, dev.PlaylistID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.logger.Debug().Str("playlist_id", dev.PlaylistID).Msg("bound playlist does not exist")
	case err != nil:
		telemetry.RecordError(span, err)
		r.logger.Warn().Err(err).Str("playlist_id", dev.PlaylistID).Msg("playlist load failed")
		res.Err = err
	default:
		span.SetAttributes(attribute.Int("playlist.items", p.Len()))
		res.Playlist = &p
	}
	return res
}

// Apply merges a fetch into held state. A fetched playlist replaces the held
// one only when its fingerprint differs. Transport errors keep whatever is
// already playing.
func (r *Refresher) Apply(res FetchResult) Decision {
	if res.NotFound {
		r.device, r.playlist = nil, nil
		return Decision{Action: ActionNotFound, Outcome: "not_found"}
	}

	if res.Device == nil {
		if r.device != nil {
			return Decision{Action: ActionKeep, Outcome: "error", Device: *r.device}
		}
		return Decision{Action: ActionNotFound, Outcome: "error"}
	}

	r.device = res.Device
	dev := *res.Device

	if res.Err != nil {
		if r.playlist != nil && r.playlist.ID == dev.PlaylistID {
			return Decision{Action: ActionKeep, Outcome: "error", Device: dev}
		}
		r.playlist = nil
		return Decision{Action: ActionNoContent, Outcome: "error", Device: dev}
	}

	if res.Playlist == nil {
		r.playlist = nil
		return Decision{Action: ActionNoContent, Outcome: "no_content", Device: dev}
	}

	if r.playlist != nil && !r.playlist.Fingerprint().Differs(res.Playlist.Fingerprint()) {
		return Decision{Action: ActionKeep, Outcome: "keep", Device: dev}
	}

	r.playlist = res.Playlist
	if res.Playlist.Empty() {
		return Decision{Action: ActionNoContent, Outcome: "no_content", Device: dev}
	}
	return Decision{Action: ActionReplace, Outcome: "replace", Device: dev, Playlist: *res.Playlist}
}

// Device returns the last applied device, if any.
func (r *Refresher) Device() (content.Device, bool) {
	if r.device == nil {
		return content.Device{}, false
	}
	return *r.device, true
}
