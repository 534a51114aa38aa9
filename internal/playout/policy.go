package playout

import (
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
)

// advanceReason labels why an item gave way.
type advanceReason string

const (
	reasonTimer       advanceReason = "timer"
	reasonEnded       advanceReason = "ended"
	reasonPlayFailed  advanceReason = "play_failed"
	reasonError       advanceReason = "error"
	reasonUnsupported advanceReason = "unsupported"
	reasonSkip        advanceReason = "skip"
)

// advancePolicy decides when the active item gives way to the next one.
type advancePolicy interface {
	// arm runs once when the item becomes active. renderErr is the
	// surface's answer to the item's first frame.
	arm(e *Engine, item content.MediaItem, renderErr error)
	// onEvent handles surface feedback about the active item.
	onEvent(e *Engine, item content.MediaItem, kind MediaEventKind)
}

var policies = map[Variant]advancePolicy{
	VariantImage:         imagePolicy{},
	VariantNews:          newsPolicy{},
	VariantEmbeddedVideo: embeddedVideoPolicy{},
	VariantDirectVideo:   directVideoPolicy{},
	VariantUnsupported:   unsupportedPolicy{},
}

type imagePolicy struct{}

func (imagePolicy) arm(e *Engine, item content.MediaItem, _ error) {
	e.armTimer(durationOr(item, e.opts.DefaultDuration), reasonTimer)
}

func (imagePolicy) onEvent(e *Engine, _ content.MediaItem, kind MediaEventKind) {
	if kind == MediaLoadError {
		e.armGrace()
	}
}

type newsPolicy struct{}

func (newsPolicy) arm(e *Engine, item content.MediaItem, _ error) {
	e.armTimer(durationOr(item, e.opts.DefaultDuration), reasonTimer)
}

func (newsPolicy) onEvent(*Engine, content.MediaItem, MediaEventKind) {}

// embeddedVideoPolicy has no end signal to listen for.
type embeddedVideoPolicy struct{}

func (embeddedVideoPolicy) arm(e *Engine, item content.MediaItem, _ error) {
	e.armTimer(durationOr(item, e.opts.EmbedDuration), reasonTimer)
}

func (embeddedVideoPolicy) onEvent(*Engine, content.MediaItem, MediaEventKind) {}

type directVideoPolicy struct{}

func (directVideoPolicy) arm(e *Engine, item content.MediaItem, renderErr error) {
	if renderErr != nil {
		e.logger.Warn().Err(renderErr).Str("media_id", item.ID).Msg("video could not start, using fallback timer")
		e.armTimer(durationOr(item, e.opts.DefaultDuration), reasonPlayFailed)
		return
	}
	e.armEndOfMedia()
}

func (directVideoPolicy) onEvent(e *Engine, item content.MediaItem, kind MediaEventKind) {
	switch kind {
	case MediaEnded:
		e.advance(reasonEnded)
	case MediaPlayFailed:
		if e.armed.kind != armEndOfMedia {
			return
		}
		e.logger.Warn().Str("media_id", item.ID).Msg("video playback refused, using fallback timer")
		e.armTimer(durationOr(item, e.opts.DefaultDuration), reasonPlayFailed)
	case MediaLoadError:
		e.armGrace()
	}
}

// unsupportedPolicy shows the placeholder briefly and moves on.
type unsupportedPolicy struct{}

func (unsupportedPolicy) arm(e *Engine, item content.MediaItem, _ error) {
	e.logger.Warn().Str("media_id", item.ID).Str("kind", string(item.Kind)).Msg("unsupported media kind")
	e.armTimer(e.opts.ErrorGrace, reasonUnsupported)
}

func (unsupportedPolicy) onEvent(*Engine, content.MediaItem, MediaEventKind) {}

func durationOr(item content.MediaItem, fallback time.Duration) time.Duration {
	if d := item.Duration(); d > 0 {
		return d
	}
	return fallback
}
