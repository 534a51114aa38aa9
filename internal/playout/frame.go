package playout

import "errors"

// ErrNoSurface is returned by a renderer with nothing attached to draw on.
var ErrNoSurface = errors.New("playout: no rendering surface")

// ViewState is what the surface should display.
type ViewState string

const (
	ViewLoading   ViewState = "loading"
	ViewPlaying   ViewState = "playing"
	ViewNotFound  ViewState = "not_found"
	ViewNoContent ViewState = "no_content"
)

// ItemView describes how to present the active item.
type ItemView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Variant string `json:"variant"`
	Src     string `json:"src,omitempty"`
	Markup  string `json:"markup,omitempty"`
	Muted   bool   `json:"muted,omitempty"`
}

// Frame is a complete description of the surface. Renderers receive a new
// frame whenever anything visible changes.
type Frame struct {
	State      ViewState `json:"state"`
	Seq        uint64    `json:"seq"`
	Item       *ItemView `json:"item,omitempty"`
	Position   int       `json:"position,omitempty"`
	Total      int       `json:"total,omitempty"`
	Counter    string    `json:"counter,omitempty"` // overlay text, "position / total"
	Overlay    bool      `json:"overlay"`
	Opacity    float64   `json:"opacity"`
	FadeMs     int64     `json:"fade_ms"`
	Notice     string    `json:"notice,omitempty"`
	Token      string    `json:"token,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`
}

// Renderer receives frames on the session loop. Render must not block.
type Renderer interface {
	Render(Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame) error

func (f RendererFunc) Render(fr Frame) error { return f(fr) }

// MediaEventKind is feedback from the surface about the active item.
type MediaEventKind string

const (
	MediaEnded      MediaEventKind = "ended"
	MediaPlayFailed MediaEventKind = "play_failed"
	MediaLoadError  MediaEventKind = "error"
)

// MediaEvent carries the frame sequence it refers to so events for items
// that are no longer active can be discarded.
type MediaEvent struct {
	Seq  uint64
	Kind MediaEventKind
}
