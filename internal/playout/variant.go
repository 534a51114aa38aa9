package playout

import (
	"net/url"
	"strings"

	"github.com/friendsincode/grimnir_signage/internal/content"
)

// Variant is the closed set of presentation variants. Each has exactly one
// advance policy.
type Variant uint8

const (
	VariantUnsupported Variant = iota
	VariantImage
	VariantNews
	VariantEmbeddedVideo
	VariantDirectVideo
)

func (v Variant) String() string {
	switch v {
	case VariantImage:
		return "image"
	case VariantNews:
		return "news"
	case VariantEmbeddedVideo:
		return "video_embedded"
	case VariantDirectVideo:
		return "video_direct"
	default:
		return "unsupported"
	}
}

// Classify maps an item to its variant. A video whose URL contains one of
// markers is an embedded third-party player.
func Classify(item content.MediaItem, markers []string) Variant {
	switch item.Kind {
	case content.KindImage:
		return VariantImage
	case content.KindNews:
		return VariantNews
	case content.KindVideo:
		if isEmbedded(item.Content, markers) {
			return VariantEmbeddedVideo
		}
		return VariantDirectVideo
	default:
		return VariantUnsupported
	}
}

func isEmbedded(src string, markers []string) bool {
	lower := strings.ToLower(src)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// embedSource adds autoplay parameters and hides the player's own controls.
func embedSource(src string, muted bool) string {
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return src
	}
	q := u.Query()
	q.Set("autoplay", "1")
	q.Set("controls", "0")
	q.Set("rel", "0")
	q.Set("modestbranding", "1")
	q.Set("playsinline", "1")
	if muted {
		q.Set("mute", "1")
	} else {
		q.Set("mute", "0")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func itemView(item content.MediaItem, v Variant, muted bool) *ItemView {
	view := &ItemView{
		ID:      item.ID,
		Title:   item.Title,
		Kind:    string(item.Kind),
		Variant: v.String(),
	}
	switch v {
	case VariantImage:
		view.Src = item.Content
	case VariantNews:
		view.Markup = item.Content
	case VariantEmbeddedVideo:
		view.Src = embedSource(item.Content, muted)
	case VariantDirectVideo:
		view.Src = item.Content
		view.Muted = muted
	}
	return view
}
