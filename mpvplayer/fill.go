package mpvplayer

import (
	"fmt"
	"strings"
)

// FillMode controls how video is fitted to the window.
type FillMode int32

const (
	// Contain letterboxes the video without cropping.
	Contain FillMode = iota
	// Cover crops the video to fill the window.
	Cover
	// Stretch ignores the aspect ratio.
	Stretch
)

func (m FillMode) String() string {
	switch m {
	case Contain:
		return "contain"
	case Cover:
		return "cover"
	case Stretch:
		return "stretch"
	default:
		return fmt.Sprintf("FillMode(%d)", int32(m))
	}
}

// ParseFillMode parses "contain", "cover" or "stretch".
func ParseFillMode(s string) (FillMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "contain", "":
		return Contain, nil
	case "cover":
		return Cover, nil
	case "stretch":
		return Stretch, nil
	}
	return Contain, fmt.Errorf("unknown fill mode %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *FillMode) UnmarshalText(text []byte) error {
	v, err := ParseFillMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// properties returns the keepaspect and panscan settings for m, in the
// order they are applied.
func (m FillMode) properties() []option {
	switch m {
	case Cover:
		return []option{{"keepaspect", "yes"}, {"panscan", "1.0"}}
	case Stretch:
		return []option{{"panscan", "0"}, {"keepaspect", "no"}}
	default:
		return []option{{"keepaspect", "yes"}, {"panscan", "0"}}
	}
}
