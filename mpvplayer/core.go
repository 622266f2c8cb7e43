package mpvplayer

import (
	"errors"
	"fmt"
)

// ErrLibmpvUnavailable is returned when libmpv cannot be loaded.
var ErrLibmpvUnavailable = errors.New("libmpv not available")

// eventID mirrors mpv_event_id.
type eventID int32

const (
	eventNone           eventID = 0
	eventShutdown       eventID = 1
	eventFileLoaded     eventID = 8
	eventPropertyChange eventID = 22
)

// format mirrors mpv_format.
type format int32

const (
	formatNone    format = 0
	formatString  format = 1
	formatFlag    format = 3
	formatInt64   format = 4
	formatDouble  format = 5
	formatNode    format = 6
	formatNodeArr format = 7
	formatNodeMap format = 8
)

// updateFrame is MPV_RENDER_UPDATE_FRAME.
const updateFrame = 1

// event is a decoded mpv_event. Value holds float64, int64, bool, string,
// []any or map[string]any, or nil when the property is unavailable.
type event struct {
	ID    eventID
	Error int32
	Name  string
	Value any
}

// core is the part of an mpv handle the player uses. Every method is safe
// for concurrent use until Destroy.
type core interface {
	SetOption(name, value string) error
	Initialize() error
	// Command runs args asynchronously.
	Command(args ...string) error
	SetDouble(name string, v float64) error
	SetFlag(name string, v bool) error
	SetString(name, v string) error
	GetDouble(name string) (float64, error)
	GetFlag(name string) (bool, error)
	GetInt64(name string) (int64, error)
	Observe(name string, f format) error
	// WaitEvent returns the next event; ID is eventNone once the queue is empty.
	WaitEvent(timeout float64) event
	SetWakeup(fn func())
	// NewRenderContext binds a render context to the current GL context.
	NewRenderContext() (renderContext, error)
	Destroy()
}

// renderContext is an mpv OpenGL render context.
type renderContext interface {
	SetUpdateCallback(fn func())
	Update() uint64
	Render(fbo, w, h int32, flipY bool) error
	Free()
}

// observed lists the properties mirrored into PlaybackInfo.
var observed = []struct {
	name string
	f    format
}{
	{"time-pos", formatDouble},
	{"duration", formatDouble},
	{"pause", formatFlag},
	{"speed", formatDouble},
	{"seekable", formatFlag},
	{"dwidth", formatInt64},
	{"dheight", formatInt64},
	{"video-format", formatString},
	{"audio-codec-name", formatString},
	{"paused-for-cache", formatFlag},
	{"cache-buffering-state", formatInt64},
	{"demuxer-cache-state", formatNode},
}

// setupCore applies options, initializes the core and starts observing
// the PlaybackInfo properties.
func setupCore(c core, overrides map[string]string) error {
	for _, o := range coreOptions(overrides) {
		if err := c.SetOption(o.name, o.value); err != nil {
			return fmt.Errorf("set option %s=%s: %w", o.name, o.value, err)
		}
	}
	if err := c.Initialize(); err != nil {
		return fmt.Errorf("mpv initialize: %w", err)
	}
	for _, p := range observed {
		if err := c.Observe(p.name, p.f); err != nil {
			return fmt.Errorf("observe %s: %w", p.name, err)
		}
	}
	return nil
}
