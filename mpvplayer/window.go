package mpvplayer

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/veandco/go-sdl2/sdl"
)

// surface is the window the render context draws into.
type surface interface {
	ID() uint32
	Draw(rc renderContext) error
	Close() error
}

// glWindow is an SDL window with its OpenGL context.
type glWindow struct {
	win *sdl.Window
	ctx sdl.GLContext
	id  uint32
}

func openGLWindow(title string, w, h int) (*glWindow, error) {
	win, err := sdl.CreateWindow(title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(w), int32(h), sdl.WINDOW_OPENGL|sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	g := &glWindow{win: win}

	g.ctx, err = win.GLCreateContext()
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("create GL context: %w", err)
	}
	if err := win.GLMakeCurrent(g.ctx); err != nil {
		g.Close()
		return nil, fmt.Errorf("make GL context current: %w", err)
	}
	// Presentation is paced by mpv's update callback, not vsync.
	_ = sdl.GLSetSwapInterval(0)

	if g.id, err = win.GetID(); err != nil {
		g.Close()
		return nil, fmt.Errorf("window id: %w", err)
	}
	return g, nil
}

func (g *glWindow) ID() uint32 { return g.id }

// Draw renders the current video frame into the default framebuffer at
// the drawable size, which differs from the window size on HiDPI screens.
func (g *glWindow) Draw(rc renderContext) error {
	if err := g.win.GLMakeCurrent(g.ctx); err != nil {
		return err
	}
	w, h := g.win.GLGetDrawableSize()
	if err := rc.Render(0, w, h, true); err != nil {
		return err
	}
	g.win.GLSwap()
	return nil
}

func (g *glWindow) Close() error {
	var result *multierror.Error
	if g.ctx != nil {
		sdl.GLDeleteContext(g.ctx)
		g.ctx = nil
	}
	if g.win != nil {
		result = multierror.Append(result, g.win.Destroy())
		g.win = nil
	}
	return result.ErrorOrNil()
}

// Custom SDL event types, registered once per process.
var (
	eventTypesOnce sync.Once
	eventTypesBase uint32
	eventTypesErr  error
)

type eventTypes struct {
	renderUpdate uint32 // render context has a new frame
	mpvEvents    uint32 // mpv event queue is non-empty
	wake         uint32 // a control call needs the player thread
}

func registerEventTypes() (eventTypes, error) {
	eventTypesOnce.Do(func() {
		base := sdl.RegisterEvents(3)
		if base == ^uint32(0) {
			eventTypesErr = fmt.Errorf("register SDL events: %v", sdl.GetError())
			return
		}
		eventTypesBase = base
	})
	if eventTypesErr != nil {
		return eventTypes{}, eventTypesErr
	}
	return eventTypes{
		renderUpdate: eventTypesBase,
		mpvEvents:    eventTypesBase + 1,
		wake:         eventTypesBase + 2,
	}, nil
}

func pushUserEvent(t uint32) {
	_, _ = sdl.PushEvent(&sdl.UserEvent{Type: t})
}
