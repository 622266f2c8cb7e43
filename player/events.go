package player

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventHandler receives input events for the player window. Methods run
// on the goroutine that called Play.
type EventHandler interface {
	OnMouseDown(e *sdl.MouseButtonEvent)
	OnMouseUp(e *sdl.MouseButtonEvent)
	OnMouseMove(e *sdl.MouseMotionEvent)
	OnMouseWheel(e *sdl.MouseWheelEvent)
	OnKeyDown(e *sdl.KeyboardEvent)
	OnKeyUp(e *sdl.KeyboardEvent)
}

// createWindowEvent asks the UI thread to build a window for new video dimensions.
type createWindowEvent struct {
	w, h int
}

func (p *Player) pushWindowEvent(ev createWindowEvent) {
	p.eventMu.Lock()
	p.events = append(p.events, ev)
	p.eventMu.Unlock()
}

// handleCustomEvents services queued window events on the UI thread.
func (p *Player) handleCustomEvents() {
	p.eventMu.Lock()
	pending := p.events
	p.events = nil
	p.eventMu.Unlock()

	if p.screen == nil {
		return
	}
	for _, ev := range pending {
		if err := p.screen.Configure(p.name, ev.w, ev.h); err != nil {
			p.log.Errorf("window %dx%d: %v", ev.w, ev.h, err)
			continue
		}
		p.log.Infof("window configured for %dx%d video", ev.w, ev.h)
	}
}

// pumpEvents drains the OS event queue.
func (p *Player) pumpEvents() {
	if p.backend.pollEvent == nil {
		return
	}
	for e := p.backend.pollEvent(); e != nil; e = p.backend.pollEvent() {
		p.handleEvent(e)
	}
}

func (p *Player) ownsWindow(id uint32) bool {
	return p.screen != nil && p.screen.WindowID() != 0 && p.screen.WindowID() == id
}

func (p *Player) handleEvent(e sdl.Event) {
	p.callbacks.Add(1)
	defer p.callbacks.Add(-1)
	h := p.cfg.EventHandler

	switch ev := e.(type) {
	case *sdl.QuitEvent:
		p.quit.Store(true)
		p.disconnect()
	case *sdl.WindowEvent:
		if ev.Event == sdl.WINDOWEVENT_CLOSE && p.ownsWindow(ev.WindowID) {
			p.quit.Store(true)
			p.disconnect()
		}
	case *sdl.MouseButtonEvent:
		if h == nil {
			return
		}
		if ev.Type == sdl.MOUSEBUTTONDOWN {
			h.OnMouseDown(ev)
		} else {
			h.OnMouseUp(ev)
		}
	case *sdl.MouseMotionEvent:
		if h != nil && p.ownsWindow(ev.WindowID) {
			h.OnMouseMove(ev)
		}
	case *sdl.MouseWheelEvent:
		if h != nil {
			h.OnMouseWheel(ev)
		}
	case *sdl.KeyboardEvent:
		if h == nil {
			return
		}
		if ev.Type == sdl.KEYDOWN {
			h.OnKeyDown(ev)
		} else {
			h.OnKeyUp(ev)
		}
	}
}

// disconnect runs the registered callback at most once.
func (p *Player) disconnect() {
	p.disconnectOnce.Do(func() {
		p.cbMu.Lock()
		cb := p.onDisconnect
		p.cbMu.Unlock()
		if cb != nil {
			cb()
		}
	})
}
