package mpvplayer

import (
	"errors"
	"sync"

	"github.com/veandco/go-sdl2/sdl"
)

var errUnavailable = errors.New("property unavailable")

// fakeCore behaves like an mpv core with a loaded file: setters update
// the property table and queue the matching change notification.
type fakeCore struct {
	mu          sync.Mutex
	options     []option
	initialized bool
	observed    []string
	commands    [][]string
	strings     []option
	doubles     map[string]float64
	flags       map[string]bool
	ints        map[string]int64
	events      []event
	wakeup      func()
	render      *fakeRender
	renderErr   error
	destroyed   bool
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		doubles: map[string]float64{"speed": 1},
		flags:   map[string]bool{},
		ints:    map[string]int64{},
		render:  &fakeRender{},
	}
}

// emit queues ev and fires the wakeup callback like mpv does.
func (c *fakeCore) emit(ev event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	wake := c.wakeup
	c.mu.Unlock()
	if wake != nil {
		wake()
	}
}

func (c *fakeCore) changed(name string, v any) {
	c.events = append(c.events, event{ID: eventPropertyChange, Name: name, Value: v})
}

func (c *fakeCore) SetOption(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = append(c.options, option{name, value})
	return nil
}

func (c *fakeCore) Initialize() error {
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	return nil
}

func (c *fakeCore) Command(args ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, append([]string(nil), args...))
	if len(args) == 2 && args[0] == "cycle" && args[1] == "pause" {
		c.flags["pause"] = !c.flags["pause"]
		c.changed("pause", c.flags["pause"])
	}
	return nil
}

func (c *fakeCore) SetDouble(name string, v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doubles[name] = v
	c.changed(name, v)
	return nil
}

func (c *fakeCore) SetFlag(name string, v bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[name] = v
	c.changed(name, v)
	return nil
}

func (c *fakeCore) SetString(name, v string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strings = append(c.strings, option{name, v})
	return nil
}

func (c *fakeCore) GetDouble(name string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.doubles[name]
	if !ok {
		return 0, errUnavailable
	}
	return v, nil
}

func (c *fakeCore) GetFlag(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.flags[name]
	if !ok {
		return false, errUnavailable
	}
	return v, nil
}

func (c *fakeCore) GetInt64(name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.ints[name]
	if !ok {
		return 0, errUnavailable
	}
	return v, nil
}

func (c *fakeCore) Observe(name string, _ format) error {
	c.mu.Lock()
	c.observed = append(c.observed, name)
	c.mu.Unlock()
	return nil
}

func (c *fakeCore) WaitEvent(float64) event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return event{ID: eventNone}
	}
	ev := c.events[0]
	c.events = c.events[1:]
	return ev
}

func (c *fakeCore) SetWakeup(fn func()) {
	c.mu.Lock()
	c.wakeup = fn
	c.mu.Unlock()
}

func (c *fakeCore) NewRenderContext() (renderContext, error) {
	if c.renderErr != nil {
		return nil, c.renderErr
	}
	return c.render, nil
}

func (c *fakeCore) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
}

func (c *fakeCore) snapshot() (commands [][]string, strs []option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.commands...), append([]option(nil), c.strings...)
}

type fakeRender struct {
	mu      sync.Mutex
	update  uint64
	onFrame func()
	freed   bool
	renders int
}

func (r *fakeRender) SetUpdateCallback(fn func()) {
	r.mu.Lock()
	r.onFrame = fn
	r.mu.Unlock()
}

func (r *fakeRender) Update() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update
}

func (r *fakeRender) Render(_, _, _ int32, _ bool) error {
	r.mu.Lock()
	r.renders++
	r.mu.Unlock()
	return nil
}

func (r *fakeRender) Free() {
	r.mu.Lock()
	r.freed = true
	r.mu.Unlock()
}

type fakeSurface struct {
	mu     sync.Mutex
	id     uint32
	draws  int
	closed bool
}

func (s *fakeSurface) ID() uint32 { return s.id }

func (s *fakeSurface) Draw(rc renderContext) error {
	s.mu.Lock()
	s.draws++
	s.mu.Unlock()
	return rc.Render(0, 640, 360, true)
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var testTypes = eventTypes{renderUpdate: 100, mpvEvents: 101, wake: 102}

// harness is a backend whose SDL event queue is a channel.
type harness struct {
	mu       sync.Mutex
	acquired int
	released int
	events   chan sdl.Event
	core     *fakeCore
	win      *fakeSurface
}

func newHarness() *harness {
	return &harness{
		events: make(chan sdl.Event, 64),
		core:   newFakeCore(),
		win:    &fakeSurface{id: 9},
	}
}

func (h *harness) backend() backend {
	return backend{
		acquire: func() error {
			h.mu.Lock()
			h.acquired++
			h.mu.Unlock()
			return nil
		},
		release: func() {
			h.mu.Lock()
			h.released++
			h.mu.Unlock()
		},
		register:  func() (eventTypes, error) { return testTypes, nil },
		waitEvent: func() sdl.Event { return <-h.events },
		post:      func(t uint32) { h.events <- &sdl.UserEvent{Type: t} },
		newCore:   func(Config) (core, error) { return h.core, nil },
		openWindow: func(string, int, int) (surface, error) {
			return h.win, nil
		},
	}
}

func (h *harness) counts() (acquired, released int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquired, h.released
}
