// Package mpvplayer implements a URL-backed live player on libmpv. A
// dedicated goroutine, locked to its OS thread, owns the SDL window, the
// OpenGL context, the mpv core and its render context. Controls may be
// called from any goroutine; they go through mpv's asynchronous API or
// wake the player thread with a custom SDL event.
package mpvplayer

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/thesyncim/castkit/internal/sdlref"
)

var (
	// ErrNotInitialized is returned by Play before Init.
	ErrNotInitialized = errors.New("mpv player not initialized")

	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("mpv player already initialized")

	// ErrAlreadyPlaying is returned by Play while the player thread runs.
	ErrAlreadyPlaying = errors.New("mpv player already playing")
)

const (
	defaultWidth  = 1280
	defaultHeight = 720

	// seekStep and volumeStep are the arrow key increments.
	seekStep   = 5.0
	volumeStep = 5
)

// backend bundles the host services the player thread uses. Tests
// substitute fakes.
type backend struct {
	acquire    func() error
	release    func()
	register   func() (eventTypes, error)
	waitEvent  func() sdl.Event
	post       func(t uint32)
	newCore    func(cfg Config) (core, error)
	openWindow func(title string, w, h int) (surface, error)
}

type pendingSeek struct {
	sec   float64
	armed bool
}

// Player is a URL-backed live player.
type Player struct {
	cfg     Config
	log     logging.LeveledLogger
	backend backend

	title  string
	width  int
	height int
	fill   atomic.Int32

	initialized atomic.Bool
	running     atomic.Bool
	quit        atomic.Bool
	fileLoaded  atomic.Bool
	speedRaw    atomic.Uint64 // nominal speed as float64 bits

	stateMu sync.Mutex
	done    chan struct{}

	coreMu sync.RWMutex
	core   core
	types  eventTypes

	// player thread only
	sdlHeld bool
	win     surface
	render  renderContext

	pendingMu sync.Mutex
	pending   pendingSeek

	infoMu sync.Mutex
	info   PlaybackInfo

	cbMu         sync.Mutex
	onDisconnect func()
}

// New creates a URL player. Nothing native is loaded until Play.
func New(cfg Config) *Player {
	return newPlayer(cfg, backend{
		acquire:   sdlref.Acquire,
		release:   sdlref.Release,
		register:  registerEventTypes,
		waitEvent: sdl.WaitEvent,
		post:      pushUserEvent,
		newCore:   newLibmpvCore,
		openWindow: func(title string, w, h int) (surface, error) {
			win, err := openGLWindow(title, w, h)
			if err != nil {
				return nil, err
			}
			return win, nil
		},
	})
}

func newPlayer(cfg Config, b backend) *Player {
	def := DefaultConfig()
	if cfg.DisconnectGrace == 0 {
		cfg.DisconnectGrace = def.DisconnectGrace
	}
	if cfg.DisconnectGrace < 0 {
		cfg.DisconnectGrace = 0
	}
	if cfg.SeekEndMargin <= 0 {
		cfg.SeekEndMargin = def.SeekEndMargin
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	p := &Player{
		cfg:     cfg,
		log:     cfg.LoggerFactory.NewLogger("mpvplayer"),
		backend: b,
		title:   "castkit",
		width:   defaultWidth,
		height:  defaultHeight,
	}
	p.setNominalSpeed(1)
	p.info.Rate = 1
	return p
}

// Init records the window title, initial size and fill mode. It does not
// touch SDL or libmpv.
func (p *Player) Init(title string, w, h int, fill FillMode) error {
	if !p.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}
	if title != "" {
		p.title = title
	}
	if w > 0 && h > 0 {
		p.width, p.height = w, h
	}
	p.fill.Store(int32(fill))
	return nil
}

// Play starts the player thread and loads url. startSeconds > 0 starts
// playback at that offset. Play returns once the window and the mpv core
// are up, or with the error that prevented it.
func (p *Player) Play(url string, startSeconds float64) error {
	if !p.initialized.Load() {
		return ErrNotInitialized
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyPlaying
	}
	p.quit.Store(false)
	p.fileLoaded.Store(false)

	done := make(chan struct{})
	p.stateMu.Lock()
	p.done = done
	p.stateMu.Unlock()

	ready := make(chan error, 1)
	go p.run(url, startSeconds, ready, done)
	if err := <-ready; err != nil {
		<-done
		return err
	}
	return nil
}

// Stop ends the player thread and releases the window and the mpv core.
// It is safe to call more than once and after the player stopped by itself.
func (p *Player) Stop() {
	if !p.running.Load() {
		return
	}
	p.quit.Store(true)
	if !p.wake() {
		p.backend.post(sdl.QUIT)
	}

	p.stateMu.Lock()
	done := p.done
	p.stateMu.Unlock()
	if done != nil {
		<-done
	}
}

// RegisterOnDisconnect sets the callback run after the window is closed
// and the disconnect grace period has passed.
func (p *Player) RegisterOnDisconnect(fn func()) {
	p.cbMu.Lock()
	p.onDisconnect = fn
	p.cbMu.Unlock()
}

func (p *Player) run(url string, start float64, ready chan<- error, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)
	// Cleared on every exit so Play can start again without Stop.
	defer p.running.Store(false)

	if err := p.setup(); err != nil {
		p.teardown()
		ready <- err
		return
	}
	p.loadFile(url, start)
	ready <- nil

	p.loop()
	p.teardown()
}

func (p *Player) setup() error {
	if err := p.backend.acquire(); err != nil {
		return fmt.Errorf("sdl init: %w", err)
	}
	p.sdlHeld = true

	types, err := p.backend.register()
	if err != nil {
		return err
	}

	c, err := p.backend.newCore(p.cfg)
	if err != nil {
		return err
	}
	p.coreMu.Lock()
	p.core = c
	p.types = types
	p.coreMu.Unlock()

	if err := setupCore(c, p.cfg.Options); err != nil {
		return err
	}
	c.SetWakeup(func() { p.backend.post(types.mpvEvents) })

	p.win, err = p.backend.openWindow(p.title, p.width, p.height)
	if err != nil {
		return err
	}
	p.render, err = c.NewRenderContext()
	if err != nil {
		return err
	}
	p.render.SetUpdateCallback(func() { p.backend.post(types.renderUpdate) })

	if s := p.nominalSpeed(); s != 1 {
		if err := c.SetDouble("speed", s); err != nil {
			p.log.Warnf("restore speed %.2f: %v", s, err)
		}
	}
	p.applyFillMode()
	p.log.Infof("player %q ready (%dx%d, %s)", p.title, p.width, p.height, FillMode(p.fill.Load()))
	return nil
}

// teardown runs on the player thread. The render context goes before the
// window that owns its GL context, and both before the core.
func (p *Player) teardown() {
	p.coreMu.Lock()
	c := p.core
	p.core = nil
	p.types = eventTypes{}
	p.coreMu.Unlock()

	if p.render != nil {
		p.render.Free()
		p.render = nil
	}
	if p.win != nil {
		if err := p.win.Close(); err != nil {
			p.log.Warnf("close window: %v", err)
		}
		p.win = nil
	}
	if c != nil {
		c.SetWakeup(nil)
		c.Destroy()
	}
	if p.sdlHeld {
		p.backend.release()
		p.sdlHeld = false
	}
}

func (p *Player) loop() {
	for !p.quit.Load() {
		e := p.backend.waitEvent()
		if e == nil {
			p.log.Errorf("wait event: %v", sdl.GetError())
			return
		}
		if p.handleEvent(e) {
			p.draw()
		}
	}
}

func (p *Player) draw() {
	if p.render == nil || p.win == nil {
		return
	}
	if err := p.win.Draw(p.render); err != nil {
		p.log.Warnf("render: %v", err)
	}
}

func (p *Player) ownsWindow(id uint32) bool {
	return p.win != nil && p.win.ID() != 0 && p.win.ID() == id
}

// handleEvent services one SDL event and reports whether a redraw is due.
func (p *Player) handleEvent(e sdl.Event) bool {
	switch ev := e.(type) {
	case *sdl.QuitEvent:
		p.quit.Store(true)
		return false
	case *sdl.WindowEvent:
		if !p.ownsWindow(ev.WindowID) {
			return false
		}
		switch ev.Event {
		case sdl.WINDOWEVENT_EXPOSED, sdl.WINDOWEVENT_SIZE_CHANGED:
			return true
		case sdl.WINDOWEVENT_CLOSE:
			p.quit.Store(true)
			go p.disconnectAfterGrace()
		}
		return false
	case *sdl.KeyboardEvent:
		if ev.Type == sdl.KEYDOWN && p.ownsWindow(ev.WindowID) {
			p.handleKey(ev.Keysym.Sym)
		}
		return false
	}

	p.coreMu.RLock()
	types := p.types
	p.coreMu.RUnlock()
	if types == (eventTypes{}) {
		return false
	}

	switch e.GetType() {
	case types.wake:
		if p.render != nil {
			p.applyFillMode()
		}
	case types.mpvEvents:
		p.drainEvents()
	case types.renderUpdate:
		if p.render != nil && p.render.Update()&updateFrame != 0 {
			return true
		}
	}
	return false
}

func (p *Player) handleKey(sym sdl.Keycode) {
	switch sym {
	case sdl.K_SPACE:
		p.TogglePause()
	case sdl.K_RIGHT:
		p.SeekRelative(seekStep)
	case sdl.K_LEFT:
		p.SeekRelative(-seekStep)
	case sdl.K_UP:
		p.AddVolume(volumeStep)
	case sdl.K_DOWN:
		p.AddVolume(-volumeStep)
	}
}

// disconnectAfterGrace pauses playback and gives the host the grace
// period to tear the stream down before it is told about the disconnect.
func (p *Player) disconnectAfterGrace() {
	p.TogglePause()
	time.Sleep(p.cfg.DisconnectGrace)

	p.cbMu.Lock()
	cb := p.onDisconnect
	p.cbMu.Unlock()
	if cb != nil {
		cb()
	}
}

// wake posts the wake event if the player thread is running.
func (p *Player) wake() bool {
	p.coreMu.RLock()
	t := p.types.wake
	p.coreMu.RUnlock()
	if t == 0 {
		return false
	}
	p.backend.post(t)
	return true
}

// withCore runs fn against the live core and logs its error. It does
// nothing when no core is running.
func (p *Player) withCore(what string, fn func(c core) error) {
	p.coreMu.RLock()
	defer p.coreMu.RUnlock()
	if p.core == nil {
		return
	}
	if err := fn(p.core); err != nil {
		p.log.Warnf("%s: %v", what, err)
	}
}

func (p *Player) loadFile(url string, start float64) {
	args := loadfileArgs(url, start)
	p.withCore("loadfile", func(c core) error { return c.Command(args...) })
	p.log.Infof("loading %s", url)
}

func loadfileArgs(url string, start float64) []string {
	if start > 0 {
		return []string{"loadfile", url, "replace", "-1", fmt.Sprintf("start=%.3f", start)}
	}
	return []string{"loadfile", url}
}

func (p *Player) applyFillMode() {
	m := FillMode(p.fill.Load())
	p.withCore("fill mode "+m.String(), func(c core) error {
		for _, o := range m.properties() {
			if err := c.SetString(o.name, o.value); err != nil {
				return err
			}
		}
		return nil
	})
}

// drainEvents handles every queued mpv event without blocking.
func (p *Player) drainEvents() {
	p.coreMu.RLock()
	c := p.core
	p.coreMu.RUnlock()
	if c == nil {
		return
	}
	for {
		ev := c.WaitEvent(0)
		switch ev.ID {
		case eventNone:
			return
		case eventShutdown:
			p.log.Infof("mpv core shut down")
			p.quit.Store(true)
			return
		case eventFileLoaded:
			p.onFileLoaded(c)
		case eventPropertyChange:
			p.onPropertyChange(ev.Name, ev.Value)
		}
	}
}

// onFileLoaded flushes a seek queued before the file was loaded and
// refreshes the whole snapshot.
func (p *Player) onFileLoaded(c core) {
	p.pendingMu.Lock()
	p.fileLoaded.Store(true)
	pending := p.pending
	p.pending = pendingSeek{}
	p.pendingMu.Unlock()

	pos, _ := c.GetDouble("time-pos")
	dur, _ := c.GetDouble("duration")
	paused, _ := c.GetFlag("pause")
	seekable, _ := c.GetFlag("seekable")
	w, _ := c.GetInt64("dwidth")
	h, _ := c.GetInt64("dheight")
	if speed, err := c.GetDouble("speed"); err == nil && speed > 0 {
		p.setNominalSpeed(speed)
	}

	if pending.armed {
		target := p.clampSeek(pending.sec, dur)
		if err := c.SetDouble("time-pos", target); err != nil {
			p.log.Warnf("queued seek to %.3f: %v", target, err)
		} else {
			pos = target
		}
	}

	p.infoMu.Lock()
	p.info.Position = pos
	p.info.Duration = dur
	p.info.Paused = paused
	p.info.Seekable = seekable
	p.info.Width = int(w)
	p.info.Height = int(h)
	p.info.Rate = effectiveRate(paused, p.nominalSpeed())
	p.infoMu.Unlock()

	p.log.Infof("file loaded: duration %.3fs, seekable %t, %dx%d", dur, seekable, w, h)
}

func (p *Player) onPropertyChange(name string, v any) {
	if name == "speed" {
		if s := asFloat(v); s > 0 {
			p.setNominalSpeed(s)
		}
	}
	speed := p.nominalSpeed()

	p.infoMu.Lock()
	ok := p.info.apply(name, v, speed)
	p.infoMu.Unlock()
	if !ok {
		p.log.Tracef("unhandled property %s = %v", name, v)
	}
}

func (p *Player) nominalSpeed() float64 {
	return math.Float64frombits(p.speedRaw.Load())
}

func (p *Player) setNominalSpeed(s float64) {
	p.speedRaw.Store(math.Float64bits(s))
}

// clampSeek keeps dst in [0, duration-SeekEndMargin]. An unknown duration
// only clamps at zero.
func (p *Player) clampSeek(dst, duration float64) float64 {
	if duration > 0 {
		if limit := math.Max(0, duration-p.cfg.SeekEndMargin); dst > limit {
			dst = limit
		}
	}
	return math.Max(0, dst)
}

// TogglePause flips the pause state.
func (p *Player) TogglePause() {
	p.withCore("toggle pause", func(c core) error { return c.Command("cycle", "pause") })
}

// SeekRelative seeks sec seconds forward, or backward when negative.
func (p *Player) SeekRelative(sec float64) {
	p.withCore("seek", func(c core) error {
		pos, err := c.GetDouble("time-pos")
		if err != nil {
			return fmt.Errorf("read position: %w", err)
		}
		dur, _ := c.GetDouble("duration")
		return c.SetDouble("time-pos", p.clampSeek(pos+sec, dur))
	})
}

// SeekTo seeks to an absolute position. Before the file has loaded the
// target is kept and applied once it has.
func (p *Player) SeekTo(sec float64) {
	p.pendingMu.Lock()
	if !p.fileLoaded.Load() {
		p.pending = pendingSeek{sec: sec, armed: true}
		p.pendingMu.Unlock()
		return
	}
	p.pendingMu.Unlock()

	p.withCore("seek", func(c core) error {
		dur, _ := c.GetDouble("duration")
		return c.SetDouble("time-pos", p.clampSeek(sec, dur))
	})
}

// AddVolume changes the volume by delta percent.
func (p *Player) AddVolume(delta int) {
	p.withCore("volume", func(c core) error {
		return c.Command("add", "volume", strconv.Itoa(delta))
	})
}

// SetRate sets the playback speed. A rate <= 0 pauses instead.
func (p *Player) SetRate(r float64) {
	if r <= 0 {
		p.withCore("pause", func(c core) error { return c.SetFlag("pause", true) })
		p.infoMu.Lock()
		p.info.Paused = true
		p.info.Rate = 0
		p.infoMu.Unlock()
		return
	}

	p.setNominalSpeed(r)
	p.withCore("set rate", func(c core) error {
		if err := c.SetFlag("pause", false); err != nil {
			return err
		}
		return c.SetDouble("speed", r)
	})
	p.infoMu.Lock()
	p.info.Paused = false
	p.info.Rate = r
	p.infoMu.Unlock()
}

// SetFillMode changes how video fits the window.
func (p *Player) SetFillMode(m FillMode) {
	p.fill.Store(int32(m))
	p.wake()
}

// FillMode returns the current fill mode.
func (p *Player) FillMode() FillMode {
	return FillMode(p.fill.Load())
}

// GetPlaybackInfo returns a consistent snapshot of the playback state.
func (p *Player) GetPlaybackInfo() PlaybackInfo {
	p.infoMu.Lock()
	defer p.infoMu.Unlock()
	return p.info
}

// IsLive reports whether the current media looks like a live stream.
func (p *Player) IsLive() bool {
	return p.GetPlaybackInfo().IsLive()
}
