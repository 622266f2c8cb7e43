// Package player implements a push-fed live player: encoded audio and video
// packets are decoded on two worker goroutines and presented through an SDL
// window and audio queue driven from the goroutine that calls Play.
//
//	ProcessAudio -> [audio queue] -> audio worker -> Decoder -> audio device
//	ProcessVideo -> [video queue] -> video worker -> Decoder -> render queue -> Play loop
package player

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/logging"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/thesyncim/castkit"
	"github.com/thesyncim/castkit/internal/sdlref"
)

var (
	// ErrNotInitialized is returned by Play before Init.
	ErrNotInitialized = errors.New("player not initialized")

	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("player already initialized")

	// ErrAlreadyPlaying is returned when Play is entered twice.
	ErrAlreadyPlaying = errors.New("player already playing")
)

// Stats provides player statistics.
type Stats struct {
	AudioPackets  uint64 // accepted by ProcessAudio
	VideoPackets  uint64 // accepted by ProcessVideo
	AudioDropped  uint64 // discarded by the queue policy or after Stop
	VideoDropped  uint64
	AudioFrames   uint64 // decoded audio frames queued to the device
	AudioBytes    uint64
	VideoFrames   uint64 // decoded video frames entering the render queue
	FramesDropped uint64 // render frames discarded on resolution change
	Rendered      uint64
	DecodeErrors  uint64
	FatalErrors   uint64
}

// decoder is the part of castkit.Decoder the player drives.
type decoder interface {
	SetClient(client castkit.DecoderClient)
	Decode(data []byte)
	Close() error
}

// backend bundles the host services a Player uses. Tests substitute fakes.
type backend struct {
	acquire    func() error
	release    func()
	pollEvent  func() sdl.Event
	screen     presenter
	audio      audioSink
	newDecoder func(name string) decoder
}

// Player is a push-fed live player.
type Player struct {
	cfg     Config
	log     logging.LeveledLogger
	backend backend

	name     string
	audioDec decoder
	videoDec decoder
	audioQ   *packetQueue
	videoQ   *packetQueue
	wg       sync.WaitGroup

	initialized atomic.Bool
	playing     atomic.Bool
	quit        atomic.Bool
	sdlHeld     bool
	closeOnce   sync.Once

	// callbacks counts event handlers running on the Play goroutine.
	callbacks     atomic.Int32
	playMu        sync.Mutex
	playDone      chan struct{}
	closeUIOnExit bool

	// UI thread only.
	screen presenter

	renderMu    sync.Mutex
	renderQueue []*castkit.Frame
	videoW      int
	videoH      int

	eventMu sync.Mutex
	events  []createWindowEvent

	audioMu     sync.Mutex
	audio       audioSink
	audioOpen   bool
	audioFailed bool
	audioSpec   audioSpec
	resampler   castkit.Resampler

	cbMu           sync.Mutex
	onDisconnect   func()
	disconnectOnce sync.Once

	videoDump *castkit.YUVDumper
	audioDump *castkit.PCMDumper

	statsMu sync.Mutex
	stats   Stats
}

// New creates a player and takes a reference on SDL. It never fails: when
// SDL cannot be initialized the error is logged and the player runs without
// window and audio output.
func New(cfg Config) *Player {
	return newPlayer(cfg, backend{
		acquire:   sdlref.Acquire,
		release:   sdlref.Release,
		pollEvent: sdl.PollEvent,
		screen:    &sdlPresenter{},
		audio:     &sdlAudio{},
	})
}

func newPlayer(cfg Config, b backend) *Player {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	p := &Player{
		cfg:     cfg,
		log:     cfg.LoggerFactory.NewLogger("player"),
		backend: b,
		audioQ:  newPacketQueue(cfg.QueueCapacity, cfg.QueuePolicy),
		videoQ:  newPacketQueue(cfg.QueueCapacity, cfg.QueuePolicy),
	}
	if p.backend.newDecoder == nil {
		p.backend.newDecoder = p.defaultDecoder
	}

	if b.acquire != nil {
		if err := b.acquire(); err != nil {
			p.log.Errorf("windowing unavailable: %v", err)
			p.backend.pollEvent = nil
			return p
		}
		p.sdlHeld = true
	}
	p.screen = b.screen
	p.audio = b.audio
	return p
}

func (p *Player) defaultDecoder(name string) decoder {
	d := castkit.NewDecoder(
		castkit.WithCodecLibrary(p.cfg.Library),
		castkit.WithLoggerFactory(p.cfg.LoggerFactory),
	)
	d.SetCodecName(name)
	return d
}

// Init creates the decoders and starts the audio and video workers.
// name is the window title.
func (p *Player) Init(name, audioCodec, videoCodec string) error {
	if !p.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}
	p.name = name

	if p.cfg.DumpVideoPath != "" {
		p.videoDump = castkit.NewYUVDumper(p.cfg.DumpVideoPath)
	}
	if p.cfg.DumpAudioPath != "" {
		p.audioDump = castkit.NewPCMDumper(p.cfg.DumpAudioPath)
	}

	p.audioDec = p.backend.newDecoder(audioCodec)
	p.audioDec.SetClient(&streamClient{p: p, kind: "audio"})
	p.videoDec = p.backend.newDecoder(videoCodec)
	p.videoDec.SetClient(&streamClient{p: p, kind: "video"})

	p.wg.Add(2)
	go p.worker(p.audioQ, p.audioDec)
	go p.worker(p.videoQ, p.videoDec)

	p.log.Infof("player %q started (audio %s, video %s)", name, audioCodec, videoCodec)
	return nil
}

func (p *Player) worker(q *packetQueue, dec decoder) {
	defer p.wg.Done()
	for {
		data, ok := q.pop()
		if !ok {
			return
		}
		if len(data) > 0 {
			dec.Decode(data)
		}
	}
}

// Play runs the UI loop on the calling goroutine until the window is closed
// or Stop is called. Each iteration polls OS events, services window
// events, renders at most one frame and sleeps for the tick interval.
// The window belongs to Play while it runs.
func (p *Player) Play() error {
	if !p.initialized.Load() {
		return ErrNotInitialized
	}
	if !p.playing.CompareAndSwap(false, true) {
		return ErrAlreadyPlaying
	}
	done := make(chan struct{})
	p.playMu.Lock()
	p.playDone = done
	p.playMu.Unlock()
	defer func() {
		p.playMu.Lock()
		p.playDone = nil
		release := p.closeUIOnExit
		p.playMu.Unlock()
		if release {
			if err := p.closeUI(); err != nil {
				p.log.Warnf("close window: %v", err)
			}
		}
		p.playing.Store(false)
		close(done)
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for !p.quit.Load() {
		p.pumpEvents()
		p.handleCustomEvents()
		p.render()
		time.Sleep(p.cfg.TickInterval)
	}
	return nil
}

// Stop ends Play and joins the workers. Called from another goroutine it
// returns after Play has returned; called from an event handler or the
// disconnect callback it returns without waiting. It is safe to call more
// than once and before Play.
func (p *Player) Stop() {
	p.stop(false)
}

// stop reports whether Play is still running on the calling goroutine. With
// closing set, Play then releases the window itself on exit.
func (p *Player) stop(closing bool) bool {
	p.quit.Store(true)
	p.audioQ.close()
	p.videoQ.close()
	p.wg.Wait()

	p.playMu.Lock()
	done := p.playDone
	if done != nil && p.callbacks.Load() > 0 {
		p.closeUIOnExit = p.closeUIOnExit || closing
		p.playMu.Unlock()
		return true
	}
	p.playMu.Unlock()
	if done != nil {
		<-done
	}
	return false
}

// ProcessAudio queues one encoded audio packet. b is copied.
func (p *Player) ProcessAudio(b []byte) {
	p.enqueue(p.audioQ, b)
}

// ProcessVideo queues one encoded video packet. b is copied.
func (p *Player) ProcessVideo(b []byte) {
	p.enqueue(p.videoQ, b)
}

func (p *Player) enqueue(q *packetQueue, b []byte) {
	if len(b) == 0 {
		return
	}
	owned := make([]byte, len(b))
	copy(owned, b)
	q.push(owned)
}

// RegisterOnDisconnect sets the callback run once when the window is closed.
func (p *Player) RegisterOnDisconnect(fn func()) {
	p.cbMu.Lock()
	p.onDisconnect = fn
	p.cbMu.Unlock()
}

// render presents at most one queued frame.
func (p *Player) render() {
	p.renderMu.Lock()
	if len(p.renderQueue) == 0 {
		p.renderMu.Unlock()
		return
	}
	f := p.renderQueue[0]
	p.renderQueue[0] = nil
	p.renderQueue = p.renderQueue[1:]
	p.renderMu.Unlock()

	if p.screen == nil {
		return
	}
	// A frame can overtake its window event; build the window here in that case.
	if err := p.screen.Configure(p.name, f.Width, f.Height); err != nil {
		p.log.Errorf("window %dx%d: %v", f.Width, f.Height, err)
		return
	}
	if err := p.screen.Present(f); err != nil {
		p.log.Warnf("present: %v", err)
		return
	}
	p.statsMu.Lock()
	p.stats.Rendered++
	p.statsMu.Unlock()
}

// onVideoFrame clones f into the render queue. A dimension change posts a
// window event and drops the frames queued at the old size.
func (p *Player) onVideoFrame(f *castkit.Frame) {
	if p.videoDump != nil {
		if err := p.videoDump.WriteFrame(f); err != nil {
			p.log.Debugf("video dump: %v", err)
		}
	}

	clone := f.Clone()
	p.renderMu.Lock()
	resized := f.Width != p.videoW || f.Height != p.videoH
	dropped := 0
	if resized {
		p.videoW, p.videoH = f.Width, f.Height
		dropped = len(p.renderQueue)
		clear(p.renderQueue)
		p.renderQueue = p.renderQueue[:0]
	}
	p.renderQueue = append(p.renderQueue, clone)
	p.renderMu.Unlock()

	if resized {
		p.pushWindowEvent(createWindowEvent{w: f.Width, h: f.Height})
		p.log.Debugf("video size %dx%d, dropped %d queued frames", f.Width, f.Height, dropped)
	}

	p.statsMu.Lock()
	p.stats.VideoFrames++
	p.stats.FramesDropped += uint64(dropped)
	p.statsMu.Unlock()
}

// Stats returns player statistics.
func (p *Player) Stats() Stats {
	p.statsMu.Lock()
	s := p.stats
	p.statsMu.Unlock()

	s.AudioPackets, s.AudioDropped = p.audioQ.counters()
	s.VideoPackets, s.VideoDropped = p.videoQ.counters()
	return s
}

// Close stops the player and releases the window, audio device, decoders
// and the SDL reference. Like Stop it waits for Play to return; from inside
// a Play callback the window and SDL reference are released when Play exits.
func (p *Player) Close() error {
	var result *multierror.Error
	p.closeOnce.Do(func() {
		playing := p.stop(true)

		p.renderMu.Lock()
		p.renderQueue = nil
		p.renderMu.Unlock()

		p.audioMu.Lock()
		if p.audio != nil {
			p.audio.Close()
			p.audioOpen = false
		}
		if p.resampler != nil {
			result = multierror.Append(result, p.resampler.Close())
			p.resampler = nil
		}
		p.audioMu.Unlock()

		if p.audioDec != nil {
			result = multierror.Append(result, p.audioDec.Close())
		}
		if p.videoDec != nil {
			result = multierror.Append(result, p.videoDec.Close())
		}
		if p.videoDump != nil {
			result = multierror.Append(result, p.videoDump.Close())
		}
		if p.audioDump != nil {
			result = multierror.Append(result, p.audioDump.Close())
		}

		if !playing {
			result = multierror.Append(result, p.closeUI())
		}
	})
	return result.ErrorOrNil()
}

// closeUI releases the window and the SDL reference.
func (p *Player) closeUI() error {
	var err error
	if p.screen != nil {
		err = p.screen.Close()
		p.screen = nil
	}
	if p.sdlHeld && p.backend.release != nil {
		p.backend.release()
		p.sdlHeld = false
	}
	return err
}

// streamClient receives one decoder's output.
type streamClient struct {
	p    *Player
	kind string
}

func (c *streamClient) OnFrameDecoded(f *castkit.Frame) {
	if f.IsVideo() {
		c.p.onVideoFrame(f)
		return
	}
	c.p.onAudioFrame(f)
}

func (c *streamClient) OnDecodeError(msg string) {
	c.p.log.Warnf("%s decoder: %s", c.kind, msg)
	c.p.statsMu.Lock()
	c.p.stats.DecodeErrors++
	c.p.statsMu.Unlock()
}

func (c *streamClient) OnFatalError(msg string) {
	c.p.log.Errorf("%s decoder: %s", c.kind, msg)
	c.p.statsMu.Lock()
	c.p.stats.FatalErrors++
	c.p.statsMu.Unlock()
}
