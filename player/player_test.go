package player

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/thesyncim/castkit"
)

type fakeScreen struct {
	mu         sync.Mutex
	id         uint32
	configures [][2]int
	presented  int
	closed     int
	w, h       int
}

func (s *fakeScreen) Configure(_ string, w, h int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == w && s.h == h {
		return nil
	}
	s.w, s.h = w, h
	s.configures = append(s.configures, [2]int{w, h})
	return nil
}

func (s *fakeScreen) Present(*castkit.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented++
	return nil
}

func (s *fakeScreen) WindowID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *fakeScreen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeAudio struct {
	mu      sync.Mutex
	openErr error
	opened  []audioSpec
	queued  [][]byte
	closed  int
}

func (a *fakeAudio) Open(spec audioSpec) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.openErr != nil {
		return a.openErr
	}
	a.opened = append(a.opened, spec)
	return nil
}

func (a *fakeAudio) Queue(b []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queued = append(a.queued, append([]byte(nil), b...))
	return nil
}

func (a *fakeAudio) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
}

// fakeDecoder turns each packet into frames with produce.
type fakeDecoder struct {
	mu      sync.Mutex
	name    string
	client  castkit.DecoderClient
	produce func(data []byte) []*castkit.Frame
	inputs  int
	closed  int
}

func (d *fakeDecoder) SetClient(c castkit.DecoderClient) { d.client = c }

func (d *fakeDecoder) Decode(data []byte) {
	d.mu.Lock()
	d.inputs++
	d.mu.Unlock()
	if d.produce == nil {
		return
	}
	for _, f := range d.produce(data) {
		d.client.OnFrameDecoded(f)
	}
}

func (d *fakeDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// noLibrary is a codec library without a resampler.
type noLibrary struct{}

func (noLibrary) FindDecoder(string) (castkit.Codec, error) { return nil, castkit.ErrCodecNotFound }
func (noLibrary) NewParser(castkit.Codec) (castkit.Parser, error) { return nil, castkit.ErrCodecNotFound }
func (noLibrary) NewContext(castkit.Codec) (castkit.CodecContext, error) { return nil, castkit.ErrCodecNotFound }
func (noLibrary) NewPacket() (castkit.Packet, error) { return nil, castkit.ErrCodecNotFound }
func (noLibrary) NewFrame() (castkit.FrameBuffer, error) { return nil, castkit.ErrCodecNotFound }

type harness struct {
	p        *Player
	screen   *fakeScreen
	audio    *fakeAudio
	decoders map[string]*fakeDecoder
	acquired int
	released int

	mu     sync.Mutex
	events []sdl.Event
}

func (h *harness) pushEvent(e sdl.Event) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func newHarness(t *testing.T, cfg Config, produce map[string]func([]byte) []*castkit.Frame) *harness {
	t.Helper()
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = logging.LogLevelDisabled
	cfg.LoggerFactory = lf
	if cfg.Library == nil {
		cfg.Library = noLibrary{}
	}

	h := &harness{
		screen:   &fakeScreen{id: 7},
		audio:    &fakeAudio{},
		decoders: make(map[string]*fakeDecoder),
	}
	b := backend{
		acquire: func() error { h.acquired++; return nil },
		release: func() { h.released++ },
		pollEvent: func() sdl.Event {
			h.mu.Lock()
			defer h.mu.Unlock()
			if len(h.events) == 0 {
				return nil
			}
			e := h.events[0]
			h.events = h.events[1:]
			return e
		},
		screen: h.screen,
		audio:  h.audio,
		newDecoder: func(name string) decoder {
			d := &fakeDecoder{name: name, produce: produce[name]}
			h.decoders[name] = d
			return d
		},
	}
	h.p = newPlayer(cfg, b)
	t.Cleanup(func() { h.p.Close() })
	return h
}

func i420(w, h int) *castkit.Frame {
	cw, ch := w/2, h/2
	return &castkit.Frame{
		Width:       w,
		Height:      h,
		PixelFormat: castkit.PixelFormatI420,
		Data:        [][]byte{make([]byte, w*h), make([]byte, cw*ch), make([]byte, cw*ch)},
		Stride:      []int{w, cw, cw},
	}
}

func audioFrame(format castkit.SampleFormat, rate, channels, samples int) *castkit.Frame {
	f := &castkit.Frame{SampleFormat: format, SampleRate: rate, Channels: channels, NbSamples: samples}
	width := format.BytesPerSample()
	if format.IsPlanar() {
		for c := 0; c < channels; c++ {
			f.Data = append(f.Data, make([]byte, samples*width))
		}
	} else {
		f.Data = [][]byte{make([]byte, samples*width*channels)}
	}
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBufferSamples(t *testing.T) {
	tests := []struct {
		rate int
		want int
	}{
		{48000, 1024},
		{44100, 1024},
		{16000, 512},
		{8000, 256},
		{96000, 2048},
		{0, 1},
	}
	for _, tt := range tests {
		if got := bufferSamples(tt.rate); got != tt.want {
			t.Errorf("bufferSamples(%d) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestPlayer_ResizeDropsQueuedFrames(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	p := h.p
	video := &streamClient{p: p, kind: "video"}

	video.OnFrameDecoded(i420(640, 480))
	video.OnFrameDecoded(i420(640, 480))
	video.OnFrameDecoded(i420(640, 480))

	p.renderMu.Lock()
	queued := len(p.renderQueue)
	p.renderMu.Unlock()
	if queued != 3 {
		t.Fatalf("render queue = %d, want 3", queued)
	}

	video.OnFrameDecoded(i420(1280, 720))

	p.renderMu.Lock()
	n := len(p.renderQueue)
	last := p.renderQueue[n-1]
	p.renderMu.Unlock()
	if n != 1 || last.Width != 1280 {
		t.Errorf("render queue after resize = %d frames, want only the 1280x720 frame", n)
	}

	p.eventMu.Lock()
	events := append([]createWindowEvent(nil), p.events...)
	p.eventMu.Unlock()
	want := []createWindowEvent{{640, 480}, {1280, 720}}
	if len(events) != len(want) {
		t.Fatalf("window events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}

	if got := p.Stats().FramesDropped; got != 3 {
		t.Errorf("FramesDropped = %d, want 3", got)
	}

	p.handleCustomEvents()
	if got := h.screen.configures; len(got) != 2 || got[1] != [2]int{1280, 720} {
		t.Errorf("screen configures = %v", got)
	}
}

func TestPlayer_VideoFrameIsCloned(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	f := i420(4, 2)
	f.Data[0][0] = 1
	(&streamClient{p: h.p, kind: "video"}).OnFrameDecoded(f)
	f.Data[0][0] = 9

	h.p.renderMu.Lock()
	defer h.p.renderMu.Unlock()
	if h.p.renderQueue[0].Data[0][0] != 1 {
		t.Error("render queue aliases decoder memory")
	}
}

func TestPlayer_AudioDeviceSpec(t *testing.T) {
	tests := []struct {
		name       string
		format     castkit.SampleFormat
		rate       int
		channels   int
		samples    int
		wantFormat castkit.AudioFormat
		wantBytes  int
		wantBuffer int
	}{
		{"opus float planar", castkit.SampleFormatF32P, 48000, 2, 960, castkit.NativeF32(), 4 * 2 * 960, 1024},
		{"alac s16 planar", castkit.SampleFormatS16P, 44100, 2, 352, castkit.MapSampleFormat(castkit.SampleFormatS16), 2 * 2 * 352, 1024},
		{"aac float packed", castkit.SampleFormatF32, 44100, 2, 480, castkit.NativeF32(), 4 * 2 * 480, 1024},
		{"pcmu s16 mono", castkit.SampleFormatS16, 8000, 1, 160, castkit.MapSampleFormat(castkit.SampleFormatS16), 2 * 160, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig(), nil)
			audio := &streamClient{p: h.p, kind: "audio"}

			audio.OnFrameDecoded(audioFrame(tt.format, tt.rate, tt.channels, tt.samples))
			audio.OnFrameDecoded(audioFrame(tt.format, tt.rate, tt.channels, tt.samples))

			if len(h.audio.opened) != 1 {
				t.Fatalf("device opened %d times, want 1", len(h.audio.opened))
			}
			want := audioSpec{Freq: tt.rate, Format: tt.wantFormat, Channels: tt.channels, Samples: tt.wantBuffer}
			if got := h.audio.opened[0]; got != want {
				t.Errorf("spec = %+v, want %+v", got, want)
			}
			if len(h.audio.queued) != 2 {
				t.Fatalf("queued %d buffers, want 2", len(h.audio.queued))
			}
			for i, b := range h.audio.queued {
				if len(b) != tt.wantBytes {
					t.Errorf("buffer %d = %d bytes, want %d", i, len(b), tt.wantBytes)
				}
			}
			if s := h.p.Stats(); s.AudioFrames != 2 || s.AudioBytes != uint64(2*tt.wantBytes) {
				t.Errorf("Stats() = %+v", s)
			}
		})
	}
}

func TestPlayer_AudioUnknownFormat(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	audio := &streamClient{p: h.p, kind: "audio"}

	audio.OnFrameDecoded(audioFrame(castkit.SampleFormatF64P, 48000, 2, 960))
	audio.OnFrameDecoded(audioFrame(castkit.SampleFormatF64P, 48000, 2, 960))

	if len(h.audio.opened) != 0 || len(h.audio.queued) != 0 {
		t.Errorf("device used for 64-bit audio: opened %d, queued %d", len(h.audio.opened), len(h.audio.queued))
	}
}

func TestPlayer_AudioOpenFailureDropsFrames(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	h.audio.openErr = errors.New("no device")
	audio := &streamClient{p: h.p, kind: "audio"}

	audio.OnFrameDecoded(audioFrame(castkit.SampleFormatS16, 48000, 2, 960))
	audio.OnFrameDecoded(audioFrame(castkit.SampleFormatS16, 48000, 2, 960))

	if len(h.audio.queued) != 0 {
		t.Errorf("queued %d buffers without a device", len(h.audio.queued))
	}
	if got := h.p.Stats().AudioFrames; got != 0 {
		t.Errorf("AudioFrames = %d, want 0", got)
	}
}

func TestPlayer_AudioReopenOnFormatChange(t *testing.T) {
	tests := []struct {
		name       string
		reopen     bool
		wantOpens  int
		wantCloses int
	}{
		{"reopen", true, 2, 1},
		{"keep", false, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ReopenAudioOnFormatChange = tt.reopen
			h := newHarness(t, cfg, nil)
			audio := &streamClient{p: h.p, kind: "audio"}

			audio.OnFrameDecoded(audioFrame(castkit.SampleFormatF32P, 48000, 2, 960))
			audio.OnFrameDecoded(audioFrame(castkit.SampleFormatF32P, 44100, 2, 1024))

			if len(h.audio.opened) != tt.wantOpens {
				t.Errorf("opens = %d, want %d", len(h.audio.opened), tt.wantOpens)
			}
			if h.audio.closed != tt.wantCloses {
				t.Errorf("closes = %d, want %d", h.audio.closed, tt.wantCloses)
			}
		})
	}
}

func TestPlayer_StopIsIdempotent(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	p := h.p

	p.Stop()
	p.Stop()

	if err := p.Init("test", "opus", "vp8"); err != nil {
		t.Fatal(err)
	}
	p.Stop()
	p.Stop()

	done := make(chan error)
	go func() { done <- p.Play() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Play() after Stop = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Play did not return after Stop")
	}

	p.ProcessVideo([]byte{1})
	if s := p.Stats(); s.VideoPackets != 0 || s.VideoDropped != 1 {
		t.Errorf("packet after Stop: %+v", s)
	}
}

func TestPlayer_InitAndPlayErrors(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	if err := h.p.Play(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Play() before Init = %v, want ErrNotInitialized", err)
	}
	if err := h.p.Init("a", "opus", "vp8"); err != nil {
		t.Fatal(err)
	}
	if err := h.p.Init("a", "opus", "vp8"); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init() = %v, want ErrAlreadyInitialized", err)
	}
}

func TestPlayer_DisconnectOnce(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	p := h.p
	p.screen.Configure("t", 640, 480)

	calls := 0
	p.RegisterOnDisconnect(func() { calls++ })

	p.handleEvent(&sdl.WindowEvent{Type: sdl.WINDOWEVENT, WindowID: 99, Event: sdl.WINDOWEVENT_CLOSE})
	if calls != 0 || p.quit.Load() {
		t.Fatal("close of a foreign window disconnected the player")
	}

	p.handleEvent(&sdl.WindowEvent{Type: sdl.WINDOWEVENT, WindowID: 7, Event: sdl.WINDOWEVENT_CLOSE})
	p.handleEvent(&sdl.WindowEvent{Type: sdl.WINDOWEVENT, WindowID: 7, Event: sdl.WINDOWEVENT_CLOSE})
	p.handleEvent(&sdl.QuitEvent{Type: sdl.QUIT})

	if calls != 1 {
		t.Errorf("OnDisconnect calls = %d, want 1", calls)
	}
	if !p.quit.Load() {
		t.Error("quit not set by window close")
	}
}

type recordingHandler struct {
	down, up, moves, wheels, keysDown, keysUp int
}

func (r *recordingHandler) OnMouseDown(*sdl.MouseButtonEvent) { r.down++ }
func (r *recordingHandler) OnMouseUp(*sdl.MouseButtonEvent) { r.up++ }
func (r *recordingHandler) OnMouseMove(*sdl.MouseMotionEvent) { r.moves++ }
func (r *recordingHandler) OnMouseWheel(*sdl.MouseWheelEvent) { r.wheels++ }
func (r *recordingHandler) OnKeyDown(*sdl.KeyboardEvent) { r.keysDown++ }
func (r *recordingHandler) OnKeyUp(*sdl.KeyboardEvent) { r.keysUp++ }

func TestPlayer_RoutesInputEvents(t *testing.T) {
	rh := &recordingHandler{}
	cfg := DefaultConfig()
	cfg.EventHandler = rh
	h := newHarness(t, cfg, nil)
	p := h.p
	p.screen.Configure("t", 640, 480)

	p.handleEvent(&sdl.MouseButtonEvent{Type: sdl.MOUSEBUTTONDOWN, WindowID: 7})
	p.handleEvent(&sdl.MouseButtonEvent{Type: sdl.MOUSEBUTTONUP, WindowID: 7})
	p.handleEvent(&sdl.MouseMotionEvent{Type: sdl.MOUSEMOTION, WindowID: 7})
	p.handleEvent(&sdl.MouseMotionEvent{Type: sdl.MOUSEMOTION, WindowID: 3})
	p.handleEvent(&sdl.MouseWheelEvent{Type: sdl.MOUSEWHEEL, WindowID: 7})
	p.handleEvent(&sdl.KeyboardEvent{Type: sdl.KEYDOWN, WindowID: 7})
	p.handleEvent(&sdl.KeyboardEvent{Type: sdl.KEYUP, WindowID: 7})

	want := recordingHandler{down: 1, up: 1, moves: 1, wheels: 1, keysDown: 1, keysUp: 1}
	if *rh != want {
		t.Errorf("handler counts = %+v, want %+v", *rh, want)
	}
}

func TestPlayer_EndToEnd(t *testing.T) {
	produce := map[string]func([]byte) []*castkit.Frame{
		"vp8": func(data []byte) []*castkit.Frame {
			return []*castkit.Frame{i420(int(data[0])*2, int(data[0]))}
		},
		"opus": func([]byte) []*castkit.Frame {
			return []*castkit.Frame{audioFrame(castkit.SampleFormatF32P, 48000, 2, 960)}
		},
	}
	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	h := newHarness(t, cfg, produce)
	p := h.p

	if err := p.Init("e2e", "opus", "vp8"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Play() }()

	for i := 0; i < 3; i++ {
		p.ProcessVideo([]byte{8})
		p.ProcessAudio([]byte{1, 2, 3})
	}

	waitFor(t, "three rendered frames", func() bool { return p.Stats().Rendered == 3 })
	waitFor(t, "three audio frames", func() bool { return p.Stats().AudioFrames == 3 })

	h.pushEvent(&sdl.WindowEvent{Type: sdl.WINDOWEVENT, WindowID: 7, Event: sdl.WINDOWEVENT_CLOSE})
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Play() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after window close")
	}

	if err := p.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}

	h.screen.mu.Lock()
	configures := h.screen.configures
	h.screen.mu.Unlock()
	if len(configures) != 1 || configures[0] != [2]int{16, 8} {
		t.Errorf("configures = %v, want [[16 8]]", configures)
	}
	for name, d := range h.decoders {
		if d.inputs != 3 {
			t.Errorf("%s decoder inputs = %d, want 3", name, d.inputs)
		}
		if d.closed != 1 {
			t.Errorf("%s decoder closed %d times, want 1", name, d.closed)
		}
	}
	if h.acquired != 1 || h.released != 1 {
		t.Errorf("sdl refs acquired %d released %d, want 1 and 1", h.acquired, h.released)
	}
	if h.screen.closed != 1 || h.audio.closed != 1 {
		t.Errorf("screen closed %d, audio closed %d; want 1 each", h.screen.closed, h.audio.closed)
	}
}

func TestPlayer_CloseWaitsForPlay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	h := newHarness(t, cfg, nil)
	p := h.p
	if err := p.Init("close", "opus", "vp8"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Play() }()
	waitFor(t, "Play to start", p.playing.Load)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if p.playing.Load() {
		t.Fatal("Close returned while Play was still running")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Play() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return")
	}
	h.screen.mu.Lock()
	closed := h.screen.closed
	h.screen.mu.Unlock()
	if closed != 1 || h.released != 1 {
		t.Errorf("screen closed %d, sdl released %d; want 1 each", closed, h.released)
	}
}

func TestPlayer_StopFromPlayCallback(t *testing.T) {
	tests := []struct {
		name         string
		call         func(p *Player)
		wantClosed   int
		wantReleased int
	}{
		{"stop", func(p *Player) { p.Stop() }, 0, 0},
		{"close", func(p *Player) { _ = p.Close() }, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TickInterval = time.Millisecond
			h := newHarness(t, cfg, nil)
			p := h.p
			if err := p.Init("cb", "opus", "vp8"); err != nil {
				t.Fatal(err)
			}
			p.RegisterOnDisconnect(func() { tt.call(p) })

			done := make(chan error, 1)
			go func() { done <- p.Play() }()
			h.pushEvent(&sdl.WindowEvent{Type: sdl.WINDOWEVENT, WindowID: 7, Event: sdl.WINDOWEVENT_CLOSE})

			select {
			case err := <-done:
				if err != nil {
					t.Errorf("Play() = %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Play did not return after a callback stopped it")
			}

			h.screen.mu.Lock()
			closed := h.screen.closed
			h.screen.mu.Unlock()
			if closed != tt.wantClosed || h.released != tt.wantReleased {
				t.Errorf("screen closed %d, sdl released %d; want %d and %d",
					closed, h.released, tt.wantClosed, tt.wantReleased)
			}
		})
	}
}

func TestPlayer_CloseIsIdempotent(t *testing.T) {
	h := newHarness(t, DefaultConfig(), nil)
	if err := h.p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.p.Close(); err != nil {
		t.Fatal(err)
	}
	if h.released != 1 {
		t.Errorf("released = %d, want 1", h.released)
	}
}

func TestPlayer_WindowingUnavailable(t *testing.T) {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = logging.LogLevelDisabled
	released := 0
	p := newPlayer(Config{LoggerFactory: lf, Library: noLibrary{}}, backend{
		acquire:    func() error { return errors.New("no display") },
		release:    func() { released++ },
		screen:     &fakeScreen{},
		audio:      &fakeAudio{},
		newDecoder: func(string) decoder { return &fakeDecoder{} },
	})

	(&streamClient{p: p, kind: "video"}).OnFrameDecoded(i420(4, 2))
	(&streamClient{p: p, kind: "audio"}).OnFrameDecoded(audioFrame(castkit.SampleFormatS16, 8000, 1, 160))
	p.render()
	p.handleCustomEvents()

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if released != 0 {
		t.Error("released an SDL reference that was never taken")
	}
}

func TestPlayer_Dumpers(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DumpVideoPath = filepath.Join(dir, "v.yuv")
	cfg.DumpAudioPath = filepath.Join(dir, "a.pcm")
	h := newHarness(t, cfg, nil)
	if err := h.p.Init("dump", "opus", "vp8"); err != nil {
		t.Fatal(err)
	}

	(&streamClient{p: h.p, kind: "video"}).OnFrameDecoded(i420(4, 2))
	(&streamClient{p: h.p, kind: "audio"}).OnFrameDecoded(audioFrame(castkit.SampleFormatS16, 8000, 1, 160))
	if err := h.p.Close(); err != nil {
		t.Fatal(err)
	}

	if fi, err := os.Stat(cfg.DumpVideoPath); err != nil || fi.Size() != int64(castkit.I420Size(4, 2)) {
		t.Errorf("video dump: %v, size %v", err, fi)
	}
	if fi, err := os.Stat(cfg.DumpAudioPath); err != nil || fi.Size() != 320 {
		t.Errorf("audio dump: %v, size %v", err, fi)
	}
}

func TestConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "castkit.yaml")
	data := "player:\n  queue_capacity: 16\n  queue_policy: block\n  tick_interval: 5ms\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := castkit.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := ConfigFromFile(fc)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QueueCapacity != 16 || cfg.QueuePolicy != QueueBlock || cfg.TickInterval != 5*time.Millisecond {
		t.Errorf("ConfigFromFile() = %+v", cfg)
	}
	if !cfg.ReopenAudioOnFormatChange {
		t.Error("default ReopenAudioOnFormatChange lost")
	}
	if cfg.LoggerFactory == nil {
		t.Error("LoggerFactory not set")
	}
}
