package player

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/thesyncim/castkit"
)

var errNoTexture = errors.New("no texture")

// presenter owns the window, renderer and texture. UI thread only.
type presenter interface {
	// Configure (re)creates the window for a w x h video. It is a no-op when
	// the current window already has that size.
	Configure(title string, w, h int) error
	// Present uploads the three YUV planes and shows them.
	Present(f *castkit.Frame) error
	// WindowID returns the owned window's id, or 0 when there is none.
	WindowID() uint32
	Close() error
}

// audioSpec is a negotiated audio device configuration.
type audioSpec struct {
	Freq     int
	Format   castkit.AudioFormat
	Channels int
	Samples  int
}

// audioSink is a host audio device in queue mode. Open and Queue may be
// called from a worker goroutine.
type audioSink interface {
	Open(spec audioSpec) error
	Queue(b []byte) error
	Close()
}

// bufferSamples returns the smallest power of two holding 20 ms at rate.
func bufferSamples(rate int) int {
	required := rate * 20 / 1000
	n := 1
	for n < required && n < 1<<15 {
		n <<= 1
	}
	return n
}

type sdlPresenter struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	id       uint32
	w, h     int
}

func (s *sdlPresenter) Configure(title string, w, h int) error {
	if s.window != nil && s.texture != nil && s.w == w && s.h == h {
		return nil
	}
	if err := s.Close(); err != nil {
		return err
	}

	win, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(w), int32(h), sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	s.window = win
	if s.id, err = win.GetID(); err != nil {
		return fmt.Errorf("window id: %w", err)
	}

	sdl.SetHint(sdl.HINT_RENDER_SCALE_QUALITY, "linear")

	if s.renderer, err = sdl.CreateRenderer(win, -1, sdl.RENDERER_ACCELERATED); err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	s.texture, err = s.renderer.CreateTexture(uint32(sdl.PIXELFORMAT_IYUV), sdl.TEXTUREACCESS_STREAMING, int32(w), int32(h))
	if err != nil {
		return fmt.Errorf("create texture: %w", err)
	}
	s.w, s.h = w, h
	return nil
}

func (s *sdlPresenter) Present(f *castkit.Frame) error {
	if s.texture == nil {
		return errNoTexture
	}
	if !f.PixelFormat.IsYUV420() || len(f.Data) < 3 || len(f.Stride) < 3 {
		return fmt.Errorf("%w: %s", castkit.ErrUnsupportedPixelFormat, f.PixelFormat)
	}
	if err := s.texture.UpdateYUV(nil, f.Data[0], f.Stride[0], f.Data[1], f.Stride[1], f.Data[2], f.Stride[2]); err != nil {
		return fmt.Errorf("update texture: %w", err)
	}
	if err := s.renderer.Clear(); err != nil {
		return err
	}
	if err := s.renderer.Copy(s.texture, nil, nil); err != nil {
		return err
	}
	s.renderer.Present()
	return nil
}

func (s *sdlPresenter) WindowID() uint32 {
	return s.id
}

func (s *sdlPresenter) Close() error {
	var result *multierror.Error
	if s.texture != nil {
		result = multierror.Append(result, s.texture.Destroy())
		s.texture = nil
	}
	if s.renderer != nil {
		result = multierror.Append(result, s.renderer.Destroy())
		s.renderer = nil
	}
	if s.window != nil {
		result = multierror.Append(result, s.window.Destroy())
		s.window = nil
	}
	s.id, s.w, s.h = 0, 0, 0
	return result.ErrorOrNil()
}

type sdlAudio struct {
	dev sdl.AudioDeviceID
}

func (a *sdlAudio) Open(spec audioSpec) error {
	desired := sdl.AudioSpec{
		Freq:     int32(spec.Freq),
		Format:   sdl.AudioFormat(spec.Format),
		Channels: uint8(spec.Channels),
		Samples:  uint16(spec.Samples),
	}
	dev, err := sdl.OpenAudioDevice("", false, &desired, nil, 0)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	a.dev = dev
	sdl.PauseAudioDevice(dev, false)
	return nil
}

func (a *sdlAudio) Queue(b []byte) error {
	if a.dev == 0 {
		return errors.New("audio device not open")
	}
	return sdl.QueueAudio(a.dev, b)
}

func (a *sdlAudio) Close() {
	if a.dev != 0 {
		sdl.CloseAudioDevice(a.dev)
		a.dev = 0
	}
}
