package castkit

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrUnsupportedPixelFormat is returned when a dumper cannot write a frame's layout.
var ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")

// YUVDumper appends I420 frames to a raw .yuv file.
type YUVDumper struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// NewYUVDumper creates a dumper for path. The file is opened on the first write.
func NewYUVDumper(path string) *YUVDumper {
	return &YUVDumper{path: path}
}

// WriteFrame appends the Y, U and V planes, W*H, W*H/4 and W*H/4 bytes.
// Row padding is dropped.
func (d *YUVDumper) WriteFrame(f *Frame) error {
	if !f.IsVideo() {
		return fmt.Errorf("not a video frame")
	}
	if !f.PixelFormat.IsYUV420() {
		return fmt.Errorf("%w: %s", ErrUnsupportedPixelFormat, f.PixelFormat)
	}
	if len(f.Data) < 3 || len(f.Stride) < 3 {
		return fmt.Errorf("frame has %d planes, want 3", len(f.Data))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.open(); err != nil {
		return err
	}

	cw, ch := f.Width/2, f.Height/2
	sizes := [3][2]int{{f.Width, f.Height}, {cw, ch}, {cw, ch}}
	for i, sz := range sizes {
		if err := writeRows(d.f, f.Data[i], f.Stride[i], sz[0], sz[1]); err != nil {
			return fmt.Errorf("write plane %d: %w", i, err)
		}
	}
	return nil
}

func (d *YUVDumper) open() error {
	if d.f != nil {
		return nil
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	d.f = f
	return nil
}

// Close closes the file.
func (d *YUVDumper) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func writeRows(w *os.File, plane []byte, stride, width, height int) error {
	if stride == width {
		n := width * height
		if len(plane) < n {
			return fmt.Errorf("plane holds %d bytes, need %d", len(plane), n)
		}
		_, err := w.Write(plane[:n])
		return err
	}
	for y := 0; y < height; y++ {
		off := y * stride
		if off+width > len(plane) {
			return fmt.Errorf("row %d out of range", y)
		}
		if _, err := w.Write(plane[off : off+width]); err != nil {
			return err
		}
	}
	return nil
}

// PCMDumper appends packed PCM to a raw file.
type PCMDumper struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// NewPCMDumper creates a dumper for path. The file is opened on the first write.
func NewPCMDumper(path string) *PCMDumper {
	return &PCMDumper{path: path}
}

// WriteFrame appends bytes-per-sample * samples * channels bytes. Planar
// frames are interleaved first.
func (d *PCMDumper) WriteFrame(f *Frame) error {
	data, err := InterleaveFrame(f)
	if err != nil {
		return err
	}
	return d.Write(data)
}

// Write appends already packed samples.
func (d *PCMDumper) Write(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open %s: %w", d.path, err)
		}
		d.f = f
	}
	_, err := d.f.Write(data)
	return err
}

// Close closes the file.
func (d *PCMDumper) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
