//go:build (darwin || linux) && (amd64 || arm64)

package castkit

import (
	"fmt"
	"runtime"
	"unsafe"
)

var _ ResamplerFactory = (*FFmpeg)(nil)

// NewResampler implements ResamplerFactory with an identity libswresample
// context: same rate and layout, packed float32 output.
func (l *FFmpeg) NewResampler() (Resampler, error) {
	return &swrResampler{}, nil
}

type swrKey struct {
	format   SampleFormat
	rate     int
	channels int
}

type swrResampler struct {
	ctx uintptr
	key swrKey
	in  []uintptr
	out [1]uintptr
}

func (r *swrResampler) ToPackedF32(f *Frame) ([]byte, error) {
	if f.SampleFormat == SampleFormatF32 {
		n := f.AudioBytes()
		if len(f.Data) == 0 || len(f.Data[0]) < n {
			return nil, fmt.Errorf("packed plane shorter than %d bytes", n)
		}
		out := make([]byte, n)
		copy(out, f.Data[0])
		return out, nil
	}
	if !hasSwresample {
		return interleaveToF32(f)
	}
	if f.NbSamples <= 0 || f.Channels <= 0 {
		return nil, nil
	}
	if err := r.configure(swrKey{f.SampleFormat, f.SampleRate, f.Channels}); err != nil {
		return nil, err
	}

	planes := 1
	if f.SampleFormat.IsPlanar() {
		planes = f.Channels
	}
	if len(f.Data) < planes {
		return nil, fmt.Errorf("frame has %d planes for %d channels", len(f.Data), f.Channels)
	}
	r.in = r.in[:0]
	for i := 0; i < planes; i++ {
		if len(f.Data[i]) == 0 {
			return nil, fmt.Errorf("plane %d is empty", i)
		}
		r.in = append(r.in, uintptr(unsafe.Pointer(&f.Data[i][0])))
	}

	out := make([]byte, f.NbSamples*f.Channels*4)
	r.out[0] = uintptr(unsafe.Pointer(&out[0]))
	n := swrConvert(r.ctx, &r.out[0], int32(f.NbSamples), &r.in[0], int32(f.NbSamples))
	runtime.KeepAlive(f)
	runtime.KeepAlive(out)
	if n < 0 {
		return nil, Errno(n)
	}
	return out[:int(n)*f.Channels*4], nil
}

func (r *swrResampler) configure(key swrKey) error {
	if r.ctx != 0 && r.key == key {
		return nil
	}
	r.free()

	var layout avChannelLayout
	avChannelLayoutDefault(&layout, int32(key.channels))
	defer avChannelLayoutUninit(&layout)

	var ctx uintptr
	ret := swrAllocSetOpts2(&ctx,
		&layout, int32(SampleFormatF32), int32(key.rate),
		&layout, int32(key.format), int32(key.rate),
		0, 0)
	if ret < 0 {
		return Errno(ret)
	}
	if ret := swrInit(ctx); ret < 0 {
		swrFree(&ctx)
		return Errno(ret)
	}
	r.ctx, r.key = ctx, key
	return nil
}

func (r *swrResampler) free() {
	if r.ctx != 0 {
		swrFree(&r.ctx)
		r.ctx = 0
	}
}

func (r *swrResampler) Close() error {
	if r == nil {
		return nil
	}
	r.free()
	return nil
}
