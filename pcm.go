package castkit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnknownSampleFormat is returned when audio cannot be mapped to a host format.
var ErrUnknownSampleFormat = errors.New("unknown sample format")

// InterleavePlanar packs N equal-length planes of sampleSize-byte elements into
// one buffer ordered ch0[0], ch1[0], ..., chN-1[0], ch0[1], ...
func InterleavePlanar(planes [][]byte, numSamples, sampleSize int) ([]byte, error) {
	if len(planes) == 0 || numSamples <= 0 {
		return nil, nil
	}
	for i, p := range planes {
		if len(p) < numSamples*sampleSize {
			return nil, fmt.Errorf("plane %d holds %d bytes, need %d", i, len(p), numSamples*sampleSize)
		}
	}

	channels := len(planes)
	out := make([]byte, channels*numSamples*sampleSize)

	switch sampleSize {
	case 1:
		for c, p := range planes {
			for s, o := 0, c; s < numSamples; s, o = s+1, o+channels {
				out[o] = p[s]
			}
		}
	case 2:
		step := channels * 2
		for c, p := range planes {
			for s, o := 0, c*2; s < numSamples; s, o = s+1, o+step {
				i := s * 2
				out[o], out[o+1] = p[i], p[i+1]
			}
		}
	case 4:
		step := channels * 4
		for c, p := range planes {
			for s, o := 0, c*4; s < numSamples; s, o = s+1, o+step {
				i := s * 4
				out[o], out[o+1], out[o+2], out[o+3] = p[i], p[i+1], p[i+2], p[i+3]
			}
		}
	default:
		if sampleSize <= 0 {
			return nil, fmt.Errorf("invalid sample size %d", sampleSize)
		}
		step := channels * sampleSize
		for c, p := range planes {
			for s, o := 0, c*sampleSize; s < numSamples; s, o = s+1, o+step {
				copy(out[o:o+sampleSize], p[s*sampleSize:(s+1)*sampleSize])
			}
		}
	}
	return out, nil
}

// InterleaveFrame packs a planar audio frame without changing its element type.
// Packed frames are returned as a slice of their first plane.
func InterleaveFrame(f *Frame) ([]byte, error) {
	width := f.SampleFormat.BytesPerSample()
	if width == 0 {
		return nil, ErrUnknownSampleFormat
	}
	if !f.SampleFormat.IsPlanar() {
		n := f.AudioBytes()
		if len(f.Data) == 0 || len(f.Data[0]) < n {
			return nil, fmt.Errorf("packed plane shorter than %d bytes", n)
		}
		return f.Data[0][:n], nil
	}
	if len(f.Data) < f.Channels {
		return nil, fmt.Errorf("frame has %d planes for %d channels", len(f.Data), f.Channels)
	}
	return InterleavePlanar(f.Data[:f.Channels], f.NbSamples, width)
}

// interleaveToF32 converts any supported frame to packed native-endian float32.
// It is the fallback when the codec library offers no resampler.
func interleaveToF32(f *Frame) ([]byte, error) {
	width := f.SampleFormat.BytesPerSample()
	if width == 0 {
		return nil, ErrUnknownSampleFormat
	}
	planar := f.SampleFormat.IsPlanar()
	if planar && len(f.Data) < f.Channels || !planar && len(f.Data) < 1 {
		return nil, fmt.Errorf("frame has %d planes for %d channels", len(f.Data), f.Channels)
	}

	out := make([]byte, f.NbSamples*f.Channels*4)
	order := binary.NativeEndian
	packedFmt := f.SampleFormat.Packed()

	for s := 0; s < f.NbSamples; s++ {
		for c := 0; c < f.Channels; c++ {
			var src []byte
			if planar {
				off := s * width
				src = f.Data[c][off : off+width]
			} else {
				off := (s*f.Channels + c) * width
				src = f.Data[0][off : off+width]
			}

			var v float32
			switch packedFmt {
			case SampleFormatU8:
				v = (float32(src[0]) - 128) / 128
			case SampleFormatS16:
				v = float32(int16(order.Uint16(src))) / 32768
			case SampleFormatS32:
				v = float32(float64(int32(order.Uint32(src))) / 2147483648)
			case SampleFormatF32:
				v = math.Float32frombits(order.Uint32(src))
			case SampleFormatF64:
				v = float32(math.Float64frombits(order.Uint64(src)))
			case SampleFormatS64:
				v = float32(float64(int64(order.Uint64(src))) / 9223372036854775808)
			}
			o := (s*f.Channels + c) * 4
			order.PutUint32(out[o:], math.Float32bits(v))
		}
	}
	return out, nil
}
