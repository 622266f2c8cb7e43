package castkit

// SampleFormat is the codec library's audio sample format tag.
type SampleFormat int

const (
	SampleFormatNone SampleFormat = -1
	SampleFormatU8   SampleFormat = 0
	SampleFormatS16  SampleFormat = 1
	SampleFormatS32  SampleFormat = 2
	SampleFormatF32  SampleFormat = 3
	SampleFormatF64  SampleFormat = 4
	SampleFormatU8P  SampleFormat = 5
	SampleFormatS16P SampleFormat = 6
	SampleFormatS32P SampleFormat = 7
	SampleFormatF32P SampleFormat = 8
	SampleFormatF64P SampleFormat = 9
	SampleFormatS64  SampleFormat = 10
	SampleFormatS64P SampleFormat = 11
)

func (s SampleFormat) String() string {
	switch s {
	case SampleFormatU8:
		return "u8"
	case SampleFormatS16:
		return "s16"
	case SampleFormatS32:
		return "s32"
	case SampleFormatF32:
		return "flt"
	case SampleFormatF64:
		return "dbl"
	case SampleFormatU8P:
		return "u8p"
	case SampleFormatS16P:
		return "s16p"
	case SampleFormatS32P:
		return "s32p"
	case SampleFormatF32P:
		return "fltp"
	case SampleFormatF64P:
		return "dblp"
	case SampleFormatS64:
		return "s64"
	case SampleFormatS64P:
		return "s64p"
	default:
		return "none"
	}
}

// IsPlanar reports whether each channel lives in its own plane.
func (s SampleFormat) IsPlanar() bool {
	switch s {
	case SampleFormatU8P, SampleFormatS16P, SampleFormatS32P, SampleFormatF32P, SampleFormatF64P, SampleFormatS64P:
		return true
	default:
		return false
	}
}

// Packed returns the interleaved counterpart of a planar format.
func (s SampleFormat) Packed() SampleFormat {
	switch s {
	case SampleFormatU8P:
		return SampleFormatU8
	case SampleFormatS16P:
		return SampleFormatS16
	case SampleFormatS32P:
		return SampleFormatS32
	case SampleFormatF32P:
		return SampleFormatF32
	case SampleFormatF64P:
		return SampleFormatF64
	case SampleFormatS64P:
		return SampleFormatS64
	default:
		return s
	}
}

// BytesPerSample returns the element width of one sample of one channel.
func (s SampleFormat) BytesPerSample() int {
	switch s.Packed() {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatF32:
		return 4
	case SampleFormatF64, SampleFormatS64:
		return 8
	default:
		return 0
	}
}

// AudioFormat is a host audio device format tag. Values are bit-compatible
// with SDL's AUDIO_* constants: low byte is the bit size, bit 8 float,
// bit 12 big-endian, bit 15 signed.
type AudioFormat uint16

const (
	AudioFormatUnknown AudioFormat = 0
	AudioFormatU8      AudioFormat = 0x0008
	AudioFormatS16LSB  AudioFormat = 0x8010
	AudioFormatS16MSB  AudioFormat = 0x9010
	AudioFormatS32LSB  AudioFormat = 0x8020
	AudioFormatS32MSB  AudioFormat = 0x9020
	AudioFormatF32LSB  AudioFormat = 0x8120
	AudioFormatF32MSB  AudioFormat = 0x9120
)

func (a AudioFormat) String() string {
	switch a {
	case AudioFormatU8:
		return "U8"
	case AudioFormatS16LSB:
		return "S16LSB"
	case AudioFormatS16MSB:
		return "S16MSB"
	case AudioFormatS32LSB:
		return "S32LSB"
	case AudioFormatS32MSB:
		return "S32MSB"
	case AudioFormatF32LSB:
		return "F32LSB"
	case AudioFormatF32MSB:
		return "F32MSB"
	default:
		return "Unknown"
	}
}

// BytesPerSample returns the element width of the format.
func (a AudioFormat) BytesPerSample() int {
	return int(a&0xFF) / 8
}

// Native host formats, resolved against the byte order of this machine.
func nativeS16() AudioFormat {
	if IsBigEndian() {
		return AudioFormatS16MSB
	}
	return AudioFormatS16LSB
}

func nativeS32() AudioFormat {
	if IsBigEndian() {
		return AudioFormatS32MSB
	}
	return AudioFormatS32LSB
}

func nativeF32() AudioFormat {
	if IsBigEndian() {
		return AudioFormatF32MSB
	}
	return AudioFormatF32LSB
}

// MapSampleFormat maps a codec sample format to the host audio device format.
// Planar and packed variants map to the same host format. 64-bit and unknown
// formats return AudioFormatUnknown and the caller must not open a device.
func MapSampleFormat(s SampleFormat) AudioFormat {
	switch s {
	case SampleFormatU8, SampleFormatU8P:
		return AudioFormatU8
	case SampleFormatS16, SampleFormatS16P:
		return nativeS16()
	case SampleFormatS32, SampleFormatS32P:
		return nativeS32()
	case SampleFormatF32, SampleFormatF32P:
		return nativeF32()
	default:
		return AudioFormatUnknown
	}
}

// NativeF32 is the host format produced by InterleaveAudioFrame.
func NativeF32() AudioFormat {
	return nativeF32()
}
