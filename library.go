package castkit

import "errors"

var (
	// ErrLibraryNotLoaded is returned when the native codec library cannot be opened.
	ErrLibraryNotLoaded = errors.New("codec library not loaded")

	// ErrCodecNotFound is returned when no decoder is registered under a name.
	ErrCodecNotFound = errors.New("codec not found")
)

// CodecLibrary is the codec runtime a Decoder drives. Every object it hands
// out is a scoped handle: Close releases the native resource, is idempotent,
// and is safe on a nil handle.
type CodecLibrary interface {
	// FindDecoder looks a decoder up by its registered name.
	FindDecoder(name string) (Codec, error)

	NewParser(codec Codec) (Parser, error)
	NewContext(codec Codec) (CodecContext, error)
	NewPacket() (Packet, error)
	NewFrame() (FrameBuffer, error)
}

// Codec describes a decoder found in the library.
type Codec interface {
	Name() string
	// CanonicalName is the library's name for the codec id, e.g. "aac" for "libfdk_aac".
	CanonicalName() string
}

// Parser splits a byte stream into codec packets and records stream
// parameters on the context as a side effect.
type Parser interface {
	// Parse consumes data and points pkt at the parser's output, which is
	// empty while the parser buffers. Check pkt.Len before submitting it.
	Parse(ctx CodecContext, pkt Packet, data []byte) (consumed int, err error)
	Close() error
}

// CodecContext is one configured decoder instance.
type CodecContext interface {
	SetExtradata(b []byte) error
	SetSampleRate(rate int) error
	SetBitsPerSample(bits int) error
	SetDefaultChannelLayout(channels int) error
	SetThreadCount(n int) error
	Open() error

	SendPacket(pkt Packet) error
	// ReceiveFrame returns an error satisfying IsAgain when more input is needed.
	ReceiveFrame(frame FrameBuffer) error

	Close() error
}

// Packet is a reusable input packet. SetData makes the packet reference b
// until the next SetData; the library copies it on submission. An empty
// packet is the codec's flush signal and must not be sent mid-stream.
type Packet interface {
	SetData(b []byte)
	Len() int
	Close() error
}

// FrameBuffer is a reusable output frame.
type FrameBuffer interface {
	// Frame returns a view of the decoded data, valid until Unref.
	Frame() *Frame
	Unref()
	Close() error
}

// ResamplerFactory is implemented by libraries that can repack audio.
type ResamplerFactory interface {
	NewResampler() (Resampler, error)
}

// Resampler converts audio frames to packed native-endian float32 at the
// same rate and channel layout.
type Resampler interface {
	ToPackedF32(f *Frame) ([]byte, error)
	Close() error
}

// InterleaveAudioFrame returns the frame as packed float32 samples. It uses r
// when non-nil and a Go conversion otherwise.
func InterleaveAudioFrame(f *Frame, r Resampler) ([]byte, error) {
	if r != nil {
		return r.ToPackedF32(f)
	}
	return interleaveToF32(f)
}
