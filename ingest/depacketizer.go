package ingest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/thesyncim/castkit"
)

// ErrNoDepacketizer is returned when no depacketizer is registered for a codec.
var ErrNoDepacketizer = errors.New("ingest: no depacketizer for codec")

// Depacketizer reassembles RTP packets into access units.
type Depacketizer interface {
	// Depacketize consumes one packet and returns a frame once one is
	// complete, or nil while a frame is still being assembled.
	Depacketize(pkt *rtp.Packet) (*Frame, error)

	// Reset drops any partial frame.
	Reset()
}

// DepacketizerFactory creates a Depacketizer.
type DepacketizerFactory func() Depacketizer

type registry struct {
	mu    sync.RWMutex
	video map[castkit.VideoCodec]DepacketizerFactory
	audio map[castkit.AudioCodec]DepacketizerFactory
}

var depacketizers = &registry{
	video: make(map[castkit.VideoCodec]DepacketizerFactory),
	audio: make(map[castkit.AudioCodec]DepacketizerFactory),
}

// RegisterVideoDepacketizer registers factory for codec, replacing any
// previous registration.
func RegisterVideoDepacketizer(codec castkit.VideoCodec, factory DepacketizerFactory) {
	depacketizers.mu.Lock()
	defer depacketizers.mu.Unlock()
	depacketizers.video[codec] = factory
}

// RegisterAudioDepacketizer registers factory for codec.
func RegisterAudioDepacketizer(codec castkit.AudioCodec, factory DepacketizerFactory) {
	depacketizers.mu.Lock()
	defer depacketizers.mu.Unlock()
	depacketizers.audio[codec] = factory
}

// NewVideoDepacketizer creates a depacketizer for codec.
func NewVideoDepacketizer(codec castkit.VideoCodec) (Depacketizer, error) {
	depacketizers.mu.RLock()
	factory, ok := depacketizers.video[codec]
	depacketizers.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDepacketizer, codec)
	}
	return factory(), nil
}

// NewAudioDepacketizer creates a depacketizer for codec.
func NewAudioDepacketizer(codec castkit.AudioCodec) (Depacketizer, error) {
	depacketizers.mu.RLock()
	factory, ok := depacketizers.audio[codec]
	depacketizers.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDepacketizer, codec)
	}
	return factory(), nil
}

// DepacketizeBytes unmarshals raw packet bytes and hands them to d.
func DepacketizeBytes(d Depacketizer, b []byte) (*Frame, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(b); err != nil {
		return nil, err
	}
	return d.Depacketize(&pkt)
}

// IsRTPTimestampOlder reports whether ts1 is at or before ts2, allowing
// for 32-bit wraparound.
func IsRTPTimestampOlder(ts1, ts2 uint32) bool {
	return ts2-ts1 < 0x80000000
}

func init() {
	RegisterVideoDepacketizer(castkit.VideoCodecH264, func() Depacketizer { return &H264Depacketizer{} })
	RegisterVideoDepacketizer(castkit.VideoCodecVP8, func() Depacketizer { return &VP8Depacketizer{} })
	RegisterVideoDepacketizer(castkit.VideoCodecVP9, func() Depacketizer { return &VP9Depacketizer{} })
	RegisterAudioDepacketizer(castkit.AudioCodecOpus, func() Depacketizer { return &OpusDepacketizer{} })
	RegisterAudioDepacketizer(castkit.AudioCodecG711A, func() Depacketizer { return &PassthroughDepacketizer{} })
	RegisterAudioDepacketizer(castkit.AudioCodecG711U, func() Depacketizer { return &PassthroughDepacketizer{} })
}
