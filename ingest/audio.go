package ingest

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// OpusDepacketizer returns one frame per packet.
type OpusDepacketizer struct {
	pkt codecs.OpusPacket
}

// Depacketize implements Depacketizer.
func (d *OpusDepacketizer) Depacketize(pkt *rtp.Packet) (*Frame, error) {
	payload, err := d.pkt.Unmarshal(pkt.Payload)
	if err != nil {
		return nil, fmt.Errorf("opus: %w", err)
	}
	return &Frame{Data: append([]byte(nil), payload...), Keyframe: true, Timestamp: pkt.Timestamp}, nil
}

// Reset implements Depacketizer.
func (d *OpusDepacketizer) Reset() {}

// PassthroughDepacketizer copies each payload as-is, which is all G.711
// needs.
type PassthroughDepacketizer struct{}

// Depacketize implements Depacketizer.
func (PassthroughDepacketizer) Depacketize(pkt *rtp.Packet) (*Frame, error) {
	if len(pkt.Payload) == 0 {
		return nil, nil
	}
	return &Frame{Data: append([]byte(nil), pkt.Payload...), Keyframe: true, Timestamp: pkt.Timestamp}, nil
}

// Reset implements Depacketizer.
func (PassthroughDepacketizer) Reset() {}
