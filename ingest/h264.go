package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

const (
	nalTypeIDR   = 5
	nalTypeSTAPA = 24
	nalTypeFUA   = 28
)

var annexBStartCode = []byte{0, 0, 0, 1}

// H264Depacketizer reassembles RFC 6184 packets (single NAL, STAP-A and
// FU-A) into Annex-B access units. A frame ends on the marker bit.
type H264Depacketizer struct {
	mu          sync.Mutex
	frame       []byte // Annex-B NAL units of the current access unit
	fua         []byte // NAL unit being reassembled from FU-A fragments
	fragmenting bool
	started     bool
	timestamp   uint32
	key         bool
}

// Depacketize implements Depacketizer.
func (d *H264Depacketizer) Depacketize(pkt *rtp.Packet) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pkt.Payload) == 0 {
		return nil, nil
	}

	// A new timestamp without a marker means the previous frame lost its tail.
	if d.started && d.timestamp != pkt.Timestamp {
		d.reset()
	}
	d.started = true
	d.timestamp = pkt.Timestamp

	switch nalType := pkt.Payload[0] & 0x1F; {
	case nalType >= 1 && nalType <= 23:
		d.appendNAL(pkt.Payload)
	case nalType == nalTypeSTAPA:
		if err := d.stapA(pkt.Payload); err != nil {
			return nil, err
		}
	case nalType == nalTypeFUA:
		if err := d.fuA(pkt.Payload); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("h264: unsupported NAL type %d", nalType)
	}

	if !pkt.Marker || len(d.frame) == 0 {
		return nil, nil
	}
	f := &Frame{
		Data:      append([]byte(nil), d.frame...),
		Keyframe:  d.key,
		Timestamp: d.timestamp,
	}
	d.reset()
	return f, nil
}

func (d *H264Depacketizer) appendNAL(nal []byte) {
	if nal[0]&0x1F == nalTypeIDR {
		d.key = true
	}
	d.frame = append(d.frame, annexBStartCode...)
	d.frame = append(d.frame, nal...)
}

func (d *H264Depacketizer) stapA(payload []byte) error {
	for off := 1; off < len(payload); {
		if off+2 > len(payload) {
			return errors.New("h264: truncated STAP-A size")
		}
		size := int(binary.BigEndian.Uint16(payload[off:]))
		off += 2
		if size == 0 || off+size > len(payload) {
			return errors.New("h264: truncated STAP-A unit")
		}
		d.appendNAL(payload[off : off+size])
		off += size
	}
	return nil
}

func (d *H264Depacketizer) fuA(payload []byte) error {
	if len(payload) < 2 {
		return errors.New("h264: FU-A packet too short")
	}
	indicator, header := payload[0], payload[1]
	start, end := header&0x80 != 0, header&0x40 != 0

	if start {
		d.fua = append(d.fua[:0], indicator&0xE0|header&0x1F)
		d.fragmenting = true
	}
	if !d.fragmenting {
		// Lost the start fragment; wait for the next one.
		return nil
	}
	d.fua = append(d.fua, payload[2:]...)
	if end {
		d.appendNAL(d.fua)
		d.fua = d.fua[:0]
		d.fragmenting = false
	}
	return nil
}

func (d *H264Depacketizer) reset() {
	d.frame = d.frame[:0]
	d.fua = d.fua[:0]
	d.fragmenting = false
	d.key = false
}

// Reset implements Depacketizer.
func (d *H264Depacketizer) Reset() {
	d.mu.Lock()
	d.reset()
	d.started = false
	d.timestamp = 0
	d.mu.Unlock()
}
