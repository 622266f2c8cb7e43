package ingest

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// VP8Depacketizer strips RFC 7741 payload descriptors and joins partitions
// until the marker bit.
type VP8Depacketizer struct {
	mu        sync.Mutex
	pkt       codecs.VP8Packet
	buf       []byte
	started   bool
	timestamp uint32
	key       bool
}

// Depacketize implements Depacketizer.
func (d *VP8Depacketizer) Depacketize(pkt *rtp.Packet) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload, err := d.pkt.Unmarshal(pkt.Payload)
	if err != nil {
		return nil, fmt.Errorf("vp8: %w", err)
	}
	if d.started && d.timestamp != pkt.Timestamp {
		d.buf = d.buf[:0]
		d.key = false
	}
	d.started = true
	d.timestamp = pkt.Timestamp

	// The P bit of the first partition's frame tag is clear on keyframes.
	if d.pkt.S == 1 && d.pkt.PID == 0 && len(payload) > 0 {
		d.key = payload[0]&0x01 == 0
	}
	d.buf = append(d.buf, payload...)

	if !pkt.Marker {
		return nil, nil
	}
	f := &Frame{Data: append([]byte(nil), d.buf...), Keyframe: d.key, Timestamp: d.timestamp}
	d.buf = d.buf[:0]
	d.key = false
	return f, nil
}

// Reset implements Depacketizer.
func (d *VP8Depacketizer) Reset() {
	d.mu.Lock()
	d.buf = d.buf[:0]
	d.started = false
	d.timestamp = 0
	d.key = false
	d.mu.Unlock()
}

// VP9Depacketizer reassembles VP9 frames. Packets belonging to a frame that
// was already delivered are dropped.
type VP9Depacketizer struct {
	mu        sync.Mutex
	pkt       codecs.VP9Packet
	buf       []byte
	started   bool
	timestamp uint32
	key       bool
	delivered bool
	lastTS    uint32
}

// Depacketize implements Depacketizer.
func (d *VP9Depacketizer) Depacketize(pkt *rtp.Packet) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload, err := d.pkt.Unmarshal(pkt.Payload)
	if err != nil {
		return nil, fmt.Errorf("vp9: %w", err)
	}
	if d.delivered && IsRTPTimestampOlder(pkt.Timestamp, d.lastTS) {
		return nil, nil
	}
	if d.started && d.timestamp != pkt.Timestamp {
		d.buf = d.buf[:0]
		d.key = false
	}
	d.started = true
	d.timestamp = pkt.Timestamp

	if d.pkt.B {
		d.key = !d.pkt.P
	}
	d.buf = append(d.buf, payload...)

	if !pkt.Marker && !d.pkt.E {
		return nil, nil
	}
	f := &Frame{Data: append([]byte(nil), d.buf...), Keyframe: d.key, Timestamp: d.timestamp}
	d.buf = d.buf[:0]
	d.key = false
	d.delivered = true
	d.lastTS = d.timestamp
	return f, nil
}

// Reset implements Depacketizer.
func (d *VP9Depacketizer) Reset() {
	d.mu.Lock()
	d.buf = d.buf[:0]
	d.started = false
	d.timestamp = 0
	d.key = false
	d.delivered = false
	d.lastTS = 0
	d.mu.Unlock()
}
