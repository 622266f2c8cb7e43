package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/logging"
	"github.com/pion/rtp"
	"github.com/thesyncim/castkit"
	"golang.org/x/sync/errgroup"
)

const defaultReadBufferSize = 1500

// ErrReceiverNotListening is returned by Serve before Listen succeeded.
var ErrReceiverNotListening = errors.New("ingest: receiver is not listening")

var errSocketClosed = errors.New("socket closed")

// ReceiverConfig configures a Receiver. An empty address disables that
// media kind.
type ReceiverConfig struct {
	VideoAddr  string
	AudioAddr  string
	VideoCodec castkit.VideoCodec
	AudioCodec castkit.AudioCodec

	// Packets with another payload type are dropped. Zero accepts any.
	VideoPayloadType uint8
	AudioPayloadType uint8

	ReadBufferSize int
	LoggerFactory  logging.LoggerFactory
}

// StreamStats counts packets on one port.
type StreamStats struct {
	Packets  uint64
	Frames   uint64
	Filtered uint64 // wrong payload type
	Invalid  uint64 // not RTP
	Lost     uint64 // sequence gaps
	Late     uint64 // duplicate or reordered
	Errors   uint64 // depacketizer errors
}

// ReceiverStats holds per-kind counters.
type ReceiverStats struct {
	Video StreamStats
	Audio StreamStats
}

// Receiver listens for RTP over UDP, one socket per media kind, and
// pushes reassembled frames into a Sink.
type Receiver struct {
	cfg   ReceiverConfig
	log   logging.LeveledLogger
	video *stream
	audio *stream

	mu     sync.Mutex
	cancel context.CancelFunc
}

type stream struct {
	kind    string
	addr    string
	pt      uint8
	depack  Depacketizer
	deliver func([]byte)
	log     logging.LeveledLogger
	conn    net.PacketConn

	mu      sync.Mutex
	stats   StreamStats
	haveSeq bool
	lastSeq uint16
}

// NewReceiver validates cfg and creates the depacketizers.
func NewReceiver(cfg ReceiverConfig, sink Sink) (*Receiver, error) {
	if cfg.VideoAddr == "" && cfg.AudioAddr == "" {
		return nil, errors.New("ingest: receiver needs a video or audio address")
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	r := &Receiver{cfg: cfg, log: newLogger(cfg.LoggerFactory, "ingest")}

	if cfg.VideoAddr != "" {
		d, err := NewVideoDepacketizer(cfg.VideoCodec)
		if err != nil {
			return nil, err
		}
		r.video = &stream{kind: "video", addr: cfg.VideoAddr, pt: cfg.VideoPayloadType, depack: d, deliver: sink.ProcessVideo, log: r.log}
	}
	if cfg.AudioAddr != "" {
		d, err := NewAudioDepacketizer(cfg.AudioCodec)
		if err != nil {
			return nil, err
		}
		r.audio = &stream{kind: "audio", addr: cfg.AudioAddr, pt: cfg.AudioPayloadType, depack: d, deliver: sink.ProcessAudio, log: r.log}
	}
	return r, nil
}

func (r *Receiver) streams() []*stream {
	var out []*stream
	for _, s := range []*stream{r.video, r.audio} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Listen binds the configured UDP ports.
func (r *Receiver) Listen() error {
	for _, s := range r.streams() {
		conn, err := net.ListenPacket("udp", s.addr)
		if err != nil {
			return multierror.Append(fmt.Errorf("listen %s %s: %w", s.kind, s.addr, err), r.closeConns()).ErrorOrNil()
		}
		s.conn = conn
		r.log.Infof("receiving %s RTP on %s", s.kind, conn.LocalAddr())
	}
	return nil
}

// VideoAddr returns the bound video address, or nil.
func (r *Receiver) VideoAddr() net.Addr { return r.video.localAddr() }

// AudioAddr returns the bound audio address, or nil.
func (r *Receiver) AudioAddr() net.Addr { return r.audio.localAddr() }

func (s *stream) localAddr() net.Addr {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve reads packets until ctx is done, Close is called, or a socket
// fails. It closes the sockets before returning.
func (r *Receiver) Serve(ctx context.Context) error {
	streams := r.streams()
	for _, s := range streams {
		if s.conn == nil {
			return ErrReceiverNotListening
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range streams {
		g.Go(func() error {
			return s.readLoop(gctx, r.cfg.ReadBufferSize)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return r.closeConns()
	})
	if err := g.Wait(); !errors.Is(err, errSocketClosed) {
		return err
	}
	return nil
}

// Run is Listen followed by Serve.
func (r *Receiver) Run(ctx context.Context) error {
	if err := r.Listen(); err != nil {
		return err
	}
	return r.Serve(ctx)
}

// Close stops a running Serve.
func (r *Receiver) Close() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		return nil
	}
	return r.closeConns()
}

func (r *Receiver) closeConns() error {
	var result *multierror.Error
	for _, s := range r.streams() {
		if s.conn == nil {
			continue
		}
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Stats returns a snapshot of the counters.
func (r *Receiver) Stats() ReceiverStats {
	var st ReceiverStats
	if r.video != nil {
		st.Video = r.video.snapshot()
	}
	if r.audio != nil {
		st.Audio = r.audio.snapshot()
	}
	return st
}

func (s *stream) snapshot() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *stream) readLoop(ctx context.Context, size int) error {
	buf := make([]byte, size)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return errSocketClosed
			}
			return fmt.Errorf("read %s: %w", s.kind, err)
		}
		s.handle(buf[:n])
	}
}

func (s *stream) handle(b []byte) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(b); err != nil {
		s.count(func(st *StreamStats) { st.Invalid++ })
		s.log.Debugf("%s: dropping non-RTP datagram: %v", s.kind, err)
		return
	}
	if s.pt != 0 && pkt.PayloadType != s.pt {
		s.count(func(st *StreamStats) { st.Filtered++ })
		return
	}
	if !s.sequence(pkt.SequenceNumber) {
		return
	}

	f, err := s.depack.Depacketize(&pkt)
	if err != nil {
		s.count(func(st *StreamStats) { st.Errors++ })
		s.log.Warnf("%s: %v", s.kind, err)
		return
	}
	if f == nil {
		return
	}
	s.count(func(st *StreamStats) { st.Frames++ })
	s.deliver(f.Data)
}

// sequence records seq and reports whether the packet should be used.
// A forward gap drops the partial frame in the depacketizer.
func (s *stream) sequence(seq uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Packets++
	if !s.haveSeq {
		s.haveSeq = true
		s.lastSeq = seq
		return true
	}
	gap := seq - s.lastSeq
	switch {
	case gap == 0 || gap >= 0x8000:
		s.stats.Late++
		return false
	case gap > 1:
		s.stats.Lost += uint64(gap - 1)
		s.depack.Reset()
	}
	s.lastSeq = seq
	return true
}

func (s *stream) count(fn func(*StreamStats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}
