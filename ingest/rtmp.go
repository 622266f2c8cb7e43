package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
	"github.com/thesyncim/castkit"
	rtmp "github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

// ErrPublisherActive is returned to a second publisher while one is live.
var ErrPublisherActive = errors.New("ingest: another RTMP publisher is active")

// FLV tag constants.
const (
	flvCodecAVC     = 7
	flvFrameKey     = 1
	avcSequenceHdr  = 0
	avcNALU         = 1
	flvSoundPCMA    = 7
	flvSoundPCMU    = 8
	flvSoundAAC     = 10
	aacSequenceHdr  = 0
	aacRaw          = 1
	flvVideoHdrSize = 5
)

// RTMPServerConfig configures NewRTMPServer.
type RTMPServerConfig struct {
	Sink Sink

	// OnDisconnect runs after the active publisher goes away.
	OnDisconnect func()

	// LogLevel sets the level of the logrus logger handed to go-rtmp
	// when Logger is nil.
	LogLevel      string
	Logger        logrus.FieldLogger
	LoggerFactory logging.LoggerFactory
}

// NewRTMPServer returns a go-rtmp server whose connections publish into
// cfg.Sink. Only one publisher is accepted at a time.
func NewRTMPServer(cfg RTMPServerConfig) *rtmp.Server {
	logger := cfg.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrusLevel(cfg.LogLevel))
		logger = l
	}
	gate := &publishGate{}
	return rtmp.NewServer(&rtmp.ServerConfig{
		OnConnect: func(conn net.Conn) (io.ReadWriteCloser, *rtmp.ConnConfig) {
			h := NewRTMPHandler(cfg.Sink, cfg.LoggerFactory)
			h.gate = gate
			h.onDisconnect = cfg.OnDisconnect
			return conn, &rtmp.ConnConfig{
				Handler: h,
				ControlState: rtmp.StreamControlStateConfig{
					DefaultBandwidthWindowSize: 6 * 1024 * 1024,
				},
				Logger: logger.WithField("remote", conn.RemoteAddr().String()),
			}
		},
	})
}

func logrusLevel(level string) logrus.Level {
	switch castkit.ParseLogLevel(level) {
	case logging.LogLevelDisabled:
		return logrus.PanicLevel
	case logging.LogLevelError:
		return logrus.ErrorLevel
	case logging.LogLevelInfo:
		return logrus.InfoLevel
	case logging.LogLevelDebug:
		return logrus.DebugLevel
	case logging.LogLevelTrace:
		return logrus.TraceLevel
	default:
		return logrus.WarnLevel
	}
}

type publishGate struct {
	mu    sync.Mutex
	owner *RTMPHandler
}

func (g *publishGate) acquire(h *RTMPHandler) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != nil && g.owner != h {
		return false
	}
	g.owner = h
	return true
}

func (g *publishGate) release(h *RTMPHandler) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != h {
		return false
	}
	g.owner = nil
	return true
}

// RTMPStats counts what a publisher delivered.
type RTMPStats struct {
	VideoFrames uint64
	AudioFrames uint64
	Dropped     uint64 // media before its sequence header, or malformed
}

// RTMPHandler converts one RTMP publisher into sink calls: AVC becomes
// Annex-B with SPS/PPS ahead of every keyframe, AAC becomes ADTS and
// G.711 is passed through.
type RTMPHandler struct {
	rtmp.DefaultHandler

	sink         Sink
	log          logging.LeveledLogger
	gate         *publishGate
	onDisconnect func()

	mu         sync.Mutex
	publishing bool
	name       string
	paramSets  [][]byte // SPS then PPS
	lengthSize int
	aac        *AudioSpecificConfig
	stats      RTMPStats
}

// NewRTMPHandler returns a handler for a single connection.
func NewRTMPHandler(sink Sink, factory logging.LoggerFactory) *RTMPHandler {
	return &RTMPHandler{sink: sink, log: newLogger(factory, "ingest")}
}

// OnPublish implements rtmp.Handler.
func (h *RTMPHandler) OnPublish(_ *rtmp.StreamContext, _ uint32, cmd *rtmpmsg.NetStreamPublish) error {
	if h.gate != nil && !h.gate.acquire(h) {
		h.log.Warnf("rejecting publisher %q: %v", cmd.PublishingName, ErrPublisherActive)
		return ErrPublisherActive
	}
	h.mu.Lock()
	h.publishing = true
	h.name = cmd.PublishingName
	h.mu.Unlock()
	h.log.Infof("publishing %q", cmd.PublishingName)
	return nil
}

// OnVideo implements rtmp.Handler.
func (h *RTMPHandler) OnVideo(_ uint32, payload io.Reader) error {
	data, err := io.ReadAll(payload)
	if err != nil {
		return err
	}
	out := h.video(data)
	if out != nil {
		h.sink.ProcessVideo(out)
	}
	return nil
}

func (h *RTMPHandler) video(data []byte) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.publishing || len(data) < flvVideoHdrSize || data[0]&0x0F != flvCodecAVC {
		h.stats.Dropped++
		return nil
	}
	key := data[0]>>4 == flvFrameKey
	body := data[flvVideoHdrSize:]

	switch data[1] {
	case avcSequenceHdr:
		sets, lengthSize, err := parseAVCConfig(body)
		if err != nil {
			h.log.Warnf("AVC sequence header: %v", err)
			h.stats.Dropped++
			return nil
		}
		h.paramSets, h.lengthSize = sets, lengthSize
		h.log.Debugf("AVC sequence header: %d parameter sets", len(sets))
		return nil
	case avcNALU:
		if h.paramSets == nil {
			h.stats.Dropped++
			return nil
		}
		out, err := avccToAnnexB(body, h.lengthSize, h.paramSets, key)
		if err != nil || len(out) == 0 {
			h.stats.Dropped++
			return nil
		}
		h.stats.VideoFrames++
		return out
	default:
		return nil
	}
}

// OnAudio implements rtmp.Handler.
func (h *RTMPHandler) OnAudio(_ uint32, payload io.Reader) error {
	data, err := io.ReadAll(payload)
	if err != nil {
		return err
	}
	out := h.audio(data)
	if out != nil {
		h.sink.ProcessAudio(out)
	}
	return nil
}

func (h *RTMPHandler) audio(data []byte) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.publishing || len(data) < 2 {
		h.stats.Dropped++
		return nil
	}
	switch data[0] >> 4 {
	case flvSoundPCMA, flvSoundPCMU:
		h.stats.AudioFrames++
		return append([]byte(nil), data[1:]...)
	case flvSoundAAC:
	default:
		h.stats.Dropped++
		return nil
	}

	switch data[1] {
	case aacSequenceHdr:
		c, err := ParseAudioSpecificConfig(data[2:])
		if err != nil {
			h.log.Warnf("AAC sequence header: %v", err)
			h.stats.Dropped++
			return nil
		}
		h.aac = &c
		h.log.Debugf("AAC: object type %d, %d Hz, %d channels", c.ObjectType, c.SampleRate(), c.Channels)
		return nil
	case aacRaw:
		if h.aac == nil || len(data) == 2 {
			h.stats.Dropped++
			return nil
		}
		out, err := AppendADTS(nil, *h.aac, data[2:])
		if err != nil {
			h.stats.Dropped++
			return nil
		}
		h.stats.AudioFrames++
		return out
	default:
		return nil
	}
}

// OnClose implements rtmp.Handler.
func (h *RTMPHandler) OnClose() {
	h.mu.Lock()
	was := h.publishing
	name := h.name
	h.publishing = false
	h.paramSets = nil
	h.aac = nil
	h.mu.Unlock()

	if h.gate != nil {
		h.gate.release(h)
	}
	if !was {
		return
	}
	h.log.Infof("publisher %q disconnected", name)
	if h.onDisconnect != nil {
		h.onDisconnect()
	}
}

// Stats returns a snapshot of the counters.
func (h *RTMPHandler) Stats() RTMPStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// parseAVCConfig extracts the SPS and PPS units and the NALU length size
// from an AVCDecoderConfigurationRecord.
func parseAVCConfig(b []byte) (sets [][]byte, lengthSize int, err error) {
	if len(b) < 7 || b[0] != 1 {
		return nil, 0, errors.New("short or unknown AVCDecoderConfigurationRecord")
	}
	lengthSize = int(b[4]&0x03) + 1
	off := 5
	readSets := func(n int) error {
		for i := 0; i < n; i++ {
			if off+2 > len(b) {
				return errors.New("truncated parameter set length")
			}
			size := int(binary.BigEndian.Uint16(b[off:]))
			off += 2
			if off+size > len(b) {
				return fmt.Errorf("parameter set of %d bytes overruns record", size)
			}
			sets = append(sets, append([]byte(nil), b[off:off+size]...))
			off += size
		}
		return nil
	}
	numSPS := int(b[off] & 0x1F)
	off++
	if err := readSets(numSPS); err != nil {
		return nil, 0, err
	}
	if off >= len(b) {
		return nil, 0, errors.New("missing PPS count")
	}
	numPPS := int(b[off])
	off++
	if err := readSets(numPPS); err != nil {
		return nil, 0, err
	}
	return sets, lengthSize, nil
}

// avccToAnnexB rewrites length-prefixed NAL units with start codes.
// Keyframes are preceded by paramSets.
func avccToAnnexB(b []byte, lengthSize int, paramSets [][]byte, key bool) ([]byte, error) {
	var out []byte
	if key {
		for _, ps := range paramSets {
			out = append(out, annexBStartCode...)
			out = append(out, ps...)
		}
	}
	for off := 0; off < len(b); {
		if off+lengthSize > len(b) {
			return nil, errors.New("truncated NALU length")
		}
		var size int
		for _, c := range b[off : off+lengthSize] {
			size = size<<8 | int(c)
		}
		off += lengthSize
		if size == 0 || off+size > len(b) {
			return nil, fmt.Errorf("NALU of %d bytes overruns payload", size)
		}
		out = append(out, annexBStartCode...)
		out = append(out, b[off:off+size]...)
		off += size
	}
	return out, nil
}
