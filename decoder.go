package castkit

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/logging"
)

var (
	// ErrDecoderClosed is returned by operations on a closed Decoder.
	ErrDecoderClosed = errors.New("decoder closed")

	// ErrCodecNameNotSet is reported when Decode runs before SetCodecName.
	ErrCodecNameNotSet = errors.New("codec name not set")
)

// DecoderClient receives the output of a Decoder. Callbacks run on the
// goroutine that called Decode.
type DecoderClient interface {
	// OnFrameDecoded receives a frame backed by decoder memory. It is valid
	// only until the callback returns; Clone it to keep it.
	OnFrameDecoded(frame *Frame)

	// OnDecodeError reports a transient error. Decoding may continue.
	OnDecodeError(msg string)

	// OnFatalError reports an error after which the decoder ignores input.
	OnFatalError(msg string)
}

// ParserFeed selects what the decoder submits when the codec uses a parser.
type ParserFeed int

const (
	// FeedRaw runs the parser for the parameters it records on the codec
	// context and then submits the caller's whole buffer.
	FeedRaw ParserFeed = iota
	// FeedParsed submits the packets the parser produces.
	FeedParsed
)

// DecoderStats provides decoder statistics.
type DecoderStats struct {
	PacketsIn       uint64
	BytesIn         uint64
	FramesOut       uint64
	TransientErrors uint64
	Fatal           bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithCodecLibrary sets the codec runtime. Without it the decoder loads the
// default native library on first use.
func WithCodecLibrary(lib CodecLibrary) DecoderOption {
	return func(d *Decoder) { d.lib = lib }
}

// WithLoggerFactory sets the logger factory.
func WithLoggerFactory(f logging.LoggerFactory) DecoderOption {
	return func(d *Decoder) { d.log = loggerFrom(f, "decoder") }
}

// WithThreadCount overrides the decoder thread count. Values are clamped to [1, 8].
func WithThreadCount(n int) DecoderOption {
	return func(d *Decoder) { d.threads = clampThreads(n) }
}

// WithParserFeed selects how parser output is used.
func WithParserFeed(feed ParserFeed) DecoderOption {
	return func(d *Decoder) { d.feed = feed }
}

// Decoder is a push decoder for one elementary stream. The codec is set up
// lazily on the first Decode. Decode and Close must not run concurrently.
type Decoder struct {
	name    string
	client  DecoderClient
	lib     CodecLibrary
	log     logging.LeveledLogger
	threads int
	feed    ParserFeed

	codec  Codec
	parser Parser
	ctx    CodecContext
	pkt    Packet
	frame  FrameBuffer

	initialized bool
	fatal       atomic.Bool
	closed      atomic.Bool

	stats   DecoderStats
	statsMu sync.Mutex
}

// NewDecoder creates a decoder. SetCodecName must be called before Decode.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		threads: defaultThreadCount(),
		feed:    FeedRaw,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = loggerFrom(nil, "decoder")
	}
	return d
}

// SetCodecName sets the codec library name of the decoder, e.g. "h264" or "alac".
func (d *Decoder) SetCodecName(name string) {
	d.name = name
}

// CodecName returns the configured codec name.
func (d *Decoder) CodecName() string {
	return d.name
}

// SetClient registers the sink for frames and errors.
func (d *Decoder) SetClient(client DecoderClient) {
	d.client = client
}

// Decode feeds one chunk of encoded data. It may deliver zero or more frames.
// The data is not retained after Decode returns.
func (d *Decoder) Decode(data []byte) {
	if d.closed.Load() || d.fatal.Load() {
		return
	}
	if !d.initialized && !d.initialize() {
		return
	}
	// An empty packet would put the codec into draining mode.
	if len(data) == 0 {
		return
	}

	d.statsMu.Lock()
	d.stats.PacketsIn++
	d.stats.BytesIn += uint64(len(data))
	d.statsMu.Unlock()

	if d.parser == nil {
		d.pkt.SetData(data)
		d.submit("send packet")
		return
	}

	if d.feed == FeedRaw {
		if _, err := d.parser.Parse(d.ctx, d.pkt, data); err != nil {
			d.onError("parse", err)
			return
		}
		d.pkt.SetData(data)
		d.submit("send packet")
		return
	}

	for len(data) > 0 {
		n, err := d.parser.Parse(d.ctx, d.pkt, data)
		if err != nil {
			d.onError("parse", err)
			return
		}
		data = data[n:]
		emitted := d.pkt.Len() > 0
		if emitted && !d.submit("send packet") {
			return
		}
		if n == 0 && !emitted {
			break
		}
	}
}

// submit sends the current packet and drains ready frames. It returns false
// after reporting an error.
func (d *Decoder) submit(stage string) bool {
	if err := d.ctx.SendPacket(d.pkt); err != nil {
		d.onError(stage, err)
		return false
	}

	for {
		err := d.ctx.ReceiveFrame(d.frame)
		if IsAgain(err) {
			return true
		}
		if err != nil {
			d.onError("receive frame", err)
			return false
		}

		d.statsMu.Lock()
		d.stats.FramesOut++
		d.statsMu.Unlock()

		if d.client != nil {
			d.client.OnFrameDecoded(d.frame.Frame())
		}
		d.frame.Unref()
	}
}

func (d *Decoder) initialize() bool {
	if d.name == "" {
		d.initFailed("codec name missing", ErrCodecNameNotSet)
		return false
	}
	if d.lib == nil {
		lib, err := DefaultCodecLibrary()
		if err != nil {
			d.initFailed("codec library unavailable", err)
			return false
		}
		d.lib = lib
	}

	codec, err := d.lib.FindDecoder(d.name)
	if err != nil {
		d.initFailed("codec not available", err)
		return false
	}
	d.codec = codec

	if codecNeedsParser(d.name) {
		if d.parser, err = d.lib.NewParser(codec); err != nil {
			d.initFailed("failed to allocate parser context", err)
			return false
		}
	}

	if d.ctx, err = d.lib.NewContext(codec); err != nil {
		d.initFailed("failed to allocate codec context", err)
		return false
	}

	if extradata := codecExtradata(d.name); extradata != nil {
		if err := d.ctx.SetExtradata(extradata); err != nil {
			d.initFailed("failed to set extradata", err)
			return false
		}
	}
	if d.name == CodecNameALAC {
		if err := d.seedALAC(); err != nil {
			d.initFailed("failed to configure alac", err)
			return false
		}
	}

	if err := d.ctx.SetThreadCount(d.threads); err != nil {
		d.log.Debugf("%s: thread count not applied: %v", d.name, err)
	}

	if err := d.ctx.Open(); err != nil {
		d.initFailed("failed to open codec", err)
		return false
	}
	if d.pkt, err = d.lib.NewPacket(); err != nil {
		d.initFailed("failed to allocate packet", err)
		return false
	}
	if d.frame, err = d.lib.NewFrame(); err != nil {
		d.initFailed("failed to allocate frame", err)
		return false
	}

	d.initialized = true
	d.log.Debugf("%s: decoder opened with %d threads", d.name, d.threads)
	return true
}

func (d *Decoder) seedALAC() error {
	if err := d.ctx.SetSampleRate(alacSampleRate); err != nil {
		return err
	}
	if err := d.ctx.SetBitsPerSample(alacSampleSize); err != nil {
		d.log.Debugf("alac: bits per sample not applied: %v", err)
	}
	return d.ctx.SetDefaultChannelLayout(alacChannels)
}

// initFailed releases partial state, disables the decoder and reports the failure.
func (d *Decoder) initFailed(what string, err error) {
	canonical := ""
	if d.codec != nil {
		canonical = d.codec.CanonicalName()
	}
	if rerr := d.release(); rerr != nil {
		d.log.Warnf("%s: release after failed init: %v", d.name, rerr)
	}
	d.markFatal()

	msg := fmt.Sprintf("Could not initialize codec %s", d.name)
	if canonical != "" {
		msg += fmt.Sprintf(" (known to the codec library as %s)", canonical)
	}
	msg += fmt.Sprintf(" because %s (%v).", what, err)

	d.log.Errorf("%s", msg)
	if d.client != nil {
		d.client.OnFatalError(msg)
	}
}

// onError classifies a codec failure and reports it to the client.
func (d *Decoder) onError(stage string, err error) {
	msg := (&DecodeError{Stage: stage, Err: err}).Error()
	if IsFatal(err) {
		d.markFatal()
		if d.client != nil {
			d.client.OnFatalError(msg)
		}
		return
	}

	d.statsMu.Lock()
	d.stats.TransientErrors++
	d.statsMu.Unlock()
	if d.client != nil {
		d.client.OnDecodeError(msg)
	}
}

func (d *Decoder) markFatal() {
	d.fatal.Store(true)
	d.statsMu.Lock()
	d.stats.Fatal = true
	d.statsMu.Unlock()
}

// Usable reports whether the decoder still accepts input.
func (d *Decoder) Usable() bool {
	return !d.closed.Load() && !d.fatal.Load()
}

// Stats returns decoder statistics.
func (d *Decoder) Stats() DecoderStats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.stats
}

// Close releases every codec object. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.release()
}

func (d *Decoder) release() error {
	var result *multierror.Error
	if d.frame != nil {
		result = multierror.Append(result, d.frame.Close())
		d.frame = nil
	}
	if d.pkt != nil {
		result = multierror.Append(result, d.pkt.Close())
		d.pkt = nil
	}
	if d.parser != nil {
		result = multierror.Append(result, d.parser.Close())
		d.parser = nil
	}
	// Closing the context frees its extradata.
	if d.ctx != nil {
		result = multierror.Append(result, d.ctx.Close())
		d.ctx = nil
	}
	d.codec = nil
	d.initialized = false
	return result.ErrorOrNil()
}
