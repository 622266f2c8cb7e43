package castkit

import (
	"errors"
	"sync"
)

// fakeLibrary is an in-memory CodecLibrary. Each packet sent to a context
// yields one video frame whose first plane holds the packet bytes.
type fakeLibrary struct {
	mu sync.Mutex

	canonical map[string]string
	findErr   error
	parserErr error
	ctxErr    error
	openErr   error
	frameErr  error

	// parseChunk > 0 makes the parser emit packets of at most that many bytes.
	parseChunk int
	// parseHold makes the first parseHold Parse calls buffer their input
	// and emit nothing, the way a parser waits for a frame boundary.
	parseHold int

	// sendErrs and recvErrs are consumed in order, one per call.
	sendErrs []error
	recvErrs []error

	live   map[string]int
	ctxs   []*fakeContext
	parses [][]byte
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		canonical: map[string]string{
			"h264":       "h264",
			"alac":       "alac",
			"libfdk_aac": "aac",
			"opus":       "opus",
		},
		live: make(map[string]int),
	}
}

func (l *fakeLibrary) acquire(kind string) {
	l.mu.Lock()
	l.live[kind]++
	l.mu.Unlock()
}

func (l *fakeLibrary) release(kind string) {
	l.mu.Lock()
	l.live[kind]--
	l.mu.Unlock()
}

// leaked returns the handle kinds that are still open.
func (l *fakeLibrary) leaked() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	for k, n := range l.live {
		if n != 0 {
			out[k] = n
		}
	}
	return out
}

func (l *fakeLibrary) FindDecoder(name string) (Codec, error) {
	if l.findErr != nil {
		return nil, l.findErr
	}
	c, ok := l.canonical[name]
	if !ok {
		return nil, ErrCodecNotFound
	}
	return fakeCodec{name: name, canonical: c}, nil
}

func (l *fakeLibrary) NewParser(Codec) (Parser, error) {
	if l.parserErr != nil {
		return nil, l.parserErr
	}
	l.acquire("parser")
	return &fakeParser{lib: l}, nil
}

func (l *fakeLibrary) NewContext(Codec) (CodecContext, error) {
	if l.ctxErr != nil {
		return nil, l.ctxErr
	}
	l.acquire("context")
	c := &fakeContext{lib: l, threads: -1}
	l.ctxs = append(l.ctxs, c)
	return c, nil
}

func (l *fakeLibrary) NewPacket() (Packet, error) {
	l.acquire("packet")
	return &fakePacket{lib: l}, nil
}

func (l *fakeLibrary) NewFrame() (FrameBuffer, error) {
	if l.frameErr != nil {
		return nil, l.frameErr
	}
	l.acquire("frame")
	return &fakeFrameBuffer{lib: l}, nil
}

type fakeCodec struct {
	name, canonical string
}

func (c fakeCodec) Name() string          { return c.name }
func (c fakeCodec) CanonicalName() string { return c.canonical }

type fakeParser struct {
	lib    *fakeLibrary
	held   []byte
	calls  int
	closed bool
}

func (p *fakeParser) Parse(_ CodecContext, pkt Packet, data []byte) (int, error) {
	p.lib.parses = append(p.lib.parses, append([]byte(nil), data...))
	p.calls++
	if p.calls <= p.lib.parseHold {
		p.held = append(p.held, data...)
		pkt.SetData(nil)
		return len(data), nil
	}
	n := len(data)
	if p.lib.parseChunk > 0 && n > p.lib.parseChunk {
		n = p.lib.parseChunk
	}
	out := data[:n]
	if len(p.held) > 0 {
		out = append(p.held, out...)
		p.held = nil
	}
	pkt.SetData(out)
	return n, nil
}

func (p *fakeParser) Close() error {
	if !p.closed {
		p.closed = true
		p.lib.release("parser")
	}
	return nil
}

type fakeContext struct {
	lib *fakeLibrary

	extradata  []byte
	sampleRate int
	bits       int
	channels   int
	threads    int
	opened     bool
	closed     bool
	// draining is set by an empty packet, after which the codec only
	// hands out what it already holds and then reports EOF.
	draining   bool

	sent    [][]byte
	pending [][]byte
}

func (c *fakeContext) SetExtradata(b []byte) error {
	c.extradata = append([]byte(nil), b...)
	return nil
}

func (c *fakeContext) SetSampleRate(rate int) error {
	c.sampleRate = rate
	return nil
}

func (c *fakeContext) SetBitsPerSample(bits int) error {
	c.bits = bits
	return nil
}

func (c *fakeContext) SetDefaultChannelLayout(channels int) error {
	c.channels = channels
	return nil
}

func (c *fakeContext) SetThreadCount(n int) error {
	c.threads = n
	return nil
}

func (c *fakeContext) Open() error {
	if c.lib.openErr != nil {
		return c.lib.openErr
	}
	c.opened = true
	return nil
}

func (c *fakeContext) SendPacket(pkt Packet) error {
	if len(c.lib.sendErrs) > 0 {
		err := c.lib.sendErrs[0]
		c.lib.sendErrs = c.lib.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	if c.draining {
		return ErrnoEOF
	}
	data := pkt.(*fakePacket).data
	if len(data) == 0 {
		c.draining = true
		return nil
	}
	cp := append([]byte(nil), data...)
	c.sent = append(c.sent, cp)
	c.pending = append(c.pending, cp)
	return nil
}

func (c *fakeContext) ReceiveFrame(frame FrameBuffer) error {
	if len(c.lib.recvErrs) > 0 {
		err := c.lib.recvErrs[0]
		c.lib.recvErrs = c.lib.recvErrs[1:]
		if err != nil {
			return err
		}
	}
	if len(c.pending) == 0 {
		if c.draining {
			return ErrnoEOF
		}
		return ErrnoAgain
	}
	fb := frame.(*fakeFrameBuffer)
	fb.frame = &Frame{
		Data:        [][]byte{c.pending[0]},
		Stride:      []int{len(c.pending[0])},
		Width:       len(c.pending[0]),
		Height:      1,
		PixelFormat: PixelFormatI420,
	}
	c.pending = c.pending[1:]
	return nil
}

func (c *fakeContext) Close() error {
	if !c.closed {
		c.closed = true
		c.lib.release("context")
	}
	return nil
}

type fakePacket struct {
	lib    *fakeLibrary
	data   []byte
	closed bool
}

func (p *fakePacket) SetData(b []byte) { p.data = b }
func (p *fakePacket) Len() int         { return len(p.data) }

func (p *fakePacket) Close() error {
	if !p.closed {
		p.closed = true
		p.lib.release("packet")
	}
	return nil
}

type fakeFrameBuffer struct {
	lib    *fakeLibrary
	frame  *Frame
	unrefs int
	closed bool
}

func (f *fakeFrameBuffer) Frame() *Frame { return f.frame }

func (f *fakeFrameBuffer) Unref() {
	f.frame = nil
	f.unrefs++
}

func (f *fakeFrameBuffer) Close() error {
	if !f.closed {
		f.closed = true
		f.lib.release("frame")
	}
	return nil
}

// recordingClient collects decoder callbacks.
type recordingClient struct {
	mu     sync.Mutex
	frames [][]byte
	errs   []string
	fatals []string
}

func (c *recordingClient) OnFrameDecoded(f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), f.Data[0]...))
}

func (c *recordingClient) OnDecodeError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, msg)
}

func (c *recordingClient) OnFatalError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fatals = append(c.fatals, msg)
}

var errFakeAlloc = errors.New("allocation failed")
