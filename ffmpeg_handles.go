//go:build (darwin || linux) && (amd64 || arm64)

package castkit

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/thesyncim/castkit/internal/dl"
)

// FFmpeg is the CodecLibrary backed by libavcodec.
type FFmpeg struct{}

var _ CodecLibrary = (*FFmpeg)(nil)

type ffCodec struct {
	ptr  uintptr
	name string
}

func (c *ffCodec) Name() string { return c.name }

func (c *ffCodec) CanonicalName() string {
	return dl.GoString(avcodecGetName(c.id()))
}

func (c *ffCodec) id() int32        { return readInt32(c.ptr, offCodecID) }
func (c *ffCodec) mediaType() int32 { return readInt32(c.ptr, offCodecType) }

// FindDecoder implements CodecLibrary.
func (l *FFmpeg) FindDecoder(name string) (Codec, error) {
	ptr := avcodecFindDecoderByName(name)
	if ptr == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotFound, name)
	}
	return &ffCodec{ptr: ptr, name: name}, nil
}

func asFFCodec(c Codec) (*ffCodec, error) {
	fc, ok := c.(*ffCodec)
	if !ok || fc == nil {
		return nil, fmt.Errorf("codec %v does not belong to FFmpeg", c)
	}
	return fc, nil
}

// NewParser implements CodecLibrary.
func (l *FFmpeg) NewParser(c Codec) (Parser, error) {
	fc, err := asFFCodec(c)
	if err != nil {
		return nil, err
	}
	ptr := avParserInit(fc.id())
	if ptr == 0 {
		return nil, ErrnoNoMem
	}
	return &ffParser{ptr: ptr}, nil
}

// NewContext implements CodecLibrary.
func (l *FFmpeg) NewContext(c Codec) (CodecContext, error) {
	fc, err := asFFCodec(c)
	if err != nil {
		return nil, err
	}
	ptr := avcodecAllocContext3(fc.ptr)
	if ptr == 0 {
		return nil, ErrnoNoMem
	}
	return &ffContext{ptr: ptr, codec: fc}, nil
}

// NewPacket implements CodecLibrary.
func (l *FFmpeg) NewPacket() (Packet, error) {
	ptr := avPacketAlloc()
	if ptr == 0 {
		return nil, ErrnoNoMem
	}
	return &ffPacket{ptr: ptr}, nil
}

// NewFrame implements CodecLibrary.
func (l *FFmpeg) NewFrame() (FrameBuffer, error) {
	ptr := avFrameAlloc()
	if ptr == 0 {
		return nil, ErrnoNoMem
	}
	return &ffFrame{ptr: ptr}, nil
}

// ffParser owns an AVCodecParserContext.
type ffParser struct {
	ptr uintptr
	buf []byte // padded copy of the input
}

func (p *ffParser) Parse(ctx CodecContext, pkt Packet, data []byte) (int, error) {
	fctx, ok := ctx.(*ffContext)
	if !ok || fctx == nil {
		return 0, fmt.Errorf("context does not belong to FFmpeg")
	}
	fpkt, ok := pkt.(*ffPacket)
	if !ok || fpkt == nil {
		return 0, fmt.Errorf("packet does not belong to FFmpeg")
	}
	if len(data) == 0 {
		fpkt.setRaw(0, 0, nil)
		return 0, nil
	}

	// Parsers may read past the end of the input.
	need := len(data) + avInputBufferPadding
	if cap(p.buf) < need {
		p.buf = make([]byte, need)
	}
	p.buf = p.buf[:need]
	copy(p.buf, data)
	clear(p.buf[len(data):])

	var out uintptr
	var outSize int32
	ret := avParserParse2(p.ptr, fctx.ptr, &out, &outSize,
		uintptr(unsafe.Pointer(&p.buf[0])), int32(len(data)), avNoPTS, avNoPTS, 0)
	runtime.KeepAlive(p.buf)
	if ret < 0 {
		return 0, Errno(ret)
	}
	fpkt.setRaw(out, int(outSize), p.buf)
	return int(ret), nil
}

func (p *ffParser) Close() error {
	if p == nil || p.ptr == 0 {
		return nil
	}
	avParserClose(p.ptr)
	p.ptr = 0
	return nil
}

// ffContext owns an AVCodecContext and the extradata attached to it.
type ffContext struct {
	ptr   uintptr
	codec *ffCodec
}

func (c *ffContext) SetExtradata(b []byte) error {
	par := avcodecParametersAlloc()
	if par == 0 {
		return ErrnoNoMem
	}
	defer avcodecParametersFree(&par)

	buf := avMallocz(uint64(len(b) + avInputBufferPadding))
	if buf == 0 {
		return ErrnoNoMem
	}
	copy(cBytes(buf, len(b)), b)

	writeInt32(par, offParCodecType, c.codec.mediaType())
	writeInt32(par, offParCodecID, c.codec.id())
	// Ownership of buf passes to par and is released by avcodec_parameters_free.
	writePtr(par, offParExtradata, buf)
	writeInt32(par, offParExtradataSize, int32(len(b)))

	// The context takes its own padded copy.
	return status(avcodecParametersToCtx(c.ptr, par))
}

func (c *ffContext) SetSampleRate(rate int) error {
	return status(avOptSetInt(c.ptr, "ar", int64(rate), 0))
}

func (c *ffContext) SetBitsPerSample(bits int) error {
	return status(avOptSetInt(c.ptr, "bits_per_raw_sample", int64(bits), 0))
}

func (c *ffContext) SetDefaultChannelLayout(channels int) error {
	if hasChannelLayoutOptions {
		var layout avChannelLayout
		avChannelLayoutDefault(&layout, int32(channels))
		defer avChannelLayoutUninit(&layout)
		return status(avOptSetChlayout(c.ptr, "ch_layout", &layout, 0))
	}
	return status(avOptSetInt(c.ptr, "ac", int64(channels), 0))
}

func (c *ffContext) SetThreadCount(n int) error {
	return status(avOptSetInt(c.ptr, "threads", int64(n), 0))
}

func (c *ffContext) Open() error {
	return status(avcodecOpen2(c.ptr, c.codec.ptr, 0))
}

func (c *ffContext) SendPacket(pkt Packet) error {
	fpkt, ok := pkt.(*ffPacket)
	if !ok || fpkt == nil {
		return fmt.Errorf("packet does not belong to FFmpeg")
	}
	ret := avcodecSendPacket(c.ptr, fpkt.ptr)
	runtime.KeepAlive(fpkt.ref)
	return status(ret)
}

func (c *ffContext) ReceiveFrame(frame FrameBuffer) error {
	ff, ok := frame.(*ffFrame)
	if !ok || ff == nil {
		return fmt.Errorf("frame does not belong to FFmpeg")
	}
	if err := status(avcodecReceiveFrame(c.ptr, ff.ptr)); err != nil {
		return err
	}
	ff.ctx = c
	return nil
}

// sampleRate and channels read the stream parameters the decoder settled on.
func (c *ffContext) sampleRate() int {
	var v int64
	if avOptGetInt(c.ptr, "ar", 0, &v) < 0 {
		return 0
	}
	return int(v)
}

func (c *ffContext) channels() int {
	if hasChannelLayoutOptions {
		var layout avChannelLayout
		if avOptGetChlayout(c.ptr, "ch_layout", 0, &layout) >= 0 {
			n := int(layout.nbChannels)
			avChannelLayoutUninit(&layout)
			return n
		}
	}
	var v int64
	if avOptGetInt(c.ptr, "ac", 0, &v) < 0 {
		return 0
	}
	return int(v)
}

func (c *ffContext) Close() error {
	if c == nil || c.ptr == 0 {
		return nil
	}
	avcodecFreeContext(&c.ptr)
	c.ptr = 0
	return nil
}

// ffPacket owns an AVPacket. Its data is never refcounted, so
// avcodec_send_packet copies it.
type ffPacket struct {
	ptr uintptr
	ref []byte
}

func (p *ffPacket) SetData(b []byte) {
	if len(b) == 0 {
		p.setRaw(0, 0, nil)
		return
	}
	p.setRaw(uintptr(unsafe.Pointer(&b[0])), len(b), b)
}

func (p *ffPacket) Len() int {
	return int(readInt32(p.ptr, offPacketSize))
}

func (p *ffPacket) setRaw(data uintptr, size int, keep []byte) {
	p.ref = keep
	writePtr(p.ptr, offPacketData, data)
	writeInt32(p.ptr, offPacketSize, int32(size))
}

func (p *ffPacket) Close() error {
	if p == nil || p.ptr == 0 {
		return nil
	}
	// Detach Go memory before FFmpeg releases the packet.
	p.setRaw(0, 0, nil)
	avPacketFree(&p.ptr)
	p.ptr = 0
	return nil
}

// ffFrame owns an AVFrame.
type ffFrame struct {
	ptr  uintptr
	ctx  *ffContext
	view Frame
	mu   sync.Mutex
}

func (f *ffFrame) Frame() *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := &f.view
	*v = Frame{Data: v.Data[:0], Stride: v.Stride[:0]}

	width := int(readInt32(f.ptr, offFrameWidth))
	height := int(readInt32(f.ptr, offFrameHeight))
	format := int(readInt32(f.ptr, offFrameFormat))

	if width > 0 && height > 0 {
		v.Width, v.Height = width, height
		v.PixelFormat = PixelFormat(format)
		v.SampleFormat = SampleFormatNone
		for i := 0; i < 8; i++ {
			rows := v.PixelFormat.PlaneRows(i, height)
			data := readPtr(f.ptr, offFrameData+uintptr(i)*8)
			stride := int(readInt32(f.ptr, offFrameLinesize+uintptr(i)*4))
			if rows == 0 || data == 0 || stride <= 0 {
				break
			}
			v.Data = append(v.Data, cBytes(data, stride*rows))
			v.Stride = append(v.Stride, stride)
		}
		return v
	}

	v.PixelFormat = PixelFormatNone
	v.SampleFormat = SampleFormat(format)
	v.NbSamples = int(readInt32(f.ptr, offFrameNbSamples))
	if f.ctx != nil {
		v.SampleRate = f.ctx.sampleRate()
		v.Channels = f.ctx.channels()
	}

	bps := v.SampleFormat.BytesPerSample()
	ext := readPtr(f.ptr, offFrameExtendedData)
	if v.SampleFormat.IsPlanar() {
		size := v.NbSamples * bps
		for c := 0; c < v.Channels; c++ {
			data := readPtr(ext, uintptr(c)*8)
			v.Data = append(v.Data, cBytes(data, size))
			v.Stride = append(v.Stride, size)
		}
	} else {
		size := v.NbSamples * bps * v.Channels
		v.Data = append(v.Data, cBytes(readPtr(ext, 0), size))
		v.Stride = append(v.Stride, size)
	}
	return v
}

func (f *ffFrame) Unref() {
	avFrameUnref(f.ptr)
}

func (f *ffFrame) Close() error {
	if f == nil || f.ptr == 0 {
		return nil
	}
	avFrameFree(&f.ptr)
	f.ptr = 0
	return nil
}
