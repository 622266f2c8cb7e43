//go:build (darwin || linux) && (amd64 || arm64)

// FFmpeg codec library bindings using purego.
//
// libavutil, libavcodec and libswresample are loaded at runtime. Struct
// fields are reached through AVOptions where FFmpeg exposes them and through
// offsets that have been stable since FFmpeg 4 otherwise.

package castkit

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/thesyncim/castkit/internal/dl"
)

var (
	ffmpegOnce    sync.Once
	ffmpegInitErr error
	ffmpegLib     *FFmpeg

	ffmpegLibDirMu sync.Mutex
	ffmpegLibDir   string
)

// libavutil
var (
	avFrameAlloc            func() uintptr
	avFrameFree             func(frame *uintptr)
	avFrameUnref            func(frame uintptr)
	avStrerror              func(errnum int32, buf *byte, size uint64) int32
	avMallocz               func(size uint64) uintptr
	avOptSetInt             func(obj uintptr, name string, val int64, flags int32) int32
	avOptGetInt             func(obj uintptr, name string, flags int32, out *int64) int32
	avOptGetChlayout        func(obj uintptr, name string, flags int32, layout *avChannelLayout) int32
	avOptSetChlayout        func(obj uintptr, name string, layout *avChannelLayout, flags int32) int32
	avChannelLayoutDefault  func(layout *avChannelLayout, channels int32)
	avChannelLayoutUninit   func(layout *avChannelLayout)
	hasChannelLayoutOptions bool
)

// libavcodec
var (
	avcodecFindDecoderByName func(name string) uintptr
	avcodecGetName           func(id int32) uintptr
	avParserInit             func(codecID int32) uintptr
	avParserParse2           func(parser, avctx uintptr, outBuf *uintptr, outSize *int32, buf uintptr, bufSize int32, pts, dts, pos int64) int32
	avParserClose            func(parser uintptr)
	avcodecAllocContext3     func(codec uintptr) uintptr
	avcodecFreeContext       func(ctx *uintptr)
	avcodecOpen2             func(ctx, codec, options uintptr) int32
	avcodecParametersAlloc   func() uintptr
	avcodecParametersFree    func(par *uintptr)
	avcodecParametersToCtx   func(ctx, par uintptr) int32
	avPacketAlloc            func() uintptr
	avPacketFree             func(pkt *uintptr)
	avcodecSendPacket        func(ctx, pkt uintptr) int32
	avcodecReceiveFrame      func(ctx, frame uintptr) int32
)

// libswresample
var (
	swrAllocSetOpts2 func(s *uintptr, outLayout *avChannelLayout, outFmt, outRate int32, inLayout *avChannelLayout, inFmt, inRate, logOffset int32, logCtx uintptr) int32
	swrInit          func(s uintptr) int32
	swrConvert       func(s uintptr, out *uintptr, outCount int32, in *uintptr, inCount int32) int32
	swrFree          func(s *uintptr)
	hasSwresample    bool
)

const (
	avInputBufferPadding = 64
	avNoPTS              = int64(-0x8000000000000000)

	// AVCodec
	offCodecType = 16
	offCodecID   = 20

	// AVCodecParameters
	offParCodecType     = 0
	offParCodecID       = 4
	offParExtradata     = 16
	offParExtradataSize = 24

	// AVPacket
	offPacketData = 24
	offPacketSize = 32

	// AVFrame
	offFrameData         = 0
	offFrameLinesize     = 64
	offFrameExtendedData = 96
	offFrameWidth        = 104
	offFrameHeight       = 108
	offFrameNbSamples    = 112
	offFrameFormat       = 116
)

// avChannelLayout mirrors AVChannelLayout.
type avChannelLayout struct {
	order      int32
	nbChannels int32
	mask       uint64
	opaque     uintptr
}

// SetFFmpegLibPath adds a directory searched first for the FFmpeg libraries.
// It has no effect once the libraries are loaded.
func SetFFmpegLibPath(dir string) {
	ffmpegLibDirMu.Lock()
	ffmpegLibDir = dir
	ffmpegLibDirMu.Unlock()
}

func ffmpegLibraries() (avutil, avcodec, swresample dl.Library) {
	ffmpegLibDirMu.Lock()
	dir := ffmpegLibDir
	ffmpegLibDirMu.Unlock()

	var dirs []string
	if dir != "" {
		dirs = []string{dir}
	}
	env := []string{EnvFFmpegLibPath}
	avutil = dl.Library{Base: "avutil", Versions: []string{"59", "58", "57", "56", ""}, EnvVars: env, Dirs: dirs}
	avcodec = dl.Library{Base: "avcodec", Versions: []string{"61", "60", "59", "58", ""}, EnvVars: env, Dirs: dirs}
	swresample = dl.Library{Base: "swresample", Versions: []string{"5", "4", "3", ""}, EnvVars: env, Dirs: dirs}
	return
}

// LoadFFmpeg loads the FFmpeg libraries once and returns the codec library.
func LoadFFmpeg() (*FFmpeg, error) {
	ffmpegOnce.Do(func() {
		ffmpegInitErr = loadFFmpegLibs()
		if ffmpegInitErr == nil {
			ffmpegLib = &FFmpeg{}
			setErrnoDescriber(ffmpegErrorString)
		}
	})
	return ffmpegLib, ffmpegInitErr
}

// DefaultCodecLibrary returns the FFmpeg codec library.
func DefaultCodecLibrary() (CodecLibrary, error) {
	lib, err := LoadFFmpeg()
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// IsFFmpegAvailable checks if the FFmpeg libraries can be loaded.
func IsFFmpegAvailable() bool {
	_, err := LoadFFmpeg()
	return err == nil
}

func loadFFmpegLibs() error {
	avutilLib, avcodecLib, swrLib := ffmpegLibraries()

	util, _, err := dl.Open(avutilLib)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLibraryNotLoaded, err)
	}
	codec, _, err := dl.Open(avcodecLib)
	if err != nil {
		purego.Dlclose(util)
		return fmt.Errorf("%w: %v", ErrLibraryNotLoaded, err)
	}
	if err := loadFFmpegSymbols(util, codec); err != nil {
		purego.Dlclose(codec)
		purego.Dlclose(util)
		return fmt.Errorf("%w: %v", ErrLibraryNotLoaded, err)
	}

	// The resampler is optional; planar audio falls back to Go conversion.
	if swr, _, err := dl.Open(swrLib); err == nil {
		hasSwresample = dl.RegisterOptional(&swrAllocSetOpts2, swr, "swr_alloc_set_opts2") &&
			dl.RegisterOptional(&swrInit, swr, "swr_init") &&
			dl.RegisterOptional(&swrConvert, swr, "swr_convert") &&
			dl.RegisterOptional(&swrFree, swr, "swr_free") &&
			hasChannelLayoutOptions
	}
	return nil
}

func loadFFmpegSymbols(util, codec uintptr) (err error) {
	// RegisterLibFunc panics on a missing symbol.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("missing symbol: %v", r)
		}
	}()

	purego.RegisterLibFunc(&avFrameAlloc, util, "av_frame_alloc")
	purego.RegisterLibFunc(&avFrameFree, util, "av_frame_free")
	purego.RegisterLibFunc(&avFrameUnref, util, "av_frame_unref")
	purego.RegisterLibFunc(&avStrerror, util, "av_strerror")
	purego.RegisterLibFunc(&avMallocz, util, "av_mallocz")
	purego.RegisterLibFunc(&avOptSetInt, util, "av_opt_set_int")
	purego.RegisterLibFunc(&avOptGetInt, util, "av_opt_get_int")
	hasChannelLayoutOptions = dl.RegisterOptional(&avOptGetChlayout, util, "av_opt_get_chlayout") &&
		dl.RegisterOptional(&avOptSetChlayout, util, "av_opt_set_chlayout") &&
		dl.RegisterOptional(&avChannelLayoutDefault, util, "av_channel_layout_default") &&
		dl.RegisterOptional(&avChannelLayoutUninit, util, "av_channel_layout_uninit")

	purego.RegisterLibFunc(&avcodecFindDecoderByName, codec, "avcodec_find_decoder_by_name")
	purego.RegisterLibFunc(&avcodecGetName, codec, "avcodec_get_name")
	purego.RegisterLibFunc(&avParserInit, codec, "av_parser_init")
	purego.RegisterLibFunc(&avParserParse2, codec, "av_parser_parse2")
	purego.RegisterLibFunc(&avParserClose, codec, "av_parser_close")
	purego.RegisterLibFunc(&avcodecAllocContext3, codec, "avcodec_alloc_context3")
	purego.RegisterLibFunc(&avcodecFreeContext, codec, "avcodec_free_context")
	purego.RegisterLibFunc(&avcodecOpen2, codec, "avcodec_open2")
	purego.RegisterLibFunc(&avcodecParametersAlloc, codec, "avcodec_parameters_alloc")
	purego.RegisterLibFunc(&avcodecParametersFree, codec, "avcodec_parameters_free")
	purego.RegisterLibFunc(&avcodecParametersToCtx, codec, "avcodec_parameters_to_context")
	purego.RegisterLibFunc(&avPacketAlloc, codec, "av_packet_alloc")
	purego.RegisterLibFunc(&avPacketFree, codec, "av_packet_free")
	purego.RegisterLibFunc(&avcodecSendPacket, codec, "avcodec_send_packet")
	purego.RegisterLibFunc(&avcodecReceiveFrame, codec, "avcodec_receive_frame")
	return nil
}

func ffmpegErrorString(e Errno) string {
	var buf [64]byte
	if avStrerror(int32(e), &buf[0], uint64(len(buf))) < 0 {
		return ""
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// status converts a negative FFmpeg return value to an Errno.
func status(ret int32) error {
	if ret < 0 {
		return Errno(ret)
	}
	return nil
}

func readInt32(base uintptr, off uintptr) int32 {
	return *(*int32)(unsafe.Pointer(base + off))
}

func writeInt32(base uintptr, off uintptr, v int32) {
	*(*int32)(unsafe.Pointer(base + off)) = v
}

func readPtr(base uintptr, off uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(base + off))
}

func writePtr(base uintptr, off uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(base + off)) = v
}

// cBytes views n bytes of C memory as a slice without copying.
func cBytes(ptr uintptr, n int) []byte {
	if ptr == 0 || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n)
}
