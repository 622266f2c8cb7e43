package castkit

import (
	"encoding/binary"
	"runtime"
	"strings"
)

// VideoCodec identifies the video codec type.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecH264
	VideoCodecH265
	VideoCodecAV1
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecVP8:
		return "VP8"
	case VideoCodecVP9:
		return "VP9"
	case VideoCodecH264:
		return "H264"
	case VideoCodecH265:
		return "H265"
	case VideoCodecAV1:
		return "AV1"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecVP8:
		return "video/VP8"
	case VideoCodecVP9:
		return "video/VP9"
	case VideoCodecH264:
		return "video/H264"
	case VideoCodecH265:
		return "video/H265"
	case VideoCodecAV1:
		return "video/AV1"
	default:
		return ""
	}
}

// ClockRate returns the RTP clock rate for this codec.
func (c VideoCodec) ClockRate() uint32 {
	return 90000
}

// DecoderName returns the name the codec library registers the decoder under.
func (c VideoCodec) DecoderName() string {
	switch c {
	case VideoCodecVP8:
		return "vp8"
	case VideoCodecVP9:
		return "vp9"
	case VideoCodecH264:
		return "h264"
	case VideoCodecH265:
		return "hevc"
	case VideoCodecAV1:
		return "libdav1d"
	default:
		return ""
	}
}

// AudioCodec identifies the audio codec type.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecOpus
	AudioCodecG711A // A-law (PCMA)
	AudioCodecG711U // mu-law (PCMU)
	AudioCodecAAC
	AudioCodecAACELD // AAC-ELD as sent by screen mirroring senders
	AudioCodecALAC   // Apple Lossless over RAOP
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecOpus:
		return "Opus"
	case AudioCodecG711A:
		return "PCMA"
	case AudioCodecG711U:
		return "PCMU"
	case AudioCodecAAC:
		return "AAC"
	case AudioCodecAACELD:
		return "AAC-ELD"
	case AudioCodecALAC:
		return "ALAC"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c AudioCodec) MimeType() string {
	switch c {
	case AudioCodecOpus:
		return "audio/opus"
	case AudioCodecG711A:
		return "audio/PCMA"
	case AudioCodecG711U:
		return "audio/PCMU"
	case AudioCodecAAC, AudioCodecAACELD:
		return "audio/AAC"
	case AudioCodecALAC:
		return "audio/ALAC"
	default:
		return ""
	}
}

// ClockRate returns the RTP clock rate for this codec.
func (c AudioCodec) ClockRate() uint32 {
	switch c {
	case AudioCodecG711A, AudioCodecG711U:
		return 8000
	case AudioCodecALAC:
		return alacSampleRate
	default:
		return 48000
	}
}

// DecoderName returns the name the codec library registers the decoder under.
func (c AudioCodec) DecoderName() string {
	switch c {
	case AudioCodecOpus:
		return "opus"
	case AudioCodecG711A:
		return "pcm_alaw"
	case AudioCodecG711U:
		return "pcm_mulaw"
	case AudioCodecAAC:
		return "aac"
	case AudioCodecAACELD:
		return CodecNameFDKAAC
	case AudioCodecALAC:
		return CodecNameALAC
	default:
		return ""
	}
}

// VideoCodecFromMimeType maps an RTP/SDP MIME type to a VideoCodec.
// The comparison is case-insensitive.
func VideoCodecFromMimeType(mime string) VideoCodec {
	for _, c := range []VideoCodec{VideoCodecVP8, VideoCodecVP9, VideoCodecH264, VideoCodecH265, VideoCodecAV1} {
		if strings.EqualFold(c.MimeType(), mime) {
			return c
		}
	}
	return VideoCodecUnknown
}

// AudioCodecFromMimeType maps an RTP/SDP MIME type to an AudioCodec.
func AudioCodecFromMimeType(mime string) AudioCodec {
	for _, c := range []AudioCodec{AudioCodecOpus, AudioCodecG711A, AudioCodecG711U, AudioCodecAAC, AudioCodecALAC} {
		if strings.EqualFold(c.MimeType(), mime) {
			return c
		}
	}
	return AudioCodecUnknown
}

// Codec names that need out-of-band setup before the decoder can be opened.
const (
	CodecNameFDKAAC = "libfdk_aac"
	CodecNameALAC   = "alac"
)

const (
	alacFramesPerPacket = 352
	alacSampleSize      = 16
	alacChannels        = 2
	alacSampleRate      = 44100

	maxDecoderThreads = 8
)

// aacELDConfig is the AudioSpecificConfig for 44.1kHz stereo AAC-ELD, 480 samples per frame.
var aacELDConfig = []byte{0xF8, 0xE8, 0x50, 0x00}

// alacMagicCookie builds the 36 byte 'alac' atom used as ALAC extradata.
// RAOP never transmits it, so the parameters are the fixed ones the protocol uses.
func alacMagicCookie() []byte {
	b := make([]byte, 36)
	binary.BigEndian.PutUint32(b[0:], 36)
	copy(b[4:8], "alac")
	// b[8:12] version and flags stay zero
	binary.BigEndian.PutUint32(b[12:], alacFramesPerPacket)
	b[16] = 0 // compatible version
	b[17] = alacSampleSize
	b[18] = 40 // history mult
	b[19] = 10 // initial history
	b[20] = 14 // rice limit
	b[21] = alacChannels
	binary.BigEndian.PutUint16(b[22:], 255) // max run
	binary.BigEndian.PutUint32(b[24:], 0)   // max frame bytes
	binary.BigEndian.PutUint32(b[28:], 0)   // average bitrate
	binary.BigEndian.PutUint32(b[32:], alacSampleRate)
	return b
}

// codecExtradata returns the extradata a codec needs injected, or nil when the
// bitstream describes itself.
func codecExtradata(name string) []byte {
	switch name {
	case CodecNameFDKAAC:
		out := make([]byte, len(aacELDConfig))
		copy(out, aacELDConfig)
		return out
	case CodecNameALAC:
		return alacMagicCookie()
	default:
		return nil
	}
}

// codecNeedsParser reports whether input for the codec arrives as a byte stream
// that must go through a parser. RAOP delivers ALAC one frame per packet.
func codecNeedsParser(name string) bool {
	return name != CodecNameALAC
}

// defaultThreadCount clamps the hardware concurrency into [1, 8].
func defaultThreadCount() int {
	return clampThreads(runtime.NumCPU())
}

func clampThreads(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxDecoderThreads {
		return maxDecoderThreads
	}
	return n
}
