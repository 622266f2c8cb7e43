package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidADTS is returned when an ADTS header is malformed.
	ErrInvalidADTS = errors.New("ingest: invalid ADTS header")

	// ErrInvalidAudioConfig is returned for an AudioSpecificConfig that
	// cannot be expressed in an ADTS header.
	ErrInvalidAudioConfig = errors.New("ingest: unsupported AudioSpecificConfig")
)

const (
	adtsHeaderLen = 7
	adtsMaxFrame  = 1<<13 - 1
)

// ISO 14496-3 sampling frequency index table.
var aacSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

// AudioSpecificConfig is the leading part of an MPEG-4 AudioSpecificConfig.
type AudioSpecificConfig struct {
	ObjectType      uint8 // 2 = AAC-LC
	SampleRateIndex uint8
	Channels        uint8
}

// SampleRate returns the sampling rate in Hz.
func (c AudioSpecificConfig) SampleRate() int {
	if int(c.SampleRateIndex) >= len(aacSampleRates) {
		return 0
	}
	return aacSampleRates[c.SampleRateIndex]
}

// ParseAudioSpecificConfig decodes the object type, sampling index and
// channel configuration from b.
func ParseAudioSpecificConfig(b []byte) (AudioSpecificConfig, error) {
	if len(b) < 2 {
		return AudioSpecificConfig{}, fmt.Errorf("%w: %d bytes", ErrInvalidAudioConfig, len(b))
	}
	c := AudioSpecificConfig{
		ObjectType:      b[0] >> 3,
		SampleRateIndex: (b[0]&0x07)<<1 | b[1]>>7,
		Channels:        (b[1] >> 3) & 0x0F,
	}
	// ADTS carries the object type in two bits and has no room for an
	// explicit sampling rate.
	if c.ObjectType == 0 || c.ObjectType > 4 {
		return c, fmt.Errorf("%w: object type %d", ErrInvalidAudioConfig, c.ObjectType)
	}
	if int(c.SampleRateIndex) >= len(aacSampleRates) {
		return c, fmt.Errorf("%w: sampling index %d", ErrInvalidAudioConfig, c.SampleRateIndex)
	}
	return c, nil
}

// AppendADTS appends an ADTS header describing frame to dst,
// followed by frame.
func AppendADTS(dst []byte, c AudioSpecificConfig, frame []byte) ([]byte, error) {
	total := adtsHeaderLen + len(frame)
	if total > adtsMaxFrame {
		return dst, fmt.Errorf("%w: frame of %d bytes", ErrInvalidADTS, len(frame))
	}
	profile := c.ObjectType - 1
	dst = append(dst,
		0xFF,
		0xF1, // MPEG-4, layer 0, no CRC
		profile<<6|c.SampleRateIndex<<2|c.Channels>>2,
		(c.Channels&0x03)<<6|byte(total>>11),
		byte(total>>3),
		byte(total&0x07)<<5|0x1F, // buffer fullness 0x7FF
		0xFC,                     // one raw data block
	)
	return append(dst, frame...), nil
}

// ADTSHeader is a decoded ADTS fixed and variable header.
type ADTSHeader struct {
	Config       AudioSpecificConfig
	HeaderLength int
	FrameLength  int // header included
}

// ParseADTSHeader decodes the header at the start of b.
func ParseADTSHeader(b []byte) (ADTSHeader, error) {
	var h ADTSHeader
	if len(b) < adtsHeaderLen || b[0] != 0xFF || b[1]&0xF0 != 0xF0 {
		return h, ErrInvalidADTS
	}
	h.HeaderLength = adtsHeaderLen
	if b[1]&0x01 == 0 {
		h.HeaderLength += 2
	}
	h.Config = AudioSpecificConfig{
		ObjectType:      b[2]>>6 + 1,
		SampleRateIndex: (b[2] >> 2) & 0x0F,
		Channels:        (b[2]&0x01)<<2 | b[3]>>6,
	}
	if int(h.Config.SampleRateIndex) >= len(aacSampleRates) {
		return h, ErrInvalidADTS
	}
	h.FrameLength = int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5]>>5)
	if h.FrameLength < h.HeaderLength {
		return h, ErrInvalidADTS
	}
	return h, nil
}
