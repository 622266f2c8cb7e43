package mpvplayer

import (
	"github.com/mitchellh/mapstructure"
)

// PlaybackInfo is a snapshot of the player state.
type PlaybackInfo struct {
	Position float64 // seconds
	Duration float64 // seconds, 0 when unknown
	Rate     float64 // 0 while paused, the nominal speed otherwise
	Paused   bool
	Seekable bool
	Width    int
	Height   int

	BufferingState   int // 1 while playback waits for the cache
	BufferingPercent int
	CacheDuration    float64 // seconds buffered ahead
	FwBytes          int64
	BwBytes          int64

	VideoCodec string
	AudioCodec string
}

// IsLive reports whether the media looks like a live stream.
func (i PlaybackInfo) IsLive() bool {
	return i.Duration <= 0 && !i.Seekable
}

// cacheState is the subset of demuxer-cache-state the player reports.
type cacheState struct {
	CacheDuration float64 `mapstructure:"cache-duration"`
	FwBytes       int64   `mapstructure:"fw-bytes"`
	BwBytes       int64   `mapstructure:"bw-bytes"`
}

func decodeCacheState(v any) (cacheState, error) {
	var cs cacheState
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cs,
	})
	if err != nil {
		return cs, err
	}
	return cs, dec.Decode(v)
}

// apply updates the snapshot from one property change. speed is the
// nominal playback speed. It reports whether name was recognized.
func (i *PlaybackInfo) apply(name string, v any, speed float64) bool {
	switch name {
	case "time-pos":
		i.Position = asFloat(v)
	case "duration":
		i.Duration = asFloat(v)
	case "pause":
		i.Paused = asBool(v)
		i.Rate = effectiveRate(i.Paused, speed)
	case "speed":
		i.Rate = effectiveRate(i.Paused, speed)
	case "seekable":
		i.Seekable = asBool(v)
	case "dwidth":
		i.Width = int(asInt(v))
	case "dheight":
		i.Height = int(asInt(v))
	case "video-format":
		i.VideoCodec, _ = v.(string)
	case "audio-codec-name":
		i.AudioCodec, _ = v.(string)
	case "paused-for-cache":
		i.BufferingState = 0
		if asBool(v) {
			i.BufferingState = 1
		}
	case "cache-buffering-state":
		i.BufferingPercent = int(asInt(v))
	case "demuxer-cache-state":
		cs, err := decodeCacheState(v)
		if err != nil {
			return false
		}
		i.CacheDuration, i.FwBytes, i.BwBytes = cs.CacheDuration, cs.FwBytes, cs.BwBytes
	default:
		return false
	}
	return true
}

func effectiveRate(paused bool, speed float64) float64 {
	if paused {
		return 0
	}
	return speed
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return 0
}

func asInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
