// Package ingest feeds encoded media from network sources into a player.
//
// Sources hand complete access units to a Sink: RTP over UDP (Receiver),
// a WebRTC remote track (ReadTrack) and RTMP publishers (RTMPHandler).
// Video leaves ingest as Annex-B for H.264 and as raw frames for VP8/VP9.
// AAC leaves as ADTS so the decoder's parser can frame it.
package ingest

import (
	"github.com/pion/logging"
)

// Sink consumes encoded access units. *player.Player satisfies it.
type Sink interface {
	ProcessAudio(b []byte)
	ProcessVideo(b []byte)
}

// Frame is one reassembled access unit.
type Frame struct {
	Data      []byte
	Keyframe  bool
	Timestamp uint32 // RTP timestamp
}

func newLogger(f logging.LoggerFactory, scope string) logging.LeveledLogger {
	if f == nil {
		f = logging.NewDefaultLoggerFactory()
	}
	return f.NewLogger(scope)
}
