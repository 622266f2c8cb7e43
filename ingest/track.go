package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/logging"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/thesyncim/castkit"
)

// ReadTrack depacketizes a remote WebRTC track into sink until the track
// ends or ctx is done. The codec is taken from the negotiated MIME type.
func ReadTrack(ctx context.Context, track *webrtc.TrackRemote, sink Sink, factory logging.LoggerFactory) error {
	d, deliver, err := trackDepacketizer(track.Kind(), track.Codec().MimeType, sink)
	if err != nil {
		return err
	}
	log := newLogger(factory, "ingest")
	log.Infof("reading %s track %s (%s)", track.Kind(), track.ID(), track.Codec().MimeType)

	stop := context.AfterFunc(ctx, func() {
		_ = track.SetReadDeadline(time.Now())
	})
	defer stop()

	err = pump(func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	}, d, deliver, log)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func trackDepacketizer(kind webrtc.RTPCodecType, mime string, sink Sink) (Depacketizer, func([]byte), error) {
	switch kind {
	case webrtc.RTPCodecTypeVideo:
		d, err := NewVideoDepacketizer(castkit.VideoCodecFromMimeType(mime))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", mime, err)
		}
		return d, sink.ProcessVideo, nil
	case webrtc.RTPCodecTypeAudio:
		d, err := NewAudioDepacketizer(castkit.AudioCodecFromMimeType(mime))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", mime, err)
		}
		return d, sink.ProcessAudio, nil
	default:
		return nil, nil, fmt.Errorf("ingest: unsupported track kind %s", kind)
	}
}

// pump feeds packets from read through d until read fails. io.EOF ends
// the stream cleanly. Depacketizer errors are logged and skipped.
func pump(read func() (*rtp.Packet, error), d Depacketizer, deliver func([]byte), log logging.LeveledLogger) error {
	for {
		pkt, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		f, err := d.Depacketize(pkt)
		if err != nil {
			log.Warnf("depacketize: %v", err)
			d.Reset()
			continue
		}
		if f != nil {
			deliver(f.Data)
		}
	}
}
