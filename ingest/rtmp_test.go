package ingest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

var avcSequenceHeader = []byte{
	0x17, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x42, 0x00, 0x1E, 0xFF, // version, profile, compat, level, length size 4
	0xE1, 0x00, 0x02, 0x67, 0x42, // one SPS
	0x01, 0x00, 0x02, 0x68, 0xCE, // one PPS
}

func publish(t *testing.T, h *RTMPHandler) {
	t.Helper()
	if err := h.OnPublish(nil, 0, &rtmpmsg.NetStreamPublish{PublishingName: "live"}); err != nil {
		t.Fatal(err)
	}
}

func TestRTMPHandlerVideo(t *testing.T) {
	sink := newRecordingSink()
	h := NewRTMPHandler(sink, nil)
	publish(t, h)

	tags := [][]byte{
		{0x17, 0x01, 0, 0, 0, 0, 0, 0, 2, 0x65, 0x88}, // before the sequence header
		avcSequenceHeader,
		{0x17, 0x01, 0, 0, 0, 0, 0, 0, 2, 0x65, 0x88},
		{0x27, 0x01, 0, 0, 0, 0, 0, 0, 2, 0x41, 0x9A, 0, 0, 0, 1, 0x01},
		{0x27, 0x01, 0, 0, 0, 0, 0, 0, 9, 0x41}, // overruns
		{0x12, 0x01, 0, 0, 0},                   // not AVC
	}
	for _, tag := range tags {
		if err := h.OnVideo(0, bytes.NewReader(tag)); err != nil {
			t.Fatal(err)
		}
	}

	video, _ := sink.frames()
	want := [][]byte{
		annexB([]byte{0x67, 0x42}, []byte{0x68, 0xCE}, []byte{0x65, 0x88}),
		annexB([]byte{0x41, 0x9A}, []byte{0x01}),
	}
	if len(video) != len(want) {
		t.Fatalf("got %d frames, want %d", len(video), len(want))
	}
	for i := range want {
		if !bytes.Equal(video[i], want[i]) {
			t.Errorf("frame %d = % x, want % x", i, video[i], want[i])
		}
	}
	if st := h.Stats(); st.VideoFrames != 2 || st.Dropped != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRTMPHandlerAudio(t *testing.T) {
	sink := newRecordingSink()
	h := NewRTMPHandler(sink, nil)
	publish(t, h)

	for _, tag := range [][]byte{
		{0xAF, 0x01, 0x21},       // raw before config
		{0xAF, 0x00, 0x12, 0x10}, // LC 44.1k stereo
		{0xAF, 0x01, 0x21, 0x22, 0x23},
		{0x72, 0xD5, 0xD5}, // A-law
		{0x2F, 0x00},       // MP3
	} {
		if err := h.OnAudio(0, bytes.NewReader(tag)); err != nil {
			t.Fatal(err)
		}
	}

	_, audio := sink.frames()
	if len(audio) != 2 {
		t.Fatalf("got %d audio frames, want 2", len(audio))
	}
	h0, err := ParseADTSHeader(audio[0])
	if err != nil {
		t.Fatal(err)
	}
	if h0.FrameLength != len(audio[0]) || !bytes.Equal(audio[0][h0.HeaderLength:], []byte{0x21, 0x22, 0x23}) {
		t.Errorf("ADTS frame = % x", audio[0])
	}
	if !bytes.Equal(audio[1], []byte{0xD5, 0xD5}) {
		t.Errorf("G.711 frame = % x", audio[1])
	}
}

func TestRTMPHandlerIgnoresMediaBeforePublish(t *testing.T) {
	sink := newRecordingSink()
	h := NewRTMPHandler(sink, nil)
	_ = h.OnVideo(0, bytes.NewReader(avcSequenceHeader))
	_ = h.OnAudio(0, bytes.NewReader([]byte{0x72, 0xD5}))
	if v, a := sink.frames(); len(v)+len(a) != 0 {
		t.Errorf("delivered %d frames before publish", len(v)+len(a))
	}
}

func TestRTMPSinglePublisher(t *testing.T) {
	gate := &publishGate{}
	disconnects := 0
	newHandler := func() *RTMPHandler {
		h := NewRTMPHandler(newRecordingSink(), logging.NewDefaultLoggerFactory())
		h.gate = gate
		h.onDisconnect = func() { disconnects++ }
		return h
	}
	first, second := newHandler(), newHandler()
	publish(t, first)

	err := second.OnPublish(nil, 0, &rtmpmsg.NetStreamPublish{PublishingName: "other"})
	if !errors.Is(err, ErrPublisherActive) {
		t.Fatalf("second publisher: err = %v", err)
	}
	second.OnClose()
	if disconnects != 0 {
		t.Errorf("rejected publisher fired OnDisconnect")
	}

	first.OnClose()
	if disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", disconnects)
	}
	publish(t, second)
}

func TestLogrusLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"trace", logrus.TraceLevel},
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"off", logrus.PanicLevel},
	}
	for _, tt := range tests {
		if got := logrusLevel(tt.in); got != tt.want {
			t.Errorf("logrusLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRTMPServer(t *testing.T) {
	if NewRTMPServer(RTMPServerConfig{Sink: newRecordingSink(), LogLevel: "debug"}) == nil {
		t.Fatal("nil server")
	}
}
