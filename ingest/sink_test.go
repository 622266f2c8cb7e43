package ingest

import (
	"sync"
	"time"
)

type recordingSink struct {
	mu    sync.Mutex
	video [][]byte
	audio [][]byte
	got   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{got: make(chan struct{}, 64)}
}

func (s *recordingSink) ProcessVideo(b []byte) {
	s.mu.Lock()
	s.video = append(s.video, append([]byte(nil), b...))
	s.mu.Unlock()
	s.notify()
}

func (s *recordingSink) ProcessAudio(b []byte) {
	s.mu.Lock()
	s.audio = append(s.audio, append([]byte(nil), b...))
	s.mu.Unlock()
	s.notify()
}

func (s *recordingSink) notify() {
	select {
	case s.got <- struct{}{}:
	default:
	}
}

func (s *recordingSink) frames() (video, audio [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.video...), append([][]byte(nil), s.audio...)
}

// waitFrames blocks until the sink holds n frames in total or d elapses.
func (s *recordingSink) waitFrames(n int, d time.Duration) bool {
	deadline := time.After(d)
	for {
		v, a := s.frames()
		if len(v)+len(a) >= n {
			return true
		}
		select {
		case <-s.got:
		case <-deadline:
			return false
		}
	}
}
