package castkit

import "sync/atomic"

// DecoderEventKind tags a DecoderEvent.
type DecoderEventKind int

const (
	EventFrameDecoded DecoderEventKind = iota
	EventDecodeError
	EventFatalError
)

func (k DecoderEventKind) String() string {
	switch k {
	case EventFrameDecoded:
		return "frame"
	case EventDecodeError:
		return "decode-error"
	case EventFatalError:
		return "fatal-error"
	default:
		return "unknown"
	}
}

// DecoderEvent is one decoder callback. Frame is set for EventFrameDecoded
// and owns its memory.
type DecoderEvent struct {
	Kind    DecoderEventKind
	Frame   *Frame
	Message string
}

// EventChannel is a DecoderClient that publishes callbacks as events.
// Frames are cloned before publication and error events always block until
// received.
//
// Channels from NewEventChannel deliver frames best-effort: a frame that
// cannot be queued immediately is dropped and counted, so an unbuffered
// channel only delivers frames to a receiver that is already waiting.
// Channels from NewBlockingEventChannel deliver every frame and stall the
// decoder until the receiver catches up.
type EventChannel struct {
	ch       chan DecoderEvent
	blocking bool
	dropped  atomic.Uint64
}

// NewEventChannel creates a best-effort adapter with the given buffer size.
func NewEventChannel(buffer int) *EventChannel {
	if buffer < 0 {
		buffer = 0
	}
	return &EventChannel{ch: make(chan DecoderEvent, buffer)}
}

// NewBlockingEventChannel creates an adapter that never drops frames.
func NewBlockingEventChannel(buffer int) *EventChannel {
	e := NewEventChannel(buffer)
	e.blocking = true
	return e
}

// Events returns the receive side of the channel.
func (e *EventChannel) Events() <-chan DecoderEvent {
	return e.ch
}

// Dropped returns the number of frames discarded on a full buffer.
func (e *EventChannel) Dropped() uint64 {
	return e.dropped.Load()
}

// OnFrameDecoded implements DecoderClient.
func (e *EventChannel) OnFrameDecoded(frame *Frame) {
	if e.blocking {
		e.ch <- DecoderEvent{Kind: EventFrameDecoded, Frame: frame.Clone()}
		return
	}
	// A full buffer drops without paying for the copy.
	if cap(e.ch) > 0 && len(e.ch) == cap(e.ch) {
		e.dropped.Add(1)
		return
	}
	select {
	case e.ch <- DecoderEvent{Kind: EventFrameDecoded, Frame: frame.Clone()}:
	default:
		e.dropped.Add(1)
	}
}

// OnDecodeError implements DecoderClient.
func (e *EventChannel) OnDecodeError(msg string) {
	e.ch <- DecoderEvent{Kind: EventDecodeError, Message: msg}
}

// OnFatalError implements DecoderClient.
func (e *EventChannel) OnFatalError(msg string) {
	e.ch <- DecoderEvent{Kind: EventFatalError, Message: msg}
}

// Close closes the event channel. The decoder must not be used afterwards.
func (e *EventChannel) Close() {
	close(e.ch)
}
