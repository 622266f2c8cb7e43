package castkit

import (
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
)

// Errno is a negative status code returned by the codec library.
type Errno int

// Codec library status codes the decoder classifies.
const (
	ErrnoAgain   = Errno(-int(syscall.EAGAIN))
	ErrnoInvalid = Errno(-int(syscall.EINVAL))
	ErrnoNoMem   = Errno(-int(syscall.ENOMEM))
	ErrnoEOF     = Errno(-0x20464F45) // -MKTAG('E','O','F',' ')
)

var errnoDescriber atomic.Pointer[func(Errno) string]

// setErrnoDescriber installs the codec library's own error-string function.
func setErrnoDescriber(fn func(Errno) string) {
	errnoDescriber.Store(&fn)
}

func (e Errno) Error() string {
	if fn := errnoDescriber.Load(); fn != nil {
		if msg := (*fn)(e); msg != "" {
			return msg
		}
	}
	switch e {
	case ErrnoAgain:
		return "Resource temporarily unavailable"
	case ErrnoInvalid:
		return "Invalid argument"
	case ErrnoNoMem:
		return "Cannot allocate memory"
	case ErrnoEOF:
		return "End of file"
	default:
		return fmt.Sprintf("codec error %d", int(e))
	}
}

// Fatal reports whether the code leaves the codec unusable.
func (e Errno) Fatal() bool {
	return e == ErrnoEOF || e == ErrnoInvalid || e == ErrnoNoMem
}

// Again reports whether the codec needs more input before producing output.
func (e Errno) Again() bool {
	return e == ErrnoAgain
}

// IsFatal reports whether err is, or wraps, a fatal codec status.
func IsFatal(err error) bool {
	var e Errno
	return errors.As(err, &e) && e.Fatal()
}

// IsAgain reports whether err is, or wraps, EAGAIN.
func IsAgain(err error) bool {
	var e Errno
	return errors.As(err, &e) && e.Again()
}

// DecodeError describes a failure at one decoder stage.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("what: %s; error: %s", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
