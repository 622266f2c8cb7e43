//go:build !((darwin || linux) && (amd64 || arm64))

package mpvplayer

// libmpv is not bound on this platform.
func newLibmpvCore(Config) (core, error) { return nil, ErrLibmpvUnavailable }
