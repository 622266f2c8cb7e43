//go:build !((darwin || linux) && (amd64 || arm64))

package castkit

// FFmpeg is unavailable on this platform.
type FFmpeg struct{}

// SetFFmpegLibPath has no effect on this platform.
func SetFFmpegLibPath(string) {}

// LoadFFmpeg always fails on this platform.
func LoadFFmpeg() (*FFmpeg, error) { return nil, ErrLibraryNotLoaded }

// DefaultCodecLibrary always fails on this platform.
func DefaultCodecLibrary() (CodecLibrary, error) { return nil, ErrLibraryNotLoaded }

// IsFFmpegAvailable reports false on this platform.
func IsFFmpegAvailable() bool { return false }
