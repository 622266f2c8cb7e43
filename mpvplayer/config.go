package mpvplayer

import (
	"fmt"
	"sort"
	"time"

	"github.com/pion/logging"

	"github.com/thesyncim/castkit"
)

// Config configures a Player.
type Config struct {
	// LibPath is the libmpv file or a directory holding it. Empty searches
	// CASTKIT_MPV_LIB_PATH and the system locations.
	LibPath string `yaml:"lib_path"`

	// Options are set on the core before initialization and override the
	// built-in defaults of the same name.
	Options map[string]string `yaml:"options"`

	// DisconnectGrace is how long after a window close the disconnect
	// callback waits, leaving the host time to tear the stream down.
	DisconnectGrace time.Duration `yaml:"disconnect_grace"`

	// SeekEndMargin keeps seeks this many seconds before the end of the media.
	SeekEndMargin float64 `yaml:"seek_end_margin"`

	LoggerFactory logging.LoggerFactory `yaml:"-"`
}

// DefaultConfig returns the default URL player configuration.
func DefaultConfig() Config {
	return Config{
		DisconnectGrace: 2 * time.Second,
		SeekEndMargin:   0.05,
	}
}

// ConfigFromFile returns DefaultConfig overlaid with the mpv section of fc.
func ConfigFromFile(fc *castkit.FileConfig) (Config, error) {
	cfg := DefaultConfig()
	if fc == nil {
		return cfg, nil
	}
	if err := castkit.DecodeSection(&fc.MPV, &cfg); err != nil {
		return cfg, fmt.Errorf("mpv config: %w", err)
	}
	if cfg.LibPath == "" {
		cfg.LibPath = fc.Castkit.MPVLibPath
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = castkit.NewLoggerFactory(fc.Castkit.LogLevel)
	}
	return cfg, nil
}

// defaultOptions put the core in render-API mode with no window or
// config file of its own.
var defaultOptions = []option{
	{"config", "no"},
	{"vo", "libmpv"},
	{"hwdec", "auto-safe"},
	{"osc", "no"},
	{"user-agent", "AppleCoreMedia/1.0"},
	{"cache", "yes"},
	{"force-seekable", "yes"},
}

type option struct {
	name, value string
}

// coreOptions merges overrides into the defaults, keeping default order
// and appending new names sorted.
func coreOptions(overrides map[string]string) []option {
	opts := make([]option, 0, len(defaultOptions)+len(overrides))
	seen := make(map[string]bool, len(defaultOptions))
	for _, o := range defaultOptions {
		if v, ok := overrides[o.name]; ok {
			o.value = v
		}
		seen[o.name] = true
		opts = append(opts, o)
	}
	var extra []option
	for k, v := range overrides {
		if !seen[k] {
			extra = append(extra, option{k, v})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].name < extra[j].name })
	return append(opts, extra...)
}
