package player

import (
	"fmt"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/thesyncim/castkit"
)

// QueuePolicy decides what ProcessAudio and ProcessVideo do on a full queue.
type QueuePolicy int

const (
	// QueueDropOldest discards the oldest queued packet to make room.
	QueueDropOldest QueuePolicy = iota
	// QueueBlock blocks the producer until the worker catches up or Stop is called.
	QueueBlock
)

func (q QueuePolicy) String() string {
	switch q {
	case QueueDropOldest:
		return "drop-oldest"
	case QueueBlock:
		return "block"
	default:
		return "unknown"
	}
}

// UnmarshalText parses "drop-oldest" or "block".
func (q *QueuePolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "drop-oldest", "drop_oldest", "":
		*q = QueueDropOldest
	case "block":
		*q = QueueBlock
	default:
		return fmt.Errorf("unknown queue policy %q", text)
	}
	return nil
}

// Config configures a Player.
type Config struct {
	QueueCapacity int           `yaml:"queue_capacity"` // per media kind; <= 0 means unbounded
	QueuePolicy   QueuePolicy   `yaml:"queue_policy"`
	TickInterval  time.Duration `yaml:"tick_interval"` // UI loop sleep between iterations

	// ReopenAudioOnFormatChange closes and reopens the audio device when
	// decoded audio no longer matches the negotiated spec.
	ReopenAudioOnFormatChange bool `yaml:"reopen_audio_on_format_change"`

	DumpVideoPath string `yaml:"dump_video_path"` // raw I420 output, empty disables
	DumpAudioPath string `yaml:"dump_audio_path"` // raw PCM output, empty disables

	LoggerFactory logging.LoggerFactory `yaml:"-"`
	Library       castkit.CodecLibrary  `yaml:"-"` // nil loads FFmpeg on first decode
	EventHandler  EventHandler          `yaml:"-"`
}

// DefaultConfig returns the default player configuration.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:             256,
		QueuePolicy:               QueueDropOldest,
		TickInterval:              10 * time.Millisecond,
		ReopenAudioOnFormatChange: true,
	}
}

// ConfigFromFile returns DefaultConfig overlaid with the player section of fc.
func ConfigFromFile(fc *castkit.FileConfig) (Config, error) {
	cfg := DefaultConfig()
	if fc == nil {
		return cfg, nil
	}
	if err := castkit.DecodeSection(&fc.Player, &cfg); err != nil {
		return cfg, fmt.Errorf("player config: %w", err)
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = castkit.NewLoggerFactory(fc.Castkit.LogLevel)
	}
	return cfg, nil
}
