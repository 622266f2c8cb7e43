package castkit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables read by LoadConfig and the library loaders.
const (
	EnvFFmpegLibPath = "CASTKIT_FFMPEG_LIB_PATH"
	EnvMPVLibPath    = "CASTKIT_MPV_LIB_PATH"
	EnvLogLevel      = "CASTKIT_LOG_LEVEL"
)

// Config holds settings shared by every castkit component.
type Config struct {
	FFmpegLibPath string `yaml:"ffmpeg_lib_path"` // directory holding libavcodec and friends
	MPVLibPath    string `yaml:"mpv_lib_path"`    // libmpv file or directory
	LogLevel      string `yaml:"log_level"`       // trace, debug, info, warn, error
}

// DefaultConfig returns the default shared settings.
func DefaultConfig() Config {
	return Config{LogLevel: "info"}
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvFFmpegLibPath); v != "" {
		c.FFmpegLibPath = v
	}
	if v := os.Getenv(EnvMPVLibPath); v != "" {
		c.MPVLibPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// FileConfig is the layout of a castkit YAML file. Sections other than
// castkit are decoded by the packages that own them.
type FileConfig struct {
	Castkit Config    `yaml:"castkit"`
	Player  yaml.Node `yaml:"player"`
	MPV     yaml.Node `yaml:"mpv"`
}

// LoadConfig reads a YAML config file and applies environment overrides.
// An empty path yields the defaults.
func LoadConfig(path string) (*FileConfig, error) {
	fc := &FileConfig{Castkit: DefaultConfig()}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, fc); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	fc.Castkit.ApplyEnv()
	if fc.Castkit.FFmpegLibPath != "" {
		SetFFmpegLibPath(fc.Castkit.FFmpegLibPath)
	}
	return fc, nil
}

// DecodeSection decodes a package section of the file into out. Missing
// sections leave out untouched so callers can pre-fill defaults.
func DecodeSection(node *yaml.Node, out any) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	return node.Decode(out)
}
