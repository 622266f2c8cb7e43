package castkit

import (
	"strings"

	"github.com/pion/logging"
)

// ParseLogLevel maps a level name to a pion log level. Unknown names yield warn.
func ParseLogLevel(level string) logging.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "disabled", "off":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "info":
		return logging.LogLevelInfo
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	default:
		return logging.LogLevelWarn
	}
}

// NewLoggerFactory returns a factory whose default level is level.
// PION_LOG_* environment variables still override individual scopes.
func NewLoggerFactory(level string) *logging.DefaultLoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	if level != "" {
		f.DefaultLogLevel = ParseLogLevel(level)
	}
	return f
}

func loggerFrom(f logging.LoggerFactory, scope string) logging.LeveledLogger {
	if f == nil {
		f = logging.NewDefaultLoggerFactory()
	}
	return f.NewLogger(scope)
}
