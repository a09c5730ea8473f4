// Package logging provides structured logging using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvLevel names the environment variable consulted by FromEnv.
const EnvLevel = "TOOLGUARD_LOG_LEVEL"

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	Disabled   = zerolog.Disabled
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Pretty enables human-readable console output.
	Pretty bool
	// TimeFormat specifies the time format. Defaults to RFC3339.
	TimeFormat string
}

// DefaultConfig returns the configuration used before Init is called.
// Only warnings and above are printed so the decision path stays quiet.
func DefaultConfig() Config {
	return Config{
		Level:      WarnLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// FromEnv returns DefaultConfig with the level taken from TOOLGUARD_LOG_LEVEL when set.
func FromEnv() Config {
	cfg := DefaultConfig()
	if lvl := os.Getenv(EnvLevel); lvl != "" {
		cfg.Level = ParseLevel(lvl)
	}
	return cfg
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	output := cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	Logger = zerolog.New(output).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

// ParseLevel parses a log level string (case-insensitive).
// Supported values: DEBUG, INFO, WARN, ERROR, OFF.
// Returns InfoLevel if the string is not recognized.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "OFF", "NONE":
		return Disabled
	default:
		return InfoLevel
	}
}

// Component returns a child of the global logger tagged with a component name.
// The child is derived at call time, so callers should not cache it across Init.
func Component(name string) *zerolog.Logger {
	l := Logger.With().Str("component", name).Logger()
	return &l
}

// Debug starts a new debug level log message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info starts a new info level log message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn starts a new warn level log message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error starts a new error level log message.
func Error() *zerolog.Event {
	return Logger.Error()
}

func init() {
	Init(FromEnv())
}
