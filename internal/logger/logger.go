// Package logger provides the structured logger shared by the viewer packages.
// It wraps zerolog and can optionally write to a rotating log file.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// LogConfig describes where log output goes.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level" toml:"level"`

	// Console selects the human readable console writer instead of JSON lines.
	Console bool `yaml:"console" toml:"console"`

	// Logfile, if set, receives log output through a rotating writer.
	Logfile string `yaml:"file" toml:"file"`
	MaxSize int    `yaml:"maxSize" toml:"max_log_size"` // megabytes
	MaxAge  int    `yaml:"maxAge" toml:"max_log_age"`   // days
}

// Logger is a component-tagged adapter around zerolog.
type Logger struct {
	logger zerolog.Logger
	closer io.Closer
}

// New creates a logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level) *Logger {
	l := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &Logger{logger: l}
}

// NewConsole creates a logger using zerolog's console writer on stderr.
func NewConsole(level zerolog.Level) *Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// FromConfig builds a logger from the logging section of the configuration.
func FromConfig(c LogConfig) *Logger {
	level := ParseLevel(c.Level)
	if c.Logfile != "" {
		lj := &lumberjack.Logger{
			Filename: c.Logfile,
			MaxSize:  c.MaxSize,
			MaxAge:   c.MaxAge,
		}
		l := New(lj, level)
		l.closer = lj
		return l
	}
	if c.Console {
		return NewConsole(level)
	}
	return New(os.Stderr, level)
}

// ParseLevel maps a level name onto a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Info logs message at info level.
func (l *Logger) Info(component, message string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	event := l.logger.Info().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// Warning logs message at warn level.
func (l *Logger) Warning(component, message string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	event := l.logger.Warn().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// Error logs err at error level.
func (l *Logger) Error(component string, err error, fields map[string]interface{}) {
	if l == nil {
		return
	}
	event := l.logger.Error().Str("component", component).Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg("operation failed")
}

// Debug logs message at debug level.
func (l *Logger) Debug(component, message string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	event := l.logger.Debug().Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}
