package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin zerolog wrapper that hands out subsystem-scoped
// child loggers.
type Logger struct {
	zl zerolog.Logger
}

// New builds a root logger at the given level. A nil writer means pretty
// console output on stderr.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Open creates a root logger from resolved logging settings: a console style
// ("pretty", "compact", or "json") and an optional log file that receives
// every line as JSON alongside the console output. The returned closer is
// non-nil only when a file was opened.
func Open(level, style, file string) (*Logger, io.Closer, error) {
	console := consoleWriter(style)

	if file == "" {
		return New(console, level), nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	return New(zerolog.MultiLevelWriter(console, f), level), f, nil
}

// consoleWriter maps a console style name to a writer on stderr.
// Unknown styles fall back to pretty.
func consoleWriter(style string) io.Writer {
	switch style {
	case "json":
		return os.Stderr
	case "compact":
		return zerolog.ConsoleWriter{
			Out:          os.Stderr,
			TimeFormat:   "15:04:05",
			PartsExclude: []string{zerolog.TimestampFieldName},
		}
	default:
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
}

// Sub returns a child logger carrying a subsystem field, so every line
// names the component that emitted it.
func (l *Logger) Sub(subsystem string) *Logger {
	return &Logger{zl: l.zl.With().Str("subsystem", subsystem).Logger()}
}

// Event constructors at each level, passing through to zerolog.

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// Zerolog exposes the wrapped logger for callers that need the full API.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

var levelNames = map[string]zerolog.Level{
	"trace":  zerolog.TraceLevel,
	"debug":  zerolog.DebugLevel,
	"info":   zerolog.InfoLevel,
	"warn":   zerolog.WarnLevel,
	"error":  zerolog.ErrorLevel,
	"fatal":  zerolog.FatalLevel,
	"silent": zerolog.Disabled,
}

// parseLevel is forgiving: anything unrecognized runs at info.
func parseLevel(s string) zerolog.Level {
	if lvl, ok := levelNames[s]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}
