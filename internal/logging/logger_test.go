package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Info().Str("provider", "ollama").Msg("selection loaded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "selection loaded", line["message"])
	assert.Equal(t, "ollama", line["provider"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "time")
}

func TestNewNilWriterDefaultsToStderr(t *testing.T) {
	require.NotNil(t, New(nil, "info"))
}

func TestSubTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	log.Sub("gateway").Info().Msg("listening")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "gateway", line["subsystem"])
	assert.Equal(t, "listening", line["message"])
}

func TestSubNesting(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")

	log.Sub("gateway").Sub("ws").Info().Msg("client connected")

	out := buf.String()
	assert.Contains(t, out, "client connected")
	assert.Contains(t, out, "ws")
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		info  bool
		warn  bool
		err   bool
	}{
		{"trace", true, true, true, true},
		{"debug", true, true, true, true},
		{"info", false, true, true, true},
		{"warn", false, false, true, true},
		{"error", false, false, false, true},
		{"silent", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(&buf, tt.level)

			check := func(want bool, emit func() *zerolog.Event, msg string) {
				buf.Reset()
				emit().Msg(msg)
				if want {
					assert.Contains(t, buf.String(), msg)
				} else {
					assert.Empty(t, buf.String())
				}
			}
			check(tt.debug, log.Debug, "debug line")
			check(tt.info, log.Info, "info line")
			check(tt.warn, log.Warn, "warn line")
			check(tt.err, log.Error, "error line")
		})
	}
}

func TestParseLevel(t *testing.T) {
	known := map[string]zerolog.Level{
		"trace":  zerolog.TraceLevel,
		"debug":  zerolog.DebugLevel,
		"info":   zerolog.InfoLevel,
		"warn":   zerolog.WarnLevel,
		"error":  zerolog.ErrorLevel,
		"fatal":  zerolog.FatalLevel,
		"silent": zerolog.Disabled,
	}
	for input, want := range known {
		assert.Equal(t, want, parseLevel(input), "level %q", input)
	}

	// Anything unrecognized falls back to info, including upper case.
	for _, input := range []string{"", "unknown", "INFO", "Warn"} {
		assert.Equal(t, zerolog.InfoLevel, parseLevel(input), "level %q", input)
	}
}

func TestZerologEscapeHatch(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	zl := log.Zerolog()
	zl.Info().Msg("direct zerolog")
	assert.Contains(t, buf.String(), "direct zerolog")
}

func TestOpenConsoleOnly(t *testing.T) {
	log, closer, err := Open("info", "json", "")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Nil(t, closer)
}

func TestOpenWritesLogFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "perch.log")

	log, closer, err := Open("info", "json", file)
	require.NoError(t, err)
	require.NotNil(t, closer)

	log.Info().Str("key", "value").Msg("file message")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file message")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestOpenAppendsAcrossRuns(t *testing.T) {
	file := filepath.Join(t.TempDir(), "perch.log")

	for _, msg := range []string{"first run", "second run"} {
		log, closer, err := Open("info", "compact", file)
		require.NoError(t, err)
		log.Info().Msg(msg)
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first run")
	assert.Contains(t, string(data), "second run")
}

func TestConsoleWriterStyles(t *testing.T) {
	for _, style := range []string{"pretty", "compact", "json", "unknown"} {
		t.Run(style, func(t *testing.T) {
			assert.NotNil(t, consoleWriter(style))
		})
	}
}
