package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := New(NewHandler(&buf, slog.LevelDebug)).Named("game")

	log.Error("0. error msg")
	log.Warn("1. warn msg")
	log.Info("2. info msg")
	log.Verbose("3. verbose msg", "story", "a")
	log.Debug("4. debug msg")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "level=VERBOSE")
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "ns=game")
	assert.Contains(t, out, "story=a")
}

func TestLog_Threshold(t *testing.T) {
	var buf bytes.Buffer
	log := New(NewHandler(&buf, slog.LevelInfo))

	log.Verbose("hidden")
	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"error":   slog.LevelError,
		"WARN":    slog.LevelWarn,
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"verbose": LevelVerbose,
		"debug":   slog.LevelDebug,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSink(t *testing.T) {
	s := NewSink(3)

	fmt.Fprint(s, "one\ntw")
	assert.Equal(t, []string{"one"}, s.Drain())

	fmt.Fprint(s, "o\nthree\nfour\nfive\n")
	assert.Equal(t, []string{"three", "four", "five"}, s.Drain(), "oldest lines are dropped")
	assert.Empty(t, s.Drain())
}
