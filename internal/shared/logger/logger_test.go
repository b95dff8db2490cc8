package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionalSourceHandler(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	l := slog.New(NewConditionalSourceHandler(base, slog.LevelWarn, slog.LevelError))

	l.Info("plain")
	infoLine := buf.String()
	buf.Reset()

	l.Warn("with source")
	warnLine := buf.String()

	assert.NotContains(t, infoLine, "source=")
	assert.Contains(t, warnLine, "source=")
	assert.True(t, strings.Contains(warnLine, "logger_test.go"), "source should point at the caller: %s", warnLine)
}

func TestConditionalSourceHandler_WithAttrsKeepsLevels(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	l := slog.New(NewConditionalSourceHandler(base, slog.LevelError)).With("component", "test")

	l.Error("boom")

	assert.Contains(t, buf.String(), "component=test")
	assert.Contains(t, buf.String(), "source=")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
