package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestStructuredLoggerBasicEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLoggerWithWriter(&buf, "chess-arbiter", "1.0.0", "info")

	logger.Info("engine started")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "chess-arbiter", entries[0].Service)
	assert.Equal(t, "1.0.0", entries[0].Version)
	assert.Equal(t, "engine started", entries[0].Message)
	assert.NotEmpty(t, entries[0].Timestamp)
	assert.NotEmpty(t, entries[0].Caller)
}

func TestStructuredLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFunc   func(l *StructuredLogger)
		shouldLog bool
	}{
		{"debug logs debug", "debug", func(l *StructuredLogger) { l.Debug("x") }, true},
		{"info skips debug", "info", func(l *StructuredLogger) { l.Debug("x") }, false},
		{"warn skips info", "warn", func(l *StructuredLogger) { l.Info("x") }, false},
		{"error logs error", "error", func(l *StructuredLogger) { l.Error("x") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewStructuredLoggerWithWriter(&buf, "svc", "v", tt.level)
			tt.logFunc(logger)
			assert.Equal(t, tt.shouldLog, buf.Len() > 0)
		})
	}
}

func TestStructuredLoggerPrintfAndKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLoggerWithWriter(&buf, "svc", "v", "debug")

	logger.Info("Leela wants %s; playing %s", "e2e4", "d2d4", "vetoed", true, "error", errors.New("boom"))

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Leela wants e2e4; playing d2d4", entries[0].Message)
	assert.Equal(t, true, entries[0].Fields["vetoed"])
	assert.Equal(t, "boom", entries[0].Fields["error"])
}

func TestStructuredLoggerOddArgsGoToExtra(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLoggerWithWriter(&buf, "svc", "v", "info")

	logger.Warn("unpaired", "engine", "SF", "dangling")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "SF", entries[0].Fields["engine"])
	assert.Equal(t, "dangling", entries[0].Fields["extra"])
}

func TestStructuredLoggerContextAndFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewStructuredLoggerWithWriter(&buf, "svc", "v", "info")

	ctx := ContextWithGameID(context.Background(), "abcd1234")
	ctx = ContextWithTurnID(ctx, "turn_1")
	logger := base.WithContext(ctx).WithField("engine", "LZ")

	logger.Info("searching")
	base.Info("unchanged")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "abcd1234", entries[0].GameID)
	assert.Equal(t, "turn_1", entries[0].TurnID)
	assert.Equal(t, "LZ", entries[0].Fields["engine"])

	assert.Empty(t, entries[1].GameID)
	assert.Nil(t, entries[1].Fields)
}

func TestCountVerbsSkipsEscapedPercent(t *testing.T) {
	assert.Equal(t, 0, countVerbs("100%% sure"))
	assert.Equal(t, 2, countVerbs("%s vs %d"))
	assert.Equal(t, 0, countVerbs("trailing %"))
}
