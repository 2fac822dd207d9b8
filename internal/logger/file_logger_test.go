package logger

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
}

// TestLogLevels tests the line format of each level
func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.now = fixedClock

	l.Info("placed %s", "abc")
	l.Warning("slow")
	l.LogError("submit", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[2024-03-01 12:30:00] [INFO] placed abc", lines[0])
	assert.Equal(t, "[2024-03-01 12:30:00] [WARN] slow", lines[1])
	assert.Equal(t, "[2024-03-01 12:30:00] [ERROR] submit: boom", lines[2])
}

// TestFileLogger tests session header, footer and the file path
func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(dir, "BTCUSDT")
	require.NoError(t, err)

	path := l.GetLogPath()
	assert.Contains(t, path, "BTCUSDT_")

	l.LogOrderFill("id-1", "BTCUSDT", "buy", 0.5, 100)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "TRADING SESSION STARTED")
	assert.Contains(t, content, "ORDER FILLED")
	assert.Contains(t, content, "Value:    50.00")
	assert.Contains(t, content, "TRADING SESSION ENDED")
}

// TestDiscard tests that the discard logger accepts writes
func TestDiscard(t *testing.T) {
	l := Discard()
	l.Trade("ignored %d", 1)
	assert.Empty(t, l.GetLogPath())
	assert.NoError(t, l.Close())
}
