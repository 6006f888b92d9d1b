package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoggerLevels tests that each helper maps onto the matching zerolog level
func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf)).With("ledger")

	l.Info("weekly pnl %.2f", -12.5)
	l.LogWarning("veto", "refresh failed: %s", "timeout")
	l.LogError("flatten", errors.New("venue down"))
	l.Trade("BUY %d %s", 7, "AAPL")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	levels := make([]string, 0, len(lines))
	for _, line := range lines {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "ledger", entry["component"])
		levels = append(levels, entry["level"].(string))
	}
	assert.Equal(t, []string{"info", "warn", "error", "info"}, levels)
	assert.Contains(t, lines[0], "weekly pnl -12.50")
	assert.Contains(t, lines[3], `"kind":"trade"`)
}

// TestNewLoggerWritesFile tests file creation and that child loggers cannot close the file
func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger("session", Options{Dir: dir})
	require.NoError(t, err)

	child := l.With("execution")
	child.Info("submitted")
	assert.NoError(t, child.Close())

	path := l.GetLogPath()
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "submitted")
	assert.Contains(t, string(data), "trading session ended")
}
