package common

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecorder_RecordsAndForwards(t *testing.T) {
	var buf bytes.Buffer
	next := &AppLogger{level: LevelDebug, output: &buf, logger: log.New(&buf, "", 0)}

	rec := NewLogRecorder(next)
	rec.Info("connecting to %s", "127.0.0.1")
	rec.Warn("multiple launchers")
	rec.Error("failed: %v", ErrLoginTimeout)

	entries := rec.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, LogEntry{Level: LevelInfo, Message: "connecting to 127.0.0.1"}, entries[0])
	assert.Equal(t, LevelWarn, entries[1].Level)
	assert.Equal(t, "failed: "+ErrLoginTimeout.Error(), entries[2].Message)

	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	rec.Reset()
	assert.Empty(t, rec.Entries())
}

func TestLogRecorder_NilNext(t *testing.T) {
	rec := NewLogRecorder(nil)
	rec.Debug("quiet")
	assert.Len(t, rec.Entries(), 1)
}
