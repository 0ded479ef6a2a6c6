package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/theme"
)

func testLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.DiscardHandler), theme.Default())
}

type payload struct {
	Value string `json:"value"`
}

func newTestStore(t *testing.T, debounce time.Duration) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), debounce, testLogger())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t, time.Hour)

	var into payload
	found, err := s.Load("nothing", &into)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScheduleFlushRoundTrip(t *testing.T) {
	s := newTestStore(t, time.Hour)

	s.Schedule("state", func() any { return &payload{Value: "first"} })
	s.Schedule("state", func() any { return &payload{Value: "second"} })
	s.Flush()

	var into payload
	found, err := s.Load("state", &into)
	require.NoError(t, err)
	assert.True(t, found)
	// the later producer replaces the queued one
	assert.Equal(t, "second", into.Value)
}

func TestDebounceFires(t *testing.T) {
	s := newTestStore(t, 20*time.Millisecond)

	s.Schedule("state", func() any { return &payload{Value: "debounced"} })

	require.Eventually(t, func() bool {
		var into payload
		found, err := s.Load("state", &into)
		return err == nil && found && into.Value == "debounced"
	}, time.Second, 10*time.Millisecond)
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, time.Hour, testLogger())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0600))

	var into payload
	_, err = s.Load("broken", &into)
	assert.Error(t, err)
}

func TestCloseFlushesAndRejects(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, time.Hour, testLogger())
	require.NoError(t, err)

	s.Schedule("state", func() any { return &payload{Value: "final"} })
	s.Close()

	var into payload
	found, err := s.Load("state", &into)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "final", into.Value)

	s.Schedule("state", func() any { return &payload{Value: "after close"} })
	s.Flush()

	found, err = s.Load("state", &into)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "final", into.Value)
}
