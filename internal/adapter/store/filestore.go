// Package store persists registry state as pretty-printed JSON files under
// the data directory. Writes are debounced per file so a burst of mutations
// lands on disk once.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/pkg/format"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const fileMode = 0600

// FileStore implements ports.StateStore over a flat directory of
// <name>.json files.
type FileStore struct {
	logger   *logger.StyledLogger
	dir      string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]func() any
	timers  map[string]*time.Timer
	closed  bool
}

func NewFileStore(dir string, debounce time.Duration, styledLogger *logger.StyledLogger) (*FileStore, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileStore{
		logger:   styledLogger,
		dir:      dir,
		debounce: debounce,
		pending:  make(map[string]func() any),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Load reads <name>.json into the target. A missing file is not an error;
// the bool reports whether anything was found.
func (s *FileStore) Load(name string, into any) (bool, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// Schedule queues a write for the named file. The producer runs when the
// debounce fires, so callers hand over an immutable snapshot. Later calls
// for the same name replace the queued producer without rearming the timer.
func (s *FileStore) Schedule(name string, produce func() any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.pending[name] = produce
	if _, armed := s.timers[name]; armed {
		return
	}
	s.timers[name] = time.AfterFunc(s.debounce, func() {
		s.flushOne(name)
	})
}

// Flush writes every queued file immediately and keeps accepting schedules.
// Shutdown goes through Close instead.
func (s *FileStore) Flush() {
	s.mu.Lock()
	names := make([]string, 0, len(s.pending))
	for name := range s.pending {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		s.flushOne(name)
	}
}

// Close flushes outstanding writes and rejects further schedules.
func (s *FileStore) Close() {
	s.mu.Lock()
	s.closed = true
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	names := make([]string, 0, len(s.pending))
	for name := range s.pending {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		s.flushOne(name)
	}
}

func (s *FileStore) flushOne(name string) {
	s.mu.Lock()
	produce, ok := s.pending[name]
	delete(s.pending, name)
	if t, armed := s.timers[name]; armed {
		t.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	data, err := json.MarshalIndent(produce(), "", "  ")
	if err != nil {
		s.logger.Error("Failed to encode state file", "file", name, "error", err)
		return
	}
	if err := os.WriteFile(s.path(name), data, fileMode); err != nil {
		s.logger.Error("Failed to write state file", "file", name, "error", err)
		return
	}
	s.logger.Debug("Persisted state file", "file", name, "size", format.Bytes(uint64(len(data))))
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
