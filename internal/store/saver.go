package store

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the coalescing window for routine persistence.
const DefaultDebounce = 200 * time.Millisecond

// Saver is a write-coalescing queue for one document. Schedule delays the
// write by the debounce window and collapses bursts into a single save;
// Flush writes immediately and is the path session teardown must use.
// Writes are last-writer-wins: the marshal callback always captures the
// current in-memory state, so a superseded in-flight write is harmless.
type Saver struct {
	store   DocStore
	key     string
	delay   time.Duration
	marshal func() ([]byte, error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewSaver creates a debounced saver for the document under key. The marshal
// callback is invoked at write time to serialize current state.
func NewSaver(st DocStore, key string, delay time.Duration, marshal func() ([]byte, error)) *Saver {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Saver{store: st, key: key, delay: delay, marshal: marshal}
}

// Schedule queues a write after the debounce window, resetting any pending
// timer so rapid mutations coalesce into one save.
func (s *Saver) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if err := s.write(); err != nil {
			// Routine persistence failure is non-fatal: the next scheduled
			// write retries with the latest in-memory state.
			slog.Warn("debounced save failed", "key", s.key, "error", err)
		}
	})
}

// Flush cancels any pending debounced write and persists synchronously.
// Errors propagate so callers (logout, shutdown) can surface them.
func (s *Saver) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.write()
}

func (s *Saver) write() error {
	body, err := s.marshal()
	if err != nil {
		return err
	}
	return s.store.Save(s.key, body)
}
