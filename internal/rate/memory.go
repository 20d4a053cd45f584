package rate

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps windows in process memory. Counts are lost on restart and
// are not shared between processes.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	hits    int
	now     func() time.Time
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// Incr implements [WindowStore].
func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.hits++
	if s.hits%sweepEvery == 0 {
		s.sweep(now)
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++

	return w.count, nil
}

// Len reports how many windows are tracked, expired ones included until the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryStore) sweep(now time.Time) {
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}
