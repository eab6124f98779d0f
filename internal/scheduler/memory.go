package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryScheduler is the single-process due index.
type MemoryScheduler struct {
	mu  sync.Mutex
	due map[string]time.Time
}

var _ Scheduler = (*MemoryScheduler)(nil)

func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{due: make(map[string]time.Time)}
}

func (s *MemoryScheduler) Schedule(_ context.Context, postID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.due[postID] = at
	return nil
}

func (s *MemoryScheduler) Cancel(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.due, postID)
	return nil
}

func (s *MemoryScheduler) Due(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []string
	for id, at := range s.due {
		if !at.After(now) {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		a, b := s.due[ready[i]], s.due[ready[j]]
		if a.Equal(b) {
			return ready[i] < ready[j]
		}
		return a.Before(b)
	})
	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}
	for _, id := range ready {
		delete(s.due, id)
	}
	return ready, nil
}

// Pending reports how many posts are waiting.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.due)
}
