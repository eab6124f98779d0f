package service

import "sync"

// postLocks hands out one mutex per post id. Entries are reference counted and
// dropped when the last holder unlocks, so the map only holds posts in flight.
type postLocks struct {
	mu    sync.Mutex
	locks map[string]*postLock
}

type postLock struct {
	mu   sync.Mutex
	refs int
}

func (l *postLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*postLock)
	}
	pl, ok := l.locks[id]
	if !ok {
		pl = &postLock{}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *postLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
