package orchestrator

import "sync"

// lockRegistry hands out one mutex per story so at most one
// orchestration call advances a given story at a time. Entries are
// never removed; the registry lives as long as the engine and stories
// number in the hundreds, not millions.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*sync.Mutex)}
}

func (r *lockRegistry) get(storyID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[storyID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[storyID] = l
	}
	return l
}
