package sync

import "sync"

// pathLocker serializes reconciliation per key. Two devices pushing the same
// path concurrently must not both observe "no existing entry"; the lock makes
// the lookup-decide-write sequence atomic per (user, path).
type pathLocker struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocker() *pathLocker {
	return &pathLocker{
		locks: make(map[string]*pathLock),
	}
}

// Lock acquires the lock for key and returns its release func.
func (l *pathLocker) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &pathLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
