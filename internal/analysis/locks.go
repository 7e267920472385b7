package analysis

import (
	"sort"
	"sync"
)

// paperLocks holds one RWMutex per paper id, created on demand. Writers
// (ingest, delete) exclude readers (summarize, ask, compare) of the same
// paper; unrelated papers proceed concurrently. Entries are never removed:
// the map is bounded by the number of papers ever seen in the process and a
// mutex is a few words.
type paperLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newPaperLocks() *paperLocks {
	return &paperLocks{locks: make(map[string]*sync.RWMutex)}
}

func (l *paperLocks) get(paperID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[paperID]
	if !ok {
		lock = &sync.RWMutex{}
		l.locks[paperID] = lock
	}
	return lock
}

// Lock takes the paper's write lock and returns the release function.
func (l *paperLocks) Lock(paperID string) func() {
	lock := l.get(paperID)
	lock.Lock()
	return lock.Unlock
}

// RLock takes the paper's read lock and returns the release function.
func (l *paperLocks) RLock(paperID string) func() {
	lock := l.get(paperID)
	lock.RLock()
	return lock.RUnlock
}

// RLockAll takes the read locks of all given papers in sorted id order, so
// two comparisons sharing papers cannot deadlock. The release function
// unlocks in reverse order. Callers must not pass duplicate ids.
func (l *paperLocks) RLockAll(paperIDs []string) func() {
	ids := make([]string, len(paperIDs))
	copy(ids, paperIDs)
	sort.Strings(ids)

	acquired := make([]*sync.RWMutex, 0, len(ids))
	for _, id := range ids {
		lock := l.get(id)
		lock.RLock()
		acquired = append(acquired, lock)
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].RUnlock()
		}
	}
}
