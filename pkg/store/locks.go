package store

import (
	"fmt"
	"sync"

	"whisperboard/pkg/models"
)

// threadLocks serializes read-modify-write cycles per thread aggregate.
// The aggregate is the unit of mutual exclusion; mutations against
// different threads proceed in parallel.
var threadLocks = struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}{m: make(map[string]*sync.Mutex)}

func lockFor(threadID string) *sync.Mutex {
	threadLocks.mu.Lock()
	defer threadLocks.mu.Unlock()
	if l, ok := threadLocks.m[threadID]; ok {
		return l
	}
	l := &sync.Mutex{}
	threadLocks.m[threadID] = l
	return l
}

func releaseLock(threadID string) {
	threadLocks.mu.Lock()
	defer threadLocks.mu.Unlock()
	delete(threadLocks.m, threadID)
}

// MutateThread loads the aggregate, applies fn, and writes the result back,
// holding the per-thread lock for the whole cycle so concurrent mutations
// of the same thread never interleave. fn returning an error aborts the
// write and the error is passed through unchanged.
func MutateThread(threadID string, fn func(*models.Thread) error) (*models.Thread, error) {
	l := lockFor(threadID)
	l.Lock()
	defer l.Unlock()

	t, err := GetThread(threadID)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := SaveThread(t); err != nil {
		return nil, fmt.Errorf("failed to persist thread %s: %w", threadID, err)
	}
	return t, nil
}

// RemoveThreadChecked loads the aggregate under its per-thread lock, runs
// check against the live state, and deletes the aggregate before releasing
// the lock. No mutation can commit between the check and the delete, so
// whatever check observed is exactly what was destroyed. Returns the
// destroyed aggregate.
func RemoveThreadChecked(threadID string, check func(*models.Thread) error) (*models.Thread, error) {
	l := lockFor(threadID)
	l.Lock()
	t, err := GetThread(threadID)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	if err := check(t); err != nil {
		l.Unlock()
		return nil, err
	}
	if err := DeleteThread(t, nil); err != nil {
		l.Unlock()
		return nil, err
	}
	l.Unlock()
	releaseLock(threadID)
	return t, nil
}
