package blob

import (
	"context"
	"errors"
	"io"
	"sync"
)

// MemoryProvider is an in-process Provider used by tests and local runs
// without an object store.
type MemoryProvider struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailPuts forces Put to error, for exercising upload-failure paths.
	FailPuts bool
	// FailDeletes forces Delete to error, for exercising best-effort
	// cleanup paths.
	FailDeletes bool
}

// NewMemory returns an empty in-memory provider.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{objects: make(map[string][]byte)}
}

// Put stores the payload under path.
func (p *MemoryProvider) Put(_ context.Context, path string, r io.Reader, _ int64, _ string) (PutResult, error) {
	if p.FailPuts {
		return PutResult{}, errors.New("memory provider: put disabled")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return PutResult{}, err
	}
	p.mu.Lock()
	p.objects[path] = b
	p.mu.Unlock()
	return PutResult{URL: "mem://" + path, StorageRef: path}, nil
}

// Delete removes the object; deleting a missing object is not an error.
func (p *MemoryProvider) Delete(_ context.Context, storageRef string) error {
	if p.FailDeletes {
		return errors.New("memory provider: delete disabled")
	}
	p.mu.Lock()
	delete(p.objects, storageRef)
	p.mu.Unlock()
	return nil
}

// Len reports the number of stored objects.
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

// Has reports whether an object exists under storageRef.
func (p *MemoryProvider) Has(storageRef string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.objects[storageRef]
	return ok
}
