// Package blob abstracts the object-storage collaborator that holds
// attachment payloads. Uploads that fail abort the enclosing mutation;
// deletes are best-effort and the caller logs-and-continues.
package blob

import (
	"context"
	"io"
)

// PutResult describes a stored object.
type PutResult struct {
	URL        string
	StorageRef string
}

// Provider is the storage collaborator interface. StorageRef is the
// provider-side handle used for deletion; URL is the public location.
type Provider interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (PutResult, error)
	Delete(ctx context.Context, storageRef string) error
}
