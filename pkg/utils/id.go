package utils

import "github.com/google/uuid"

// GenID returns a fresh node id. Node ids are unique within a thread's
// entire tree; UUIDs make them unique globally, which keeps client-side
// reconciliation unambiguous across threads.
func GenID() string {
	return uuid.NewString()
}

// GenThreadID returns a prefixed id for a new thread aggregate.
func GenThreadID() string {
	return "thread-" + uuid.NewString()
}

// GenAttachmentID returns an id for an uploaded attachment.
func GenAttachmentID() string {
	return "att-" + uuid.NewString()
}
