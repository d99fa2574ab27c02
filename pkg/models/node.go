package models

// Attachment is a blob reference owned exclusively by one node. URL is the
// public location returned by the storage provider; StorageRef is the
// provider-side handle used for deletion.
type Attachment struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	StorageRef string `json:"storage_ref,omitempty"`
}

// Node status values used only by clients for optimistic rendering. They are
// never persisted; the server always stores committed state.
const (
	StatusCommitted = "committed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// Node is the uniform shape for a root whisper and every reply under it.
// Children nests the same shape recursively with no depth limit.
type Node struct {
	ID          string       `json:"id"`
	Author      string       `json:"author"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	LikedBy     []string     `json:"liked_by,omitempty"`
	DislikedBy  []string     `json:"disliked_by,omitempty"`
	Children    []Node       `json:"children,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts"`
	// ClientToken echoes the idempotency token supplied by the creating
	// client so its reconciler can match the broadcast against its own
	// optimistic placeholder. Transient: set on the node returned by the
	// create call and on the broadcast payload, not meaningful afterwards.
	ClientToken string `json:"client_token,omitempty"`
	// Status is client-side only (pending/failed/committed); the server
	// never writes it.
	Status string `json:"status,omitempty"`
}

// HasContent reports whether the node carries text or at least one
// attachment. Empty nodes must never be committed.
func (n *Node) HasContent() bool {
	return n.Text != "" || len(n.Attachments) > 0
}

// Liked reports whether the principal is in the node's liked set.
func (n *Node) Liked(principal string) bool {
	for _, p := range n.LikedBy {
		if p == principal {
			return true
		}
	}
	return false
}

// Disliked reports whether the principal is in the node's disliked set.
func (n *Node) Disliked(principal string) bool {
	for _, p := range n.DislikedBy {
		if p == principal {
			return true
		}
	}
	return false
}
