package models

// Thread is the storage and concurrency aggregate: one root node plus its
// entire reply tree, grouped under a topic. Topic lives only here; replies
// never carry it.
type Thread struct {
	Topic string `json:"topic"`
	Root  Node   `json:"root"`
}

// ID returns the aggregate id, which is the root node's id.
func (t *Thread) ID() string {
	return t.Root.ID
}
