package models

// Event kinds broadcast to topic subscribers after each committed mutation.
const (
	EventNewMessage    = "new-message"
	EventUpdateMessage = "update-message"
	EventDeleteMessage = "delete-message"
)

// Event is the wire shape pushed to subscribers of a topic channel.
//
// new-message carries the freshly created Thread (root posts only; replies
// travel as update-message). update-message carries the whole updated
// aggregate rather than a diff, so receivers always reconcile against
// authoritative full state. delete-message carries Delete.
type Event struct {
	Kind   string  `json:"kind"`
	Topic  string  `json:"topic"`
	Thread *Thread `json:"thread,omitempty"`
	Delete *Delete `json:"delete,omitempty"`
}

// Delete identifies a removed node. ParentThread is empty when the root
// itself was deleted, in which case the whole thread is gone.
type Delete struct {
	ID           string `json:"id"`
	ParentThread string `json:"parent_thread,omitempty"`
}
