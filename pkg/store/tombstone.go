package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Tombstone records a deleted node (root or reply) whose attachment blobs
// may still need provider-side cleanup. Attachment deletion is best-effort
// at mutation time; the retention runner retries PendingRefs and purges the
// tombstone once nothing is left.
type Tombstone struct {
	NodeID      string   `json:"node_id"`
	Topic       string   `json:"topic,omitempty"`
	DeletedTS   int64    `json:"deleted_ts"`
	PendingRefs []string `json:"pending_refs,omitempty"`
}

func tombKey(nodeID string) []byte {
	return []byte("tomb:node:" + nodeID)
}

// ListTombstones returns every recorded tombstone.
func ListTombstones() ([]Tombstone, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("tomb:node:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []Tombstone
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var tb Tombstone
		if err := json.Unmarshal(iter.Value(), &tb); err != nil {
			continue
		}
		out = append(out, tb)
	}
	return out, iter.Error()
}

// SaveTombstone overwrites a tombstone record, typically to shrink its
// pending ref list after a successful cleanup retry.
func SaveTombstone(tb Tombstone) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, err := json.Marshal(tb)
	if err != nil {
		return err
	}
	return db.Set(tombKey(tb.NodeID), b, pebble.Sync)
}

// PurgeTombstone removes a tombstone record entirely.
func PurgeTombstone(nodeID string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete(tombKey(nodeID), pebble.Sync)
}
