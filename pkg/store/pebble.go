package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"whisperboard/pkg/logger"
	"whisperboard/pkg/models"

	"github.com/cockroachdb/pebble"
)

var (
	db     *pebble.DB
	dbPath string
)

// seq reduces key collisions when multiple threads are created in the same
// nanosecond.
var seq uint64

// ErrNotFound is returned when a thread id does not resolve.
var ErrNotFound = errors.New("thread not found")

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Log.Info("opening_pebble_db", zap.String("path", path))
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return err
	}
	dbPath = path
	logger.Log.Info("pebble_opened", zap.String("path", path))
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Log.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func metaKey(threadID string) []byte {
	return []byte("thread:" + threadID + ":meta")
}

// topicIndexKey orders threads within a topic by creation time. The value
// under the key is the thread id.
func topicIndexKey(topic string, createdTS int64, s uint64, threadID string) []byte {
	return []byte(fmt.Sprintf("topic:%s:idx:%020d-%06d:%s", topic, createdTS, s, threadID))
}

// CreateThread persists a brand-new thread aggregate and its topic index
// entry. The caller must have assigned the root id and timestamps.
func CreateThread(t *models.Thread) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}
	s := atomic.AddUint64(&seq, 1)
	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Set(metaKey(t.ID()), data, nil); err != nil {
		return err
	}
	if err := batch.Set(topicIndexKey(t.Topic, t.Root.CreatedTS, s, t.ID()), []byte(t.ID()), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Log.Error("create_thread_failed", zap.String("thread", t.ID()), zap.Error(err))
		return err
	}
	observeOp("create_thread")
	logger.Log.Info("thread_created", zap.String("thread", t.ID()), zap.String("topic", t.Topic))
	return nil
}

// SaveThread overwrites the stored aggregate for an existing thread.
func SaveThread(t *models.Thread) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}
	if err := db.Set(metaKey(t.ID()), data, pebble.Sync); err != nil {
		logger.Log.Error("save_thread_failed", zap.String("thread", t.ID()), zap.Error(err))
		return err
	}
	observeOp("save_thread")
	logger.Log.Debug("thread_saved", zap.String("thread", t.ID()))
	return nil
}

// GetThread returns the stored aggregate for a given thread ID.
func GetThread(threadID string) (*models.Thread, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(metaKey(threadID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	var t models.Thread
	if err := json.Unmarshal(v, &t); err != nil {
		return nil, fmt.Errorf("invalid stored thread %s: %w", threadID, err)
	}
	observeOp("get_thread")
	return &t, nil
}

// DeleteThread removes the aggregate, its topic index entry and writes a
// tombstone recording attachment refs that still need provider-side
// cleanup. The tombstone is consumed by the retention runner.
func DeleteThread(t *models.Thread, pendingRefs []string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(metaKey(t.ID()), nil); err != nil {
		return err
	}
	// index keys embed a sequence we no longer know; scan the topic prefix
	prefix := []byte("topic:" + t.Topic + ":idx:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if string(iter.Value()) == t.ID() {
			k := append([]byte(nil), iter.Key()...)
			if err := batch.Delete(k, nil); err != nil {
				_ = iter.Close()
				return err
			}
			break
		}
	}
	if err := iter.Close(); err != nil {
		return err
	}
	tomb := Tombstone{
		NodeID:      t.ID(),
		Topic:       t.Topic,
		DeletedTS:   time.Now().UTC().UnixNano(),
		PendingRefs: pendingRefs,
	}
	tb, _ := json.Marshal(tomb)
	if err := batch.Set(tombKey(t.ID()), tb, nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Log.Error("delete_thread_failed", zap.String("thread", t.ID()), zap.Error(err))
		return err
	}
	observeOp("delete_thread")
	logger.Log.Info("thread_deleted", zap.String("thread", t.ID()), zap.String("topic", t.Topic))
	return nil
}

// ListTopicThreads returns all aggregates for a topic in creation order.
// An unknown topic yields an empty slice, not an error.
func ListTopicThreads(topic string) ([]models.Thread, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("topic:" + topic + ":idx:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := []models.Thread{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		id := string(iter.Value())
		t, err := GetThread(id)
		if err != nil {
			// index entry without a meta record is stale; skip it
			logger.Log.Warn("topic_index_stale", zap.String("thread", id), zap.Error(err))
			continue
		}
		out = append(out, *t)
	}
	observeOp("list_topic")
	return out, iter.Error()
}

// TopicCounts returns a mapping of topic to live thread count.
func TopicCounts() (map[string]int, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("topic:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := map[string]int{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		rest := k[len(prefix):]
		i := bytes.Index(rest, []byte(":idx:"))
		if i < 0 {
			continue
		}
		out[string(rest[:i])]++
	}
	observeOp("topic_counts")
	return out, iter.Error()
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// If prefix is empty it returns all keys in the DB. Used by the inspect
// tool and tests.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	if prefix == "" {
		for iter.First(); iter.Valid(); iter.Next() {
			out = append(out, string(append([]byte(nil), iter.Key()...)))
		}
		return out, iter.Error()
	}
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	return out, iter.Error()
}
