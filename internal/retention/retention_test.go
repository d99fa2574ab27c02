package retention

import (
	"context"
	"strings"
	"testing"

	"whisperboard/pkg/blob"
	"whisperboard/pkg/logger"
	"whisperboard/pkg/store"
)

func setup(t *testing.T) *blob.MemoryProvider {
	t.Helper()
	logger.Init("error")
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return blob.NewMemory()
}

func seedBlob(t *testing.T, blobs *blob.MemoryProvider, ref string) {
	t.Helper()
	if _, err := blobs.Put(context.Background(), ref, strings.NewReader("x"), 1, ""); err != nil {
		t.Fatalf("failed to seed blob %s: %v", ref, err)
	}
}

func TestRunOncePurgesCleanTombstones(t *testing.T) {
	blobs := setup(t)
	if err := store.SaveTombstone(store.Tombstone{NodeID: "n1", Topic: "life"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := RunOnce(context.Background(), false, blobs); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	tombs, _ := store.ListTombstones()
	if len(tombs) != 0 {
		t.Fatalf("tombstone with no pending refs should be purged, got %+v", tombs)
	}
}

func TestRunOnceRetriesPendingRefs(t *testing.T) {
	blobs := setup(t)
	seedBlob(t, blobs, "a1")
	seedBlob(t, blobs, "a2")
	if err := store.SaveTombstone(store.Tombstone{NodeID: "n1", PendingRefs: []string{"a1", "a2"}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := RunOnce(context.Background(), false, blobs); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if blobs.Has("a1") || blobs.Has("a2") {
		t.Fatal("pending refs should have been deleted from the provider")
	}
	tombs, _ := store.ListTombstones()
	if len(tombs) != 0 {
		t.Fatalf("fully cleaned tombstone should be purged, got %+v", tombs)
	}
}

func TestRunOnceKeepsFailedRefs(t *testing.T) {
	blobs := setup(t)
	blobs.FailDeletes = true
	if err := store.SaveTombstone(store.Tombstone{NodeID: "n1", PendingRefs: []string{"a1"}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := RunOnce(context.Background(), false, blobs); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	tombs, _ := store.ListTombstones()
	if len(tombs) != 1 || len(tombs[0].PendingRefs) != 1 {
		t.Fatalf("failed delete should keep the tombstone intact, got %+v", tombs)
	}
}

func TestRunOnceDryRunTouchesNothing(t *testing.T) {
	blobs := setup(t)
	seedBlob(t, blobs, "a1")
	if err := store.SaveTombstone(store.Tombstone{NodeID: "n1", PendingRefs: []string{"a1"}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := RunOnce(context.Background(), true, blobs); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !blobs.Has("a1") {
		t.Fatal("dry run must not delete blobs")
	}
	tombs, _ := store.ListTombstones()
	if len(tombs) != 1 {
		t.Fatalf("dry run must not purge tombstones, got %+v", tombs)
	}
}
