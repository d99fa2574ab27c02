package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"whisperboard/pkg/blob"
	"whisperboard/pkg/logger"
	"whisperboard/pkg/models"
	"whisperboard/pkg/store"
	"whisperboard/pkg/tree"
)

// recorder captures published events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Publish(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last(t *testing.T) models.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no events published")
	}
	return r.events[len(r.events)-1]
}

func setup(t *testing.T) (*Service, *recorder, *blob.MemoryProvider) {
	t.Helper()
	logger.Init("error")
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	rec := &recorder{}
	blobs := blob.NewMemory()
	return New(blobs, rec), rec, blobs
}

func TestCreateRootPublishesNewMessage(t *testing.T) {
	svc, rec, _ := setup(t)
	ctx := context.Background()

	th, err := svc.CreateRoot(ctx, "life", "alice", "T1", nil, "tok-1")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}
	if th.Root.ClientToken != "tok-1" {
		t.Fatalf("idempotency token not echoed: %+v", th.Root)
	}
	ev := rec.last(t)
	if ev.Kind != models.EventNewMessage || ev.Topic != "life" || ev.Thread == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCreateRootRejectsEmptyContent(t *testing.T) {
	svc, _, _ := setup(t)
	if _, err := svc.CreateRoot(context.Background(), "life", "alice", "   ", nil, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.CreateRoot(context.Background(), "life", "", "hi", nil, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestCreateReplyAtDepth(t *testing.T) {
	svc, rec, _ := setup(t)
	ctx := context.Background()
	th, _ := svc.CreateRoot(ctx, "life", "alice", "root", nil, "")

	// chain replies five levels down
	parent := ""
	var last *models.Thread
	for i := 0; i < 5; i++ {
		var err error
		last, err = svc.CreateReply(ctx, th.ID(), parent, "bob", "reply", nil, "")
		if err != nil {
			t.Fatalf("reply at depth %d failed: %v", i, err)
		}
		// descend to the newly added node
		cur := &last.Root
		for len(cur.Children) > 0 {
			cur = &cur.Children[len(cur.Children)-1]
		}
		parent = cur.ID
	}
	if got := tree.Count(&last.Root); got != 6 {
		t.Fatalf("expected 6 nodes, got %d", got)
	}
	ev := rec.last(t)
	if ev.Kind != models.EventUpdateMessage || ev.Thread == nil {
		t.Fatalf("reply should broadcast the full aggregate, got %+v", ev)
	}
	if _, err := svc.CreateReply(ctx, th.ID(), "missing-parent", "bob", "x", nil, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for bad parent, got %v", err)
	}
}

func TestToggleReactionInvolution(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	th, _ := svc.CreateRoot(ctx, "life", "alice", "root", nil, "")

	after1, err := svc.ToggleReaction(ctx, th.ID(), th.ID(), "carol", ReactionLike)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !after1.Root.Liked("carol") {
		t.Fatal("first toggle should add carol to liked set")
	}
	after2, err := svc.ToggleReaction(ctx, th.ID(), th.ID(), "carol", ReactionLike)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if after2.Root.Liked("carol") {
		t.Fatal("second toggle should remove carol again")
	}
}

func TestToggleReactionMutualExclusion(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	th, _ := svc.CreateRoot(ctx, "life", "alice", "root", nil, "")

	if _, err := svc.ToggleReaction(ctx, th.ID(), th.ID(), "carol", ReactionLike); err != nil {
		t.Fatalf("like failed: %v", err)
	}
	after, err := svc.ToggleReaction(ctx, th.ID(), th.ID(), "carol", ReactionDislike)
	if err != nil {
		t.Fatalf("dislike failed: %v", err)
	}
	if after.Root.Liked("carol") {
		t.Fatal("dislike must remove carol from the liked set")
	}
	if !after.Root.Disliked("carol") {
		t.Fatal("carol missing from disliked set")
	}
}

func TestEditTextAuthorOnly(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	th, _ := svc.CreateRoot(ctx, "life", "alice", "original", nil, "")

	if _, err := svc.EditText(ctx, th.ID(), th.ID(), "mallory", "hacked"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	// the failed edit must leave the stored tree untouched
	got, _ := svc.GetThread(ctx, th.ID())
	if got.Root.Text != "original" {
		t.Fatalf("unauthorized edit mutated state: %q", got.Root.Text)
	}

	after, err := svc.EditText(ctx, th.ID(), th.ID(), "alice", "updated")
	if err != nil {
		t.Fatalf("author edit failed: %v", err)
	}
	if after.Root.Text != "updated" {
		t.Fatalf("edit not applied: %q", after.Root.Text)
	}
}

// The scenario: thread T1 under "Life" with replies R1 (carrying a nested
// child R2 with an attachment); deleting R1 cascades over both and reports
// the attachment union, and the broadcast names the surviving thread.
func TestDeleteReplyCascades(t *testing.T) {
	svc, rec, blobs := setup(t)
	ctx := context.Background()

	th, _ := svc.CreateRoot(ctx, "life", "alice", "T1", nil, "")
	t1, err := svc.CreateReply(ctx, th.ID(), "", "bob", "R1", nil, "")
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}
	r1 := t1.Root.Children[0].ID

	put, err := blobs.Put(ctx, "pic", strings.NewReader("payload"), 7, "image/png")
	if err != nil {
		t.Fatalf("blob put failed: %v", err)
	}
	att := models.Attachment{ID: "a1", URL: put.URL, StorageRef: put.StorageRef}
	if _, err := svc.CreateReply(ctx, th.ID(), r1, "carol", "R2", []models.Attachment{att}, ""); err != nil {
		t.Fatalf("nested reply failed: %v", err)
	}
	if _, err := svc.ToggleReaction(ctx, th.ID(), r1, "dave", ReactionLike); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	res, err := svc.DeleteNode(ctx, th.ID(), r1, "bob")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if res.RootDeleted {
		t.Fatal("reply deletion must not destroy the thread")
	}
	if res.Removed != 2 {
		t.Fatalf("cascade should remove R1 and R2, got %d", res.Removed)
	}
	if len(res.Attachments) != 1 || res.Attachments[0].StorageRef != "pic" {
		t.Fatalf("attachment union wrong: %+v", res.Attachments)
	}
	if blobs.Has("pic") {
		t.Fatal("attachment blob should have been deleted")
	}

	ev := rec.last(t)
	if ev.Kind != models.EventDeleteMessage || ev.Delete == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Delete.ID != r1 || ev.Delete.ParentThread != th.ID() {
		t.Fatalf("delete payload wrong: %+v", ev.Delete)
	}

	got, _ := svc.GetThread(ctx, th.ID())
	if tree.Count(&got.Root) != 1 {
		t.Fatalf("expected only the root to remain, got %d nodes", tree.Count(&got.Root))
	}
}

func TestDeleteRootDestroysThread(t *testing.T) {
	svc, rec, _ := setup(t)
	ctx := context.Background()
	th, _ := svc.CreateRoot(ctx, "life", "alice", "T1", nil, "")
	if _, err := svc.CreateReply(ctx, th.ID(), "", "bob", "R1", nil, ""); err != nil {
		t.Fatalf("reply failed: %v", err)
	}

	if _, err := svc.DeleteNode(ctx, th.ID(), th.ID(), "mallory"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	res, err := svc.DeleteNode(ctx, th.ID(), th.ID(), "alice")
	if err != nil {
		t.Fatalf("root delete failed: %v", err)
	}
	if !res.RootDeleted || res.Removed != 2 {
		t.Fatalf("unexpected deletion result: %+v", res)
	}
	if _, err := svc.GetThread(ctx, th.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("thread should be gone, got %v", err)
	}
	ev := rec.last(t)
	if ev.Kind != models.EventDeleteMessage || ev.Delete.ParentThread != "" {
		t.Fatalf("root delete event must carry an empty parent thread: %+v", ev)
	}
}

func TestDeleteRootRecordsTombstoneOnBlobFailure(t *testing.T) {
	svc, _, blobs := setup(t)
	ctx := context.Background()
	blobs.FailDeletes = true

	att := models.Attachment{ID: "a1", URL: "mem://pic", StorageRef: "pic"}
	th, err := svc.CreateRoot(ctx, "life", "alice", "T1", []models.Attachment{att}, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.DeleteNode(ctx, th.ID(), th.ID(), "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	tombs, err := store.ListTombstones()
	if err != nil {
		t.Fatalf("tombstone list failed: %v", err)
	}
	if len(tombs) != 1 || len(tombs[0].PendingRefs) != 1 || tombs[0].PendingRefs[0] != "pic" {
		t.Fatalf("expected root tombstone with pending ref, got %+v", tombs)
	}
}

// A reply committing while the root is being destroyed must either be
// collected by the cascade or rejected; its attachment blob can never be
// destroyed uncollected.
func TestDeleteRootRacingReplyLeaksNoBlob(t *testing.T) {
	svc, _, blobs := setup(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		th, err := svc.CreateRoot(ctx, "life", "alice", "T1", nil, "")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		ref := fmt.Sprintf("race-%d", i)
		if _, err := blobs.Put(ctx, ref, strings.NewReader("x"), 1, ""); err != nil {
			t.Fatalf("blob put failed: %v", err)
		}
		att := models.Attachment{ID: "a-" + ref, URL: "mem://" + ref, StorageRef: ref}

		var wg sync.WaitGroup
		var replyErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, replyErr = svc.CreateReply(ctx, th.ID(), "", "bob", "R", []models.Attachment{att}, "")
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.DeleteNode(ctx, th.ID(), th.ID(), "alice")
		}()
		wg.Wait()

		if replyErr != nil {
			// the reply lost the race and never joined the thread; its
			// blob still belongs to the caller
			_ = blobs.Delete(ctx, ref)
			continue
		}
		if blobs.Has(ref) {
			t.Fatalf("iteration %d: committed reply's blob %s leaked through the cascade", i, ref)
		}
	}
}

func TestDeleteRecordsTombstoneOnBlobFailure(t *testing.T) {
	svc, _, blobs := setup(t)
	ctx := context.Background()
	blobs.FailDeletes = true

	th, _ := svc.CreateRoot(ctx, "life", "alice", "T1", nil, "")
	att := models.Attachment{ID: "a1", URL: "mem://pic", StorageRef: "pic"}
	t1, err := svc.CreateReply(ctx, th.ID(), "", "bob", "R1", []models.Attachment{att}, "")
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}
	r1 := t1.Root.Children[0].ID

	// deletion still succeeds even though cleanup fails
	if _, err := svc.DeleteNode(ctx, th.ID(), r1, "bob"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	tombs, err := store.ListTombstones()
	if err != nil {
		t.Fatalf("tombstone list failed: %v", err)
	}
	if len(tombs) != 1 || len(tombs[0].PendingRefs) != 1 || tombs[0].PendingRefs[0] != "pic" {
		t.Fatalf("expected tombstone with pending ref, got %+v", tombs)
	}
}
