// Package board is the mutation service: the sole writer of persisted
// thread state. Every operation locates its target node inside the
// aggregate, enforces authorization and validation, persists the result
// under the per-thread lock, and then triggers the change notifier.
package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"whisperboard/pkg/blob"
	"whisperboard/pkg/logger"
	"whisperboard/pkg/models"
	"whisperboard/pkg/notify"
	"whisperboard/pkg/store"
	"whisperboard/pkg/tree"
	"whisperboard/pkg/utils"
	"whisperboard/pkg/validation"
)

// ReactionKind selects which reaction set a toggle targets.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// DeletionResult reports what a delete-cascade removed.
type DeletionResult struct {
	// RootDeleted is true when the whole thread was destroyed.
	RootDeleted bool
	// Removed counts nodes excised, including the target itself.
	Removed int
	// Attachments is the union of attachment refs across the removed
	// subtree, handed back for external cleanup.
	Attachments []models.Attachment
	// Thread is the surviving aggregate after a reply deletion; nil when
	// the root was deleted.
	Thread *models.Thread
}

// Service exposes the topic-safe board operations. The notifier and blob
// provider are explicit dependencies wired at startup.
type Service struct {
	blobs    blob.Provider
	notifier notify.Broadcaster
}

// New returns a Service. notifier may not be nil; blobs may be nil when no
// attachment storage is configured.
func New(blobs blob.Provider, notifier notify.Broadcaster) *Service {
	return &Service{blobs: blobs, notifier: notifier}
}

// CreateRoot creates a new thread under a topic. token is the caller's
// idempotency token, echoed on the returned root and on the broadcast so
// the submitting client can match its optimistic placeholder.
func (s *Service) CreateRoot(ctx context.Context, topic, author, text string, attachments []models.Attachment, token string) (*models.Thread, error) {
	if author == "" {
		return nil, ErrUnauthenticated
	}
	if err := validation.ValidateTopic(topic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.ValidateContent(text, attachments); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	t := &models.Thread{
		Topic: topic,
		Root: models.Node{
			ID:          utils.GenThreadID(),
			Author:      author,
			Text:        text,
			Attachments: attachments,
			CreatedTS:   time.Now().UTC().UnixNano(),
			ClientToken: token,
		},
	}
	if err := store.CreateThread(t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	logger.Info("root_created", zap.String("thread", t.ID()), zap.String("topic", topic), zap.String("author", author))
	s.publish(models.Event{Kind: models.EventNewMessage, Topic: topic, Thread: t})
	return t, nil
}

// CreateReply appends a reply under parentID (or under the root when
// parentID is empty) at any nesting depth.
func (s *Service) CreateReply(ctx context.Context, threadID, parentID, author, text string, attachments []models.Attachment, token string) (*models.Thread, error) {
	if author == "" {
		return nil, ErrUnauthenticated
	}
	if err := validation.ValidateContent(text, attachments); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	reply := models.Node{
		ID:          utils.GenID(),
		Author:      author,
		Text:        text,
		Attachments: attachments,
		CreatedTS:   time.Now().UTC().UnixNano(),
		ClientToken: token,
	}
	t, err := store.MutateThread(threadID, func(t *models.Thread) error {
		if !tree.InsertChild(&t.Root, parentID, reply) {
			return fmt.Errorf("%w: parent %s", ErrNotFound, parentID)
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	logger.Info("reply_created", zap.String("thread", threadID), zap.String("node", reply.ID), zap.String("parent", parentID))
	s.publish(models.Event{Kind: models.EventUpdateMessage, Topic: t.Topic, Thread: t})
	return t, nil
}

// ToggleReaction flips the principal's membership in the chosen reaction
// set. Adding to one set removes the principal from the opposite set, so a
// principal never sits in both; toggling twice restores the original state.
func (s *Service) ToggleReaction(ctx context.Context, threadID, nodeID, principal string, kind ReactionKind) (*models.Thread, error) {
	if principal == "" {
		return nil, ErrUnauthenticated
	}
	if kind != ReactionLike && kind != ReactionDislike {
		return nil, fmt.Errorf("%w: unknown reaction kind %q", ErrValidation, kind)
	}

	t, err := store.MutateThread(threadID, func(t *models.Thread) error {
		ok := tree.Update(&t.Root, nodeID, func(n *models.Node) {
			toggle(n, principal, kind)
		})
		if !ok {
			return fmt.Errorf("%w: node %s", ErrNotFound, nodeID)
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	logger.Debug("reaction_toggled", zap.String("thread", threadID), zap.String("node", nodeID), zap.String("kind", string(kind)))
	s.publish(models.Event{Kind: models.EventUpdateMessage, Topic: t.Topic, Thread: t})
	return t, nil
}

func toggle(n *models.Node, principal string, kind ReactionKind) {
	target, opposite := &n.LikedBy, &n.DislikedBy
	if kind == ReactionDislike {
		target, opposite = &n.DislikedBy, &n.LikedBy
	}
	if idx := indexOf(*target, principal); idx >= 0 {
		*target = append((*target)[:idx], (*target)[idx+1:]...)
		return
	}
	*target = append(*target, principal)
	if idx := indexOf(*opposite, principal); idx >= 0 {
		*opposite = append((*opposite)[:idx], (*opposite)[idx+1:]...)
	}
}

func indexOf(set []string, v string) int {
	for i, s := range set {
		if s == v {
			return i
		}
	}
	return -1
}

// EditText replaces a node's text. Only the node's author may edit, and the
// result must still satisfy the content invariant.
func (s *Service) EditText(ctx context.Context, threadID, nodeID, author, newText string) (*models.Thread, error) {
	if author == "" {
		return nil, ErrUnauthenticated
	}

	t, err := store.MutateThread(threadID, func(t *models.Thread) error {
		n := tree.Find(&t.Root, nodeID)
		if n == nil {
			return fmt.Errorf("%w: node %s", ErrNotFound, nodeID)
		}
		if n.Author != author {
			return ErrUnauthorized
		}
		if err := validation.ValidateContent(newText, n.Attachments); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		n.Text = newText
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	logger.Info("node_edited", zap.String("thread", threadID), zap.String("node", nodeID))
	s.publish(models.Event{Kind: models.EventUpdateMessage, Topic: t.Topic, Thread: t})
	return t, nil
}

// DeleteNode removes the node and its entire subtree. Deleting the root
// destroys the whole thread. Attachment cleanup across the removed subtree
// is best-effort: failures are logged, recorded on a tombstone for the
// retention runner, and never fail the deletion itself.
func (s *Service) DeleteNode(ctx context.Context, threadID, nodeID, author string) (*DeletionResult, error) {
	if author == "" {
		return nil, ErrUnauthenticated
	}

	if nodeID == threadID {
		// authorization and attachment collection run under the thread
		// lock, so a reply committing concurrently is either collected
		// here or rejected with not-found, never silently destroyed
		var atts []models.Attachment
		var removed int
		t, err := store.RemoveThreadChecked(threadID, func(t *models.Thread) error {
			if t.Root.Author != author {
				return ErrUnauthorized
			}
			atts = tree.CollectAttachments(&t.Root)
			removed = tree.Count(&t.Root)
			return nil
		})
		if err != nil {
			return nil, mapStoreErr(err)
		}
		if failed := s.cleanupAttachments(ctx, atts); len(failed) > 0 {
			tomb := store.Tombstone{NodeID: threadID, Topic: t.Topic, DeletedTS: time.Now().UTC().UnixNano(), PendingRefs: failed}
			if err := store.SaveTombstone(tomb); err != nil {
				logger.Error("tombstone_save_failed", zap.String("node", threadID), zap.Error(err))
			}
		}
		logger.Info("thread_destroyed", zap.String("thread", threadID), zap.Int("nodes", removed))
		s.publish(models.Event{Kind: models.EventDeleteMessage, Topic: t.Topic, Delete: &models.Delete{ID: nodeID}})
		return &DeletionResult{RootDeleted: true, Removed: removed, Attachments: atts}, nil
	}

	var atts []models.Attachment
	var removedCount int
	t, err := store.MutateThread(threadID, func(t *models.Thread) error {
		n := tree.Find(&t.Root, nodeID)
		if n == nil {
			return fmt.Errorf("%w: node %s", ErrNotFound, nodeID)
		}
		if n.Author != author {
			return ErrUnauthorized
		}
		removed, _ := tree.Remove(&t.Root, nodeID)
		atts = tree.CollectAttachments(removed)
		removedCount = tree.Count(removed)
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if failed := s.cleanupAttachments(ctx, atts); len(failed) > 0 {
		tomb := store.Tombstone{NodeID: nodeID, Topic: t.Topic, DeletedTS: time.Now().UTC().UnixNano(), PendingRefs: failed}
		if err := store.SaveTombstone(tomb); err != nil {
			logger.Error("tombstone_save_failed", zap.String("node", nodeID), zap.Error(err))
		}
	}
	logger.Info("node_deleted", zap.String("thread", threadID), zap.String("node", nodeID), zap.Int("nodes", removedCount))
	s.publish(models.Event{Kind: models.EventDeleteMessage, Topic: t.Topic, Delete: &models.Delete{ID: nodeID, ParentThread: threadID}})
	return &DeletionResult{Removed: removedCount, Attachments: atts, Thread: t}, nil
}

// cleanupAttachments deletes blobs best-effort and returns the refs that
// could not be deleted.
func (s *Service) cleanupAttachments(ctx context.Context, atts []models.Attachment) []string {
	if s.blobs == nil {
		return nil
	}
	var failed []string
	for _, a := range atts {
		if a.StorageRef == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, a.StorageRef); err != nil {
			logger.Warn("attachment_cleanup_failed", zap.String("ref", a.StorageRef), zap.Error(err))
			failed = append(failed, a.StorageRef)
		}
	}
	return failed
}

// GetThread returns one aggregate.
func (s *Service) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	t, err := store.GetThread(threadID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return t, nil
}

// ListTopic returns the topic's threads in creation order; an unknown topic
// yields an empty list.
func (s *Service) ListTopic(ctx context.Context, topic string) ([]models.Thread, error) {
	threads, err := store.ListTopicThreads(topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return threads, nil
}

// TopicCounts returns the mapping of topic to live thread count.
func (s *Service) TopicCounts(ctx context.Context) (map[string]int, error) {
	counts, err := store.TopicCounts()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return counts, nil
}

// publish hands the event to the notifier. The hub never blocks and bridge
// failures are swallowed there, so committed mutations always return.
func (s *Service) publish(ev models.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ev)
}

// mapStoreErr translates store errors into service sentinels. Errors the
// mutate callback already tagged with a sentinel pass through unchanged.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
