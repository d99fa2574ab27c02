package client

import (
	"context"

	"github.com/google/uuid"

	"whisperboard/pkg/models"
)

// Session binds a transport Client to a topic Reconciler and implements the
// optimistic send flow: placeholder first, network call second, settle on
// the direct response, and let the broadcast pump keep the view converged.
type Session struct {
	c *Client
	r *Reconciler
}

// NewSession returns a session for one topic.
func NewSession(c *Client, topic string) *Session {
	return &Session{c: c, r: NewReconciler(topic)}
}

// View exposes the underlying reconciler for rendering.
func (s *Session) View() *Reconciler { return s.r }

// Refresh loads the authoritative snapshot.
func (s *Session) Refresh(ctx context.Context) error {
	threads, err := s.c.ListTopic(ctx, s.r.Topic())
	if err != nil {
		return err
	}
	s.r.LoadSnapshot(threads)
	return nil
}

// Pump applies broadcast events until the channel closes. Run it in its
// own goroutine alongside Subscribe.
func (s *Session) Pump(events <-chan models.Event) {
	for ev := range events {
		s.r.ApplyEvent(ev)
	}
}

// SendRoot posts a new whisper optimistically. The placeholder appears in
// the view immediately; on failure it is marked failed and the error
// returned.
func (s *Session) SendRoot(ctx context.Context, text string, attachments []models.Attachment) error {
	token := uuid.NewString()
	s.r.AddOptimisticRoot(models.Node{
		Author:      s.c.userID,
		Text:        text,
		Attachments: attachments,
		ClientToken: token,
	})
	t, err := s.c.CreateThread(ctx, s.r.Topic(), text, attachments, token)
	if err != nil {
		s.r.MarkFailed(token)
		return err
	}
	s.r.Confirm(t)
	return nil
}

// SendReply posts a reply optimistically under parentID (empty targets the
// thread root).
func (s *Session) SendReply(ctx context.Context, threadID, parentID, text string, attachments []models.Attachment) error {
	token := uuid.NewString()
	s.r.AddOptimisticReply(threadID, parentID, models.Node{
		Author:      s.c.userID,
		Text:        text,
		Attachments: attachments,
		ClientToken: token,
	})
	t, err := s.c.CreateReply(ctx, threadID, parentID, text, attachments, token)
	if err != nil {
		s.r.MarkFailed(token)
		return err
	}
	s.r.Confirm(t)
	return nil
}

// Toggle flips this user's reaction and installs the confirmed aggregate.
func (s *Session) Toggle(ctx context.Context, threadID, nodeID, kind string) error {
	t, err := s.c.ToggleReaction(ctx, threadID, nodeID, kind)
	if err != nil {
		return err
	}
	s.r.Confirm(t)
	return nil
}

// Edit replaces a node's text and installs the confirmed aggregate.
func (s *Session) Edit(ctx context.Context, threadID, nodeID, text string) error {
	t, err := s.c.EditText(ctx, threadID, nodeID, text)
	if err != nil {
		return err
	}
	s.r.Confirm(t)
	return nil
}

// Delete removes a node; the view converges via the delete broadcast, but
// the local splice happens eagerly so the UI does not wait for it.
func (s *Session) Delete(ctx context.Context, threadID, nodeID string) error {
	if err := s.c.DeleteNode(ctx, threadID, nodeID); err != nil {
		return err
	}
	parent := threadID
	if nodeID == threadID {
		parent = ""
	}
	s.r.ApplyEvent(models.Event{
		Kind:   models.EventDeleteMessage,
		Topic:  s.r.Topic(),
		Delete: &models.Delete{ID: nodeID, ParentThread: parent},
	})
	return nil
}
