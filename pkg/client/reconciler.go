// Package client is the reconciling board client: it keeps a topic's
// thread list locally, renders optimistic placeholders immediately, and
// merges server broadcasts so the same mutation arriving twice (direct
// response plus broadcast, in either order) lands as exactly one node.
package client

import (
	"sync"

	"whisperboard/pkg/models"
	"whisperboard/pkg/tree"
)

// Reconciler maintains the local view of one topic. All methods are safe
// for concurrent use; the websocket pump and the sending goroutine share
// one instance.
type Reconciler struct {
	mu      sync.Mutex
	topic   string
	threads []models.Thread
	// pending maps idempotency tokens of in-flight optimistic sends to
	// their placeholders, so a failure can re-surface a placeholder that
	// an intervening aggregate replacement wiped from the view.
	pending map[string]pendingSend
	// stale is set when an event referenced state this view does not hold;
	// the owner should re-fetch the snapshot.
	stale bool
}

// pendingSend remembers where an optimistic node was inserted.
type pendingSend struct {
	node     models.Node
	threadID string
	parentID string
	root     bool
}

// NewReconciler returns an empty view for the topic.
func NewReconciler(topic string) *Reconciler {
	return &Reconciler{topic: topic, pending: make(map[string]pendingSend)}
}

// Topic returns the topic this view tracks.
func (r *Reconciler) Topic() string { return r.topic }

// LoadSnapshot replaces the local state with an authoritative server
// listing and clears the stale flag. Pending placeholders are discarded;
// their mutations are either inside the snapshot already or lost.
func (r *Reconciler) LoadSnapshot(threads []models.Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads = append([]models.Thread(nil), threads...)
	r.pending = make(map[string]pendingSend)
	r.stale = false
}

// Threads returns a copy of the current thread list.
func (r *Reconciler) Threads() []models.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Thread(nil), r.threads...)
}

// NeedsRefresh reports whether an event could not be applied locally and a
// snapshot re-fetch is required.
func (r *Reconciler) NeedsRefresh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

// AddOptimisticRoot inserts a pending placeholder thread. The node must
// carry a ClientToken so the server echo can be matched later.
func (r *Reconciler) AddOptimisticRoot(root models.Node) {
	root.Status = models.StatusPending
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[root.ClientToken] = pendingSend{node: root, root: true}
	r.threads = append(r.threads, models.Thread{Topic: r.topic, Root: root})
}

// AddOptimisticReply inserts a pending placeholder reply under parentID
// (empty parentID targets the root). Returns false when the thread or
// parent is not in the local view.
func (r *Reconciler) AddOptimisticReply(threadID, parentID string, reply models.Node) bool {
	reply.Status = models.StatusPending
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.threads {
		if r.threads[i].ID() != threadID {
			continue
		}
		if !tree.InsertChild(&r.threads[i].Root, parentID, reply) {
			return false
		}
		r.pending[reply.ClientToken] = pendingSend{node: reply, threadID: threadID, parentID: parentID}
		return true
	}
	return false
}

// MarkFailed flips the placeholder carrying the token to failed so the
// owner can surface a retry affordance. The token stays pending: a late
// broadcast for it must still reconcile.
func (r *Reconciler) MarkFailed(token string) {
	if token == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.threads {
		if n := findByToken(&r.threads[i].Root, token); n != nil {
			n.Status = models.StatusFailed
			return
		}
	}
	// an aggregate replacement wiped the placeholder before the failure
	// arrived; re-insert it so the failed send stays visible
	p, ok := r.pending[token]
	if !ok {
		return
	}
	p.node.Status = models.StatusFailed
	if p.root {
		r.threads = append(r.threads, models.Thread{Topic: r.topic, Root: p.node})
		return
	}
	for i := range r.threads {
		if r.threads[i].ID() != p.threadID {
			continue
		}
		if !tree.InsertChild(&r.threads[i].Root, p.parentID, p.node) {
			// parent gone too; surface the failure at the thread root
			tree.InsertChild(&r.threads[i].Root, "", p.node)
		}
		return
	}
	r.stale = true
}

// Confirm applies the direct mutation response: the authoritative aggregate
// replaces the local thread, collapsing any placeholder it covers. Safe to
// call before or after the matching broadcast arrives.
func (r *Reconciler) Confirm(t *models.Thread) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(t)
}

// ApplyEvent merges one broadcast into the local view.
func (r *Reconciler) ApplyEvent(ev models.Event) {
	if ev.Topic != r.topic {
		return
	}
	switch ev.Kind {
	case models.EventNewMessage, models.EventUpdateMessage:
		if ev.Thread == nil {
			return
		}
		r.mu.Lock()
		r.upsertLocked(ev.Thread)
		r.mu.Unlock()
	case models.EventDeleteMessage:
		if ev.Delete == nil {
			return
		}
		r.applyDelete(ev.Delete)
	}
}

// upsertLocked installs the authoritative aggregate. Match order: thread
// id first (idempotent re-delivery), then a pending placeholder whose root
// carries the same token (our own optimistic root coming back with its
// server-assigned id), then append. Tokens present anywhere in the
// aggregate are settled.
func (r *Reconciler) upsertLocked(t *models.Thread) {
	cp := *t
	markCommitted(&cp.Root)
	r.settleTokens(&cp.Root)

	for i := range r.threads {
		if r.threads[i].ID() == cp.ID() {
			r.threads[i] = cp
			return
		}
	}
	if tok := cp.Root.ClientToken; tok != "" {
		for i := range r.threads {
			if r.threads[i].Root.ClientToken == tok && r.threads[i].Root.Status != models.StatusCommitted {
				r.threads[i] = cp
				return
			}
		}
	}
	r.threads = append(r.threads, cp)
}

func (r *Reconciler) applyDelete(d *models.Delete) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ParentThread == "" {
		// root deletion removes the whole thread; deleting an unknown
		// thread is a no-op, not staleness
		for i := range r.threads {
			if r.threads[i].ID() == d.ID {
				r.threads = append(r.threads[:i], r.threads[i+1:]...)
				return
			}
		}
		return
	}
	for i := range r.threads {
		if r.threads[i].ID() != d.ParentThread {
			continue
		}
		// removing an already-gone node is a no-op, so re-delivery is safe
		tree.Remove(&r.threads[i].Root, d.ID)
		return
	}
	// a reply was deleted in a thread this view never loaded
	r.stale = true
}

// settleTokens drops every token found in the aggregate from the pending
// set. Caller holds the lock.
func (r *Reconciler) settleTokens(n *models.Node) {
	if n.ClientToken != "" {
		delete(r.pending, n.ClientToken)
	}
	for i := range n.Children {
		r.settleTokens(&n.Children[i])
	}
}

// PendingCount reports in-flight optimistic sends, for tests and UIs.
func (r *Reconciler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func markCommitted(n *models.Node) {
	n.Status = models.StatusCommitted
	for i := range n.Children {
		markCommitted(&n.Children[i])
	}
}

func findByToken(n *models.Node, token string) *models.Node {
	if n.ClientToken == token {
		return n
	}
	for i := range n.Children {
		if found := findByToken(&n.Children[i], token); found != nil {
			return found
		}
	}
	return nil
}
