// Package tree implements the recursive node-tree operations for a thread
// aggregate. All functions walk depth-first across every nesting level; node
// ids are unique within one aggregate so the first match is the only match.
package tree

import "whisperboard/pkg/models"

// Find returns a pointer to the node with the given id anywhere in the tree
// rooted at root (including root itself), or nil when absent.
func Find(root *models.Node, id string) *models.Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for i := range root.Children {
		if n := Find(&root.Children[i], id); n != nil {
			return n
		}
	}
	return nil
}

// InsertChild appends child under the node identified by parentID. An empty
// parentID targets root itself. Returns false when a non-empty parentID does
// not resolve anywhere in the tree.
func InsertChild(root *models.Node, parentID string, child models.Node) bool {
	target := root
	if parentID != "" {
		target = Find(root, parentID)
		if target == nil {
			return false
		}
	}
	target.Children = append(target.Children, child)
	return true
}

// Update locates the node with the given id at any depth and applies fn to
// it in place. Returns false when the id does not resolve.
func Update(root *models.Node, id string, fn func(*models.Node)) bool {
	n := Find(root, id)
	if n == nil {
		return false
	}
	fn(n)
	return true
}

// Remove excises the node with the given id, together with its entire
// subtree, from its parent's child list and returns the removed subtree.
// The root itself cannot be spliced out of anything; callers handle root
// deletion at the aggregate level. Returns nil, false when id is the root
// or does not resolve.
func Remove(root *models.Node, id string) (*models.Node, bool) {
	if root == nil || root.ID == id {
		return nil, false
	}
	for i := range root.Children {
		if root.Children[i].ID == id {
			removed := root.Children[i]
			root.Children = append(root.Children[:i], root.Children[i+1:]...)
			return &removed, true
		}
		if n, ok := Remove(&root.Children[i], id); ok {
			return n, ok
		}
	}
	return nil, false
}

// CollectAttachments returns every attachment owned anywhere in the subtree
// rooted at n, in depth-first order. Used for cascade cleanup after Remove.
func CollectAttachments(n *models.Node) []models.Attachment {
	if n == nil {
		return nil
	}
	out := append([]models.Attachment(nil), n.Attachments...)
	for i := range n.Children {
		out = append(out, CollectAttachments(&n.Children[i])...)
	}
	return out
}

// Count returns the number of nodes in the subtree rooted at n, including n.
func Count(n *models.Node) int {
	if n == nil {
		return 0
	}
	total := 1
	for i := range n.Children {
		total += Count(&n.Children[i])
	}
	return total
}
