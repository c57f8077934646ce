// Package fileset implements FileInfoSet (spec.md §4.6): the normalized
// node-set operations applied to a user selection before any bulk
// operation (delete, refresh, clear-from-cache) touches the tree.
package fileset

import "github.com/arcfs/diskmap/internal/tree"

// Set is an ordered collection of node ids, normally built from a user
// selection.
type Set []tree.NodeID

// New builds a Set from the given ids, in order, duplicates allowed (callers
// normalize before relying on set semantics).
func New(ids ...tree.NodeID) Set {
	return append(Set(nil), ids...)
}

// InvalidRemoved drops entries whose NodeID no longer resolves in t — the
// arena's answer to "stale magic" (§4.6).
func (s Set) InvalidRemoved(t *tree.Tree) Set {
	out := make(Set, 0, len(s))
	for _, id := range s {
		if t.Node(id) != nil {
			out = append(out, id)
		}
	}
	return out
}

// Normalized drops any entry whose ancestor is also in the set, so a bulk
// operation over the set never processes the same subtree twice (§4.6).
func (s Set) Normalized(t *tree.Tree) Set {
	present := make(map[tree.NodeID]bool, len(s))
	for _, id := range s {
		present[id] = true
	}
	out := make(Set, 0, len(s))
	for _, id := range s {
		if hasAncestorIn(t, id, present) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func hasAncestorIn(t *tree.Tree, id tree.NodeID, present map[tree.NodeID]bool) bool {
	for p := t.Parent(id); p != tree.InvalidNodeID; p = t.Parent(p) {
		if present[p] {
			return true
		}
	}
	return false
}

// Parents returns the normalized set of each member's parent, substituting
// the enclosing real directory whenever the parent is a pseudo-dir (dot
// entry or attic) — bulk operations always act on real directories (§4.6).
func (s Set) Parents(t *tree.Tree) Set {
	norm := s.Normalized(t)
	seen := make(map[tree.NodeID]bool, len(norm))
	out := make(Set, 0, len(norm))
	for _, id := range norm {
		p := realParent(t, id)
		if p == tree.InvalidNodeID || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out.Normalized(t)
}

func realParent(t *tree.Tree, id tree.NodeID) tree.NodeID {
	p := t.Parent(id)
	for {
		n := t.Node(p)
		if n == nil {
			return p
		}
		if !n.IsDotEntry() && !n.IsAttic() {
			return p
		}
		p = t.Parent(p)
	}
}
