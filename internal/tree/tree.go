package tree

import (
	"net/url"
	"strings"
)

// Tree owns the node arena and the invisible root DirInfo; the first visible
// toplevel is the root's first child (spec.md §3.1 DirTree).
type Tree struct {
	nodes           []Node
	freeList        []NodeID
	root            NodeID
	ignoreHardLinks bool
}

// NewTree creates an empty tree with its invisible root already allocated.
func NewTree() *Tree {
	t := &Tree{}
	t.root = t.alloc(Node{
		kind:        KindDir,
		name:        "",
		parent:      InvalidNodeID,
		nextSibling: InvalidNodeID,
		dir:         newDirExt(),
	})
	return t
}

// SetIgnoreHardLinks configures whether Size()/AllocatedSize() divide by the
// hard-link count (invariant 5, §3.2).
func (t *Tree) SetIgnoreHardLinks(v bool) { t.ignoreHardLinks = v }

// Root returns the invisible root's NodeID.
func (t *Tree) Root() NodeID { return t.root }

// Toplevel returns the first visible child of the invisible root, or
// InvalidNodeID if the tree is empty.
func (t *Tree) Toplevel() NodeID {
	root := t.node(t.root)
	if root == nil {
		return InvalidNodeID
	}
	return root.dir.firstChild
}

func newDirExt() *dirExt {
	return &dirExt{
		firstChild: InvalidNodeID,
		dotEntry:   InvalidNodeID,
		attic:      InvalidNodeID,
	}
}

// alloc reserves a slot in the arena, reusing a freed one when available.
func (t *Tree) alloc(n Node) NodeID {
	n.live = true
	if len(t.freeList) > 0 {
		id := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// node resolves a NodeID to its Node, or nil if it is stale (freed) or out
// of range — the arena's answer to spec.md §3.1's "magic number" staleness
// check: an index into a freed slot simply no longer resolves.
func (t *Tree) node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	n := &t.nodes[id]
	if !n.live {
		return nil
	}
	return n
}

// Node exposes the node for a given id to other packages in this module
// that need read access beyond the accessor methods below (scan, diskcache).
func (t *Tree) Node(id NodeID) *Node { return t.node(id) }

// Name returns id's display name: its own name, except the visible
// toplevel, which is given its absolute path at creation time (§3.1).
func (t *Tree) Name(id NodeID) string {
	n := t.node(id)
	if n == nil {
		return ""
	}
	return n.name
}

// Parent returns id's parent, or InvalidNodeID for the invisible root.
func (t *Tree) Parent(id NodeID) NodeID {
	n := t.node(id)
	if n == nil {
		return InvalidNodeID
	}
	return n.parent
}

// FirstChild returns id's first child (insertion order is unspecified), or
// InvalidNodeID.
func (t *Tree) FirstChild(id NodeID) NodeID {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return InvalidNodeID
	}
	return n.dir.firstChild
}

// NextSibling returns id's next sibling, or InvalidNodeID.
func (t *Tree) NextSibling(id NodeID) NodeID {
	n := t.node(id)
	if n == nil {
		return InvalidNodeID
	}
	return n.nextSibling
}

// DotEntry returns id's dot entry, or InvalidNodeID if absent.
func (t *Tree) DotEntry(id NodeID) NodeID {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return InvalidNodeID
	}
	return n.dir.dotEntry
}

// Attic returns id's attic, or InvalidNodeID if absent.
func (t *Tree) Attic(id NodeID) NodeID {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return InvalidNodeID
	}
	return n.dir.attic
}

// Clear destroys the whole tree and reallocates a fresh invisible root.
func (t *Tree) Clear() {
	t.nodes = nil
	t.freeList = nil
	t.root = t.alloc(Node{
		kind:        KindDir,
		parent:      InvalidNodeID,
		nextSibling: InvalidNodeID,
		dir:         newDirExt(),
	})
}

// Destroy recursively frees id's subtree (dot entry, attic, and children),
// unlinking it from its parent first so totals/sort caches can be
// invalidated before the node goes away (lifecycle rule, §3.3).
func (t *Tree) Destroy(id NodeID) {
	n := t.node(id)
	if n == nil {
		return
	}
	parent := n.parent
	if parent != InvalidNodeID {
		t.unlinkChild(parent, id)
	}
	t.destroySubtree(id)
	t.markDirty(parent)
}

func (t *Tree) destroySubtree(id NodeID) {
	n := t.node(id)
	if n == nil {
		return
	}
	if n.dir != nil {
		for c := n.dir.firstChild; c != InvalidNodeID; {
			cn := t.node(c)
			next := cn.nextSibling
			t.destroySubtree(c)
			c = next
		}
		if n.dir.dotEntry != InvalidNodeID {
			t.destroySubtree(n.dir.dotEntry)
		}
		if n.dir.attic != InvalidNodeID {
			t.destroySubtree(n.dir.attic)
		}
	}
	t.free(id)
}

func (t *Tree) free(id NodeID) {
	n := t.node(id)
	if n == nil {
		return
	}
	*n = Node{live: false}
	t.freeList = append(t.freeList, id)
}

// unlinkChild removes child from parent's sibling list (or dot-entry/attic
// slot), satisfying invariant 1 before the child is freed.
func (t *Tree) unlinkChild(parentID, childID NodeID) {
	p := t.node(parentID)
	if p == nil || p.dir == nil {
		return
	}
	if p.dir.dotEntry == childID {
		p.dir.dotEntry = InvalidNodeID
		return
	}
	if p.dir.attic == childID {
		p.dir.attic = InvalidNodeID
		return
	}
	if p.dir.firstChild == childID {
		p.dir.firstChild = t.node(childID).nextSibling
		return
	}
	for id := p.dir.firstChild; id != InvalidNodeID; {
		c := t.node(id)
		if c.nextSibling == childID {
			c.nextSibling = t.node(childID).nextSibling
			return
		}
		id = c.nextSibling
	}
	// Not found: unlink_child never throws (§4.1), just logs and no-ops.
}

// WipeChildren destroys everything under dirID — its dot entry, attic, and
// real subdirectory children — without destroying dirID itself, then marks
// it dirty. Used by the file-child exclude-rule step (§4.4 step 4): a
// directory that turns out to contain an excluded marker file has its
// whole subtree thrown away and replaced with "excluded" bookkeeping.
func (t *Tree) WipeChildren(dirID NodeID) {
	d := t.node(dirID)
	if d == nil || d.dir == nil {
		return
	}
	for c := d.dir.firstChild; c != InvalidNodeID; {
		cn := t.node(c)
		next := cn.nextSibling
		t.destroySubtree(c)
		c = next
	}
	d.dir.firstChild = InvalidNodeID
	if d.dir.dotEntry != InvalidNodeID {
		t.destroySubtree(d.dir.dotEntry)
		d.dir.dotEntry = InvalidNodeID
	}
	if d.dir.attic != InvalidNodeID {
		t.destroySubtree(d.dir.attic)
		d.dir.attic = InvalidNodeID
	}
	d.dir.directChildrenCount = 0
	t.markDirty(dirID)
}

// URL returns the URL-style path from the visible toplevel to id, matching
// the cache codec's path encoding (§4.7) and Locate's expected input.
func (t *Tree) URL(id NodeID) string {
	n := t.node(id)
	if n == nil {
		return ""
	}
	if id == t.root {
		return ""
	}
	parentURL := t.URL(n.parent)
	if n.IsDotEntry() || n.IsAttic() {
		return parentURL
	}
	if parentURL == "" || parentURL == "/" {
		if strings.HasPrefix(n.name, "/") {
			return n.name
		}
		return "/" + strings.TrimPrefix(n.name, "/")
	}
	return strings.TrimRight(parentURL, "/") + "/" + n.name
}

// Locate finds the node whose URL equals the given path, starting the
// search at startID (pass the tree's toplevel to search from the visible
// root, per §4.7's parent-resolution fallback chain).
func (t *Tree) Locate(startID NodeID, path string) NodeID {
	clean := normalizePath(path)
	return t.locate(startID, clean)
}

func (t *Tree) locate(id NodeID, clean string) NodeID {
	n := t.node(id)
	if n == nil {
		return InvalidNodeID
	}
	if normalizePath(t.URL(id)) == clean {
		return id
	}
	if n.dir == nil {
		return InvalidNodeID
	}
	for c := n.dir.firstChild; c != InvalidNodeID; {
		if found := t.locate(c, clean); found != InvalidNodeID {
			return found
		}
		c = t.node(c).nextSibling
	}
	if n.dir.dotEntry != InvalidNodeID {
		if found := t.locate(n.dir.dotEntry, clean); found != InvalidNodeID {
			return found
		}
	}
	if n.dir.attic != InvalidNodeID {
		if found := t.locate(n.dir.attic, clean); found != InvalidNodeID {
			return found
		}
	}
	return InvalidNodeID
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// EncodePathComponent URL-encodes a single leaf name for the cache format
// (§4.7), preserving the common case of a plain name unencoded.
func EncodePathComponent(name string) string {
	return (&url.URL{Path: name}).EscapedPath()
}

// DecodePathComponent reverses EncodePathComponent.
func DecodePathComponent(enc string) string {
	if p, err := url.PathUnescape(enc); err == nil {
		return p
	}
	return enc
}
