package tree

import (
	"os"
	"time"
)

// FileAttrs carries the stat-derived attributes for a new FileInfo.
type FileAttrs struct {
	Name          string
	Type          EntryType
	Mode          uint32
	UID, GID      uint32
	Mtime         time.Time
	ByteSize      int64
	AllocatedSize int64
	Blocks        int64
	Links         int32
}

// NewFile allocates a new, unattached FileInfo node from stat attributes.
func (t *Tree) NewFile(attrs FileAttrs) NodeID {
	fragmentSlack := int64(4096) // one block of rounding slack, §3.1 is_sparse
	sparse := attrs.ByteSize > 0 && attrs.AllocatedSize+fragmentSlack < attrs.ByteSize
	return t.alloc(Node{
		kind:          KindFile,
		name:          attrs.Name,
		entryType:     attrs.Type,
		mode:          os.FileMode(attrs.Mode),
		uid:           attrs.UID,
		gid:           attrs.GID,
		mtime:         attrs.Mtime,
		byteSize:      attrs.ByteSize,
		allocatedSize: attrs.AllocatedSize,
		blocks:        attrs.Blocks,
		links:         attrs.Links,
		isSparse:      sparse,
		parent:        InvalidNodeID,
		nextSibling:   InvalidNodeID,
	})
}

// NewDir allocates a new, unattached DirInfo node. A DotEntry is created
// eagerly per §4.1, unless eager is false (used for pseudo-dirs themselves
// and the invisible root, which never get a dot entry of their own).
func (t *Tree) NewDir(name string, mtime time.Time, eager bool) NodeID {
	id := t.alloc(Node{
		kind:        KindDir,
		name:        name,
		entryType:   TypeDir,
		mtime:       mtime,
		parent:      InvalidNodeID,
		nextSibling: InvalidNodeID,
		dir:         newDirExt(),
	})
	t.node(id).dir.latestMtime = mtime
	if eager {
		n := t.node(id)
		n.dir.dotEntry = t.alloc(Node{
			kind:        KindDotEntry,
			name:        ".",
			parent:      id,
			nextSibling: InvalidNodeID,
			dir:         newDirExt(),
		})
		n.dir.directChildrenCount = 1
	}
	return id
}

// InsertChild attaches c under parent per §4.1's routing rule: directories
// (or any child, when parent has no dot entry) prepend into parent's own
// child list; otherwise the child is delegated to the dot entry.
func (t *Tree) InsertChild(parentID, childID NodeID) {
	p := t.node(parentID)
	c := t.node(childID)
	if p == nil || c == nil || p.dir == nil {
		return
	}
	if c.IsDir() || p.dir.dotEntry == InvalidNodeID {
		t.prepend(parentID, childID)
		return
	}
	t.InsertChild(p.dir.dotEntry, childID)
}

func (t *Tree) prepend(parentID, childID NodeID) {
	p := t.node(parentID)
	c := t.node(childID)
	c.parent = parentID
	c.nextSibling = p.dir.firstChild
	p.dir.firstChild = childID
	p.dir.directChildrenCount++
	t.childAdded(parentID, childID)
}

// AddToAttic routes an ignored child c to parent's attic (creating it
// lazily), or to the dot entry's attic when parent has a dot entry and c is
// not itself a directory — keeping a directory's ignored files colocated
// with that directory's ignored subtree (§4.1).
func (t *Tree) AddToAttic(parentID, childID NodeID) {
	p := t.node(parentID)
	c := t.node(childID)
	if p == nil || c == nil || p.dir == nil {
		return
	}
	c.isIgnored = true
	if c.IsDir() || p.dir.dotEntry == InvalidNodeID {
		t.addToAtticDirect(parentID, childID)
		return
	}
	t.AddToAttic(p.dir.dotEntry, childID)
}

func (t *Tree) addToAtticDirect(parentID, childID NodeID) {
	p := t.node(parentID)
	if p.dir.attic == InvalidNodeID {
		p.dir.attic = t.alloc(Node{
			kind:        KindAttic,
			name:        "<attic>",
			parent:      parentID,
			nextSibling: InvalidNodeID,
			dir:         newDirExt(),
		})
		t.node(p.dir.attic).isIgnored = true
	}
	atticID := p.dir.attic
	a := t.node(atticID)
	c := t.node(childID)
	c.parent = atticID
	c.nextSibling = a.dir.firstChild
	a.dir.firstChild = childID
	t.markDirty(atticID)
}

// FinalizeLocal implements dot-entry cleanup (§4.1): after a directory
// finishes reading, if it has no real directory children and no attic
// children, its dot entry's children are reparented directly into it and
// the dot entry's attic is folded into its own attic, flattening leaf
// directories.
func (t *Tree) FinalizeLocal(dirID NodeID) {
	d := t.node(dirID)
	if d == nil || d.dir == nil || d.IsPseudoDir() {
		return
	}
	if d.dir.dotEntry == InvalidNodeID {
		t.finalizeAtticRec(dirID)
		t.checkIgnored(dirID)
		return
	}

	hasRealSubdir := false
	for c := d.dir.firstChild; c != InvalidNodeID; {
		cn := t.node(c)
		if cn.IsDir() && !cn.IsPseudoDir() {
			hasRealSubdir = true
			break
		}
		c = cn.nextSibling
	}
	if hasRealSubdir || d.dir.attic != InvalidNodeID {
		t.finalizeAtticRec(dirID)
		t.checkIgnored(dirID)
		return
	}

	dot := t.node(d.dir.dotEntry)
	// Reparent the dot entry's children directly into d.
	for c := dot.dir.firstChild; c != InvalidNodeID; {
		cn := t.node(c)
		next := cn.nextSibling
		cn.parent = dirID
		cn.nextSibling = d.dir.firstChild
		d.dir.firstChild = c
		c = next
	}
	dot.dir.firstChild = InvalidNodeID

	// Fold the dot entry's attic into d's attic.
	if dot.dir.attic != InvalidNodeID {
		if d.dir.attic == InvalidNodeID {
			d.dir.attic = dot.dir.attic
			t.node(d.dir.attic).parent = dirID
		} else {
			dstAttic := t.node(d.dir.attic)
			for c := t.node(dot.dir.attic).dir.firstChild; c != InvalidNodeID; {
				cn := t.node(c)
				next := cn.nextSibling
				cn.parent = d.dir.attic
				cn.nextSibling = dstAttic.dir.firstChild
				dstAttic.dir.firstChild = c
				c = next
			}
			t.free(dot.dir.attic)
		}
		dot.dir.attic = InvalidNodeID
	}

	// Delete the dot entry if it ended up empty.
	t.free(d.dir.dotEntry)
	d.dir.dotEntry = InvalidNodeID

	t.finalizeAtticRec(dirID)
	t.checkIgnored(dirID)
	t.markDirty(dirID)
}

// finalizeAtticRec recurses into the dot entry's attic first, then
// finalizes this directory's own attic locally, deleting it if empty
// ("Attic cleanup", §4.1).
func (t *Tree) finalizeAtticRec(dirID NodeID) {
	d := t.node(dirID)
	if d == nil || d.dir == nil {
		return
	}
	if d.dir.dotEntry != InvalidNodeID {
		dot := t.node(d.dir.dotEntry)
		if dot.dir.attic != InvalidNodeID && t.node(dot.dir.attic).dir.firstChild == InvalidNodeID {
			t.free(dot.dir.attic)
			dot.dir.attic = InvalidNodeID
		}
	}
	if d.dir.attic != InvalidNodeID && t.node(d.dir.attic).dir.firstChild == InvalidNodeID {
		t.free(d.dir.attic)
		d.dir.attic = InvalidNodeID
	}
}

// checkIgnored implements the ignored cascade (§4.1): a directory whose
// total_unignored_items is 0 and total_ignored_items > 0 becomes itself
// ignored, and marks every non-ignored child ignored recursively. Pseudo-
// dirs never participate (an Attic is already always ignored; a DotEntry
// has no ignored-ness of its own, its parent directory decides). The check
// then repeats on the parent, so a directory that only becomes fully
// ignored once its last real subdirectory finishes still notifies its own
// ancestors, regardless of finalize order.
func (t *Tree) checkIgnored(dirID NodeID) {
	d := t.node(dirID)
	if d == nil || d.IsPseudoDir() {
		return
	}
	unignored := t.TotalUnignoredItems(dirID)
	ignored := t.TotalIgnoredItems(dirID)
	if unignored == 0 && ignored > 0 {
		d.isIgnored = true
		t.cascadeIgnored(dirID)
	}
	if d.parent != InvalidNodeID {
		t.checkIgnored(d.parent)
	}
}

func (t *Tree) cascadeIgnored(dirID NodeID) {
	d := t.node(dirID)
	if d == nil || d.dir == nil {
		return
	}
	for c := d.dir.firstChild; c != InvalidNodeID; {
		cn := t.node(c)
		if !cn.isIgnored {
			cn.isIgnored = true
			if cn.IsDir() {
				cn.isIgnored = true
				t.cascadeIgnored(c)
			}
		}
		c = cn.nextSibling
	}
	if d.dir.dotEntry != InvalidNodeID {
		t.cascadeIgnored(d.dir.dotEntry)
	}
}

// SetReadError records a per-node read error (§7) via a dedicated setter
// that also marks the node dirty so err_subdir_count re-propagates, and
// enforces read-state monotonicity: once aborted, later transitions to
// finished are suppressed (invariant 6, §3.2).
func (t *Tree) SetReadError(id NodeID, state ReadState, message string) {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return
	}
	if n.dir.readState == StateAborted && state == StateFinished {
		return
	}
	n.dir.readState = state
	n.errMessage = message
	t.markDirty(id)
}

// SetReadState transitions a directory's read state, honoring the same
// monotonicity rule as SetReadError.
func (t *Tree) SetReadState(id NodeID, state ReadState) {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return
	}
	if n.dir.readState == StateAborted && state == StateFinished {
		return
	}
	n.dir.readState = state
}
