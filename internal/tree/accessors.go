package tree

import "os"

// ReadState returns id's own read_state field (directories only; 0/Queued
// for non-directories).
func (t *Tree) ReadState(id NodeID) ReadState {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return StateQueued
	}
	return n.dir.readState
}

// PendingReadJobs returns the count of queued/in-flight jobs within id's
// subtree.
func (t *Tree) PendingReadJobs(id NodeID) int {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return 0
	}
	return n.dir.pendingReadJobs
}

// AddPendingReadJobs adjusts the pending-job counter by delta.
func (t *Tree) AddPendingReadJobs(id NodeID, delta int) {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return
	}
	n.dir.pendingReadJobs += delta
}

// IsMountPoint reports whether id is a filesystem mount point.
func (t *Tree) IsMountPoint(id NodeID) bool {
	n := t.node(id)
	return n != nil && n.dir != nil && n.dir.isMountPoint
}

// SetMountPoint marks id as a mount point.
func (t *Tree) SetMountPoint(id NodeID, v bool) {
	if n := t.node(id); n != nil && n.dir != nil {
		n.dir.isMountPoint = v
	}
}

// IsExcluded reports whether id was wiped and excluded by a file-child
// exclude rule (§4.4 step 4).
func (t *Tree) IsExcluded(id NodeID) bool {
	n := t.node(id)
	return n != nil && n.dir != nil && n.dir.isExcluded
}

// SetExcluded marks id as excluded and sets its read state accordingly.
func (t *Tree) SetExcluded(id NodeID) {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return
	}
	n.dir.isExcluded = true
	t.SetReadState(id, StateOnRequestOnly)
}

// IsFromCache reports whether id's subtree was seeded from a cache file.
func (t *Tree) IsFromCache(id NodeID) bool {
	n := t.node(id)
	return n != nil && n.dir != nil && n.dir.isFromCache
}

// SetFromCache marks id as having been populated from a cache file.
func (t *Tree) SetFromCache(id NodeID, v bool) {
	if n := t.node(id); n != nil && n.dir != nil {
		n.dir.isFromCache = v
	}
}

// IsLocked reports the UI-held transient lock bit.
func (t *Tree) IsLocked(id NodeID) bool {
	n := t.node(id)
	return n != nil && n.dir != nil && n.dir.isLocked
}

// SetLocked sets the UI-held transient lock bit.
func (t *Tree) SetLocked(id NodeID, v bool) {
	if n := t.node(id); n != nil && n.dir != nil {
		n.dir.isLocked = v
	}
}

// IsIgnored reports id's ignored flag.
func (t *Tree) IsIgnored(id NodeID) bool {
	n := t.node(id)
	return n != nil && n.isIgnored
}

// EntryType returns id's on-disk entry type.
func (t *Tree) EntryType(id NodeID) EntryType {
	n := t.node(id)
	if n == nil {
		return TypeOther
	}
	return n.entryType
}

// Kind returns id's graph kind (file, dir, dot entry, attic, pkg).
func (t *Tree) Kind(id NodeID) Kind {
	n := t.node(id)
	if n == nil {
		return KindFile
	}
	return n.kind
}

// SetDirStatAttrs fills in a directory node's own stat-derived fields.
// NewDir only takes a name and mtime since most callers build these up
// incrementally (the live scanner, §4.4); a cache read has them all up
// front (§4.7), so it calls this once right after NewDir instead.
func (t *Tree) SetDirStatAttrs(id NodeID, mode, uid, gid uint32, byteSize, allocatedSize, blocks int64) {
	n := t.node(id)
	if n == nil {
		return
	}
	n.mode = os.FileMode(mode)
	n.uid = uid
	n.gid = gid
	n.byteSize = byteSize
	n.allocatedSize = allocatedSize
	n.blocks = blocks
}
