package tree

import "time"

// markDirty sets summary_dirty on id and every ancestor, and drops the sort
// cache on that spine (invariant 7, §3.2). Propagation stops as soon as it
// reaches an already-dirty ancestor — dirty is monotonic, so there is
// nothing more to mark above it.
func (t *Tree) markDirty(id NodeID) {
	for cur := id; cur != InvalidNodeID; {
		n := t.node(cur)
		if n == nil {
			return
		}
		if n.dir == nil {
			return
		}
		if n.dir.summaryDirty {
			n.dir.sortCache = sortCacheSlot{}
			return
		}
		n.dir.summaryDirty = true
		n.dir.sortCache = sortCacheSlot{}
		cur = n.parent
	}
}

func (t *Tree) ensureFresh(id NodeID) {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return
	}
	if n.dir.summaryDirty {
		t.recalc(id)
	}
}

// recalc implements §4.2: zero counters, walk direct children (the dot
// entry counts as one more child), sum recursively, then add the attic's
// total_ignored_items/err_subdir_count last, unconditionally.
func (t *Tree) recalc(dirID NodeID) {
	d := t.node(dirID)
	if d == nil || d.dir == nil {
		return
	}

	var size, allocSize, blocks int64
	var items, subdirs, files, ignoredItems, unignoredItems, errSubdirs int32
	latest := d.mtime
	var oldestFile time.Time

	process := func(c NodeID) {
		cn := t.node(c)
		if cn == nil {
			return
		}
		size += t.TotalSize(c)
		allocSize += t.TotalAllocatedSize(c)
		blocks += t.TotalBlocks(c)
		items += t.TotalItems(c)
		files += t.TotalFiles(c)
		subdirs += t.TotalSubdirs(c)
		ignoredItems += t.TotalIgnoredItems(c)
		errSubdirs += t.TotalErrSubdirCount(c)

		if !cn.IsPseudoDir() {
			items++
			if cn.kind == KindFile {
				files++
				// A directory's own ignored content is already folded in
				// above via the recursive TotalIgnoredItems(c) call; only a
				// file contributes a +1 of its own, since it has no subtree
				// to recurse into (matches the original's FileInfo vs.
				// DirInfo split in its recalc loop).
				if cn.isIgnored {
					ignoredItems++
				}
			} else {
				subdirs++
				if cn.dir.readState == StateError || cn.dir.readState == StatePermissionDenied {
					errSubdirs++
				}
			}
			// A child that is itself ignored (directly or via cascade)
			// contributes nothing to unignored_items: its own ignored
			// content is already counted above via TotalIgnoredItems, and
			// the cascade guarantees it has no unignored content left.
			if !cn.isIgnored {
				unignoredItems += 1 + t.TotalUnignoredItems(c)
			}
		} else {
			unignoredItems += t.TotalUnignoredItems(c)
		}

		if tl := t.TotalLatestMtime(c); tl.After(latest) {
			latest = tl
		}
		if of := t.TotalOldestFileMtime(c); !of.IsZero() {
			if oldestFile.IsZero() || of.Before(oldestFile) {
				oldestFile = of
			}
		}
	}

	for c := d.dir.firstChild; c != InvalidNodeID; {
		process(c)
		c = t.node(c).nextSibling
	}
	if d.dir.dotEntry != InvalidNodeID {
		process(d.dir.dotEntry)
	}
	if d.dir.attic != InvalidNodeID {
		ignoredItems += t.TotalIgnoredItems(d.dir.attic)
		errSubdirs += t.TotalErrSubdirCount(d.dir.attic)
	}

	size += d.Size(t)
	allocSize += d.AllocatedSize(t)
	blocks += d.blocks

	d.dir.totalSize = size
	d.dir.totalAllocatedSize = allocSize
	d.dir.totalBlocks = blocks
	d.dir.totalItems = items
	d.dir.totalSubdirs = subdirs
	d.dir.totalFiles = files
	d.dir.totalIgnoredItems = ignoredItems
	d.dir.totalUnignoredItems = unignoredItems
	d.dir.errSubdirCount = errSubdirs
	d.dir.latestMtime = latest
	d.dir.oldestFileMtime = oldestFile
	d.dir.summaryDirty = false
}

// TotalSize is d.size + the recursive sum of non-attic children's
// TotalSize, per invariant 1. For a plain file it is simply Size(t).
func (t *Tree) TotalSize(id NodeID) int64 {
	n := t.node(id)
	if n == nil {
		return 0
	}
	if n.dir == nil {
		return n.Size(t)
	}
	t.ensureFresh(id)
	return n.dir.totalSize
}

// TotalAllocatedSize is the allocated-bytes analogue of TotalSize.
func (t *Tree) TotalAllocatedSize(id NodeID) int64 {
	n := t.node(id)
	if n == nil {
		return 0
	}
	if n.dir == nil {
		return n.AllocatedSize(t)
	}
	t.ensureFresh(id)
	return n.dir.totalAllocatedSize
}

// TotalBlocks is the 512-byte-unit analogue of TotalSize.
func (t *Tree) TotalBlocks(id NodeID) int64 {
	n := t.node(id)
	if n == nil {
		return 0
	}
	if n.dir == nil {
		return n.blocks
	}
	t.ensureFresh(id)
	return n.dir.totalBlocks
}

// TotalItems counts files+subdirs in the subtree, excluding id itself, and
// excluding attic contents (attic sizes are surfaced only through
// TotalIgnoredItems). A file reports 0 — a file has no items inside it.
func (t *Tree) TotalItems(id NodeID) int32 {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return 0
	}
	t.ensureFresh(id)
	return n.dir.totalItems
}

// TotalFiles counts regular (non-directory) entries in the subtree.
func (t *Tree) TotalFiles(id NodeID) int32 {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return 0
	}
	t.ensureFresh(id)
	return n.dir.totalFiles
}

// TotalSubdirs counts directory entries in the subtree (excluding id).
func (t *Tree) TotalSubdirs(id NodeID) int32 {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return 0
	}
	t.ensureFresh(id)
	return n.dir.totalSubdirs
}

// TotalIgnoredItems counts ignored items in the subtree, including
// everything held in any attic beneath id (invariant 4, §3.2).
func (t *Tree) TotalIgnoredItems(id NodeID) int32 {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return 0 // a single ignored file is counted by its parent, not itself
	}
	t.ensureFresh(id)
	return n.dir.totalIgnoredItems
}

// TotalUnignoredItems counts items in the subtree that are not ignored
// anywhere along their own path: a child that is itself ignored (cascade or
// direct) contributes nothing, since the cascade guarantees everything
// beneath it is ignored too. Unlike TotalItems this is not a plain structural
// count — it excludes cascade-ignored directories even though they still
// count as structural items.
func (t *Tree) TotalUnignoredItems(id NodeID) int32 {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return 0
	}
	t.ensureFresh(id)
	return n.dir.totalUnignoredItems
}

// TotalErrSubdirCount counts subdirectories anywhere beneath id (including
// within the attic) whose read state ended in error or permission-denied.
func (t *Tree) TotalErrSubdirCount(id NodeID) int32 {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return 0
	}
	t.ensureFresh(id)
	return n.dir.errSubdirCount
}

// TotalLatestMtime is the maximum mtime anywhere in the subtree, seeded
// from id's own mtime.
func (t *Tree) TotalLatestMtime(id NodeID) time.Time {
	n := t.node(id)
	if n == nil {
		return time.Time{}
	}
	if n.dir == nil {
		return n.mtime
	}
	t.ensureFresh(id)
	return n.dir.latestMtime
}

// TotalOldestFileMtime is the minimum positive mtime among files anywhere
// in the subtree; the zero Time means "unknown" (§4.2).
func (t *Tree) TotalOldestFileMtime(id NodeID) time.Time {
	n := t.node(id)
	if n == nil {
		return time.Time{}
	}
	if n.dir == nil {
		return n.mtime
	}
	t.ensureFresh(id)
	return n.dir.oldestFileMtime
}

// DirectChildrenCount is the number of direct children (not counting the
// attic), maintained incrementally by insert/attic routing.
func (t *Tree) DirectChildrenCount(id NodeID) int32 {
	n := t.node(id)
	if n == nil || n.dir == nil {
		return 0
	}
	return n.dir.directChildrenCount
}

// childAdded is the incremental add path (§4.2): it updates parent totals
// in place to avoid an O(N) recalc walk during scanning, and only while the
// ancestor it is visiting is still clean — once it reaches a dirty
// ancestor, the eventual recalc there subsumes everything above it.
func (t *Tree) childAdded(parentID, childID NodeID) {
	child := t.node(childID)
	if child == nil {
		return
	}
	for cur := parentID; cur != InvalidNodeID; {
		n := t.node(cur)
		if n == nil || n.dir == nil {
			return
		}
		if n.dir.summaryDirty {
			return
		}

		n.dir.totalSize += t.TotalSize(childID)
		n.dir.totalAllocatedSize += t.TotalAllocatedSize(childID)
		n.dir.totalBlocks += t.TotalBlocks(childID)
		n.dir.totalItems += t.TotalItems(childID)
		n.dir.totalFiles += t.TotalFiles(childID)
		n.dir.totalSubdirs += t.TotalSubdirs(childID)
		n.dir.totalIgnoredItems += t.TotalIgnoredItems(childID)
		n.dir.errSubdirCount += t.TotalErrSubdirCount(childID)

		if !child.IsPseudoDir() {
			n.dir.totalItems++
			if child.kind == KindFile {
				n.dir.totalFiles++
				if child.isIgnored {
					n.dir.totalIgnoredItems++
				}
			} else {
				n.dir.totalSubdirs++
				if child.dir != nil && (child.dir.readState == StateError || child.dir.readState == StatePermissionDenied) {
					n.dir.errSubdirCount++
				}
			}
			if !child.isIgnored {
				n.dir.totalUnignoredItems += 1 + t.TotalUnignoredItems(childID)
			}
		} else {
			n.dir.totalUnignoredItems += t.TotalUnignoredItems(childID)
		}

		if tl := t.TotalLatestMtime(childID); tl.After(n.dir.latestMtime) {
			n.dir.latestMtime = tl
		}
		if of := t.TotalOldestFileMtime(childID); !of.IsZero() {
			if n.dir.oldestFileMtime.IsZero() || of.Before(n.dir.oldestFileMtime) {
				n.dir.oldestFileMtime = of
			}
		}

		n.dir.sortCache = sortCacheSlot{}
		cur = n.parent
	}
}
