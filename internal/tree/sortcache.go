package tree

import "github.com/arcfs/diskmap/internal/sortcache"

// sortCacheSlot is the per-directory cache entry invariant 8 (§3.2) refers
// to: row_number on a child is only meaningful while this slot is valid and
// was built for the (column, order) currently being queried.
type sortCacheSlot struct {
	valid  bool
	col    sortcache.Column
	order  sortcache.Order
	result sortcache.Result
}

// SortedChildren returns the sorted child view for dirID under (col, order),
// building and caching it if necessary, per spec.md §4.3.
func (t *Tree) SortedChildren(dirID NodeID, col sortcache.Column, order sortcache.Order) (sortcache.Result, bool) {
	n := t.node(dirID)
	if n == nil || n.dir == nil {
		return sortcache.Result{}, false
	}

	slot := &n.dir.sortCache
	if slot.valid && slot.col == col && slot.order == order {
		return slot.result, true
	}

	t.dropSortCache(dirID)
	items := t.directChildItems(dirID)
	result := sortcache.Sort(items, col, order)

	// Attic is appended at the end, never part of direct_children_count.
	if n.dir.attic != InvalidNodeID {
		atticItem := t.childItem(n.dir.attic)
		result.Sorted = append(result.Sorted, atticItem)
	}

	for i, it := range result.Sorted {
		id := it.Key.(NodeID)
		if child := t.node(id); child != nil {
			child.rowNumber = i
		}
	}

	slot.valid = true
	slot.col = col
	slot.order = order
	slot.result = result
	return result, true
}

// directChildItems snapshots a directory's real children plus its dot entry
// (iterated as one more "child", per §4.2) into sortcache.Item values.
func (t *Tree) directChildItems(dirID NodeID) []sortcache.Item {
	n := t.node(dirID)
	var items []sortcache.Item
	for id := n.dir.firstChild; id != InvalidNodeID; {
		c := t.node(id)
		items = append(items, t.childItem(id))
		id = c.nextSibling
	}
	if n.dir.dotEntry != InvalidNodeID {
		items = append(items, t.childItem(n.dir.dotEntry))
	}
	return items
}

func (t *Tree) childItem(id NodeID) sortcache.Item {
	c := t.node(id)
	pct := 0.0
	if parent := t.node(c.parent); parent != nil && parent.dir != nil && parent.dir.totalAllocatedSize > 0 {
		pct = 100.0 * float64(t.TotalAllocatedSize(id)) / float64(parent.dir.totalAllocatedSize)
	}
	return sortcache.Item{
		Key:                 id,
		Name:                c.name,
		IsDir:               c.IsDir() && !c.IsAttic(),
		IsDotEntry:          c.IsDotEntry(),
		IsAttic:             c.IsAttic(),
		Size:                c.Size(t),
		AllocatedSize:       t.TotalAllocatedSize(id),
		Items:               int64(t.TotalItems(id)),
		LatestMtime:         t.TotalLatestMtime(id).Unix(),
		SubtreeAllocatedPct: pct,
	}
}

// dropSortCache invalidates the sort cache on dirID and every ancestor, per
// the "drop caches on self and all ancestors" step of §4.3 / invariant 7.
func (t *Tree) dropSortCache(dirID NodeID) {
	for id := dirID; id != InvalidNodeID; {
		n := t.node(id)
		if n == nil {
			return
		}
		if n.dir != nil {
			n.dir.sortCache = sortCacheSlot{}
		}
		id = n.parent
	}
}
