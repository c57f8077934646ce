// Package sortcache builds per-directory sorted child views on demand; the
// tree package caches the result until the owning directory's spine is
// touched again. This package holds no cache of its own, and it knows
// nothing about the tree package's node graph — callers hand it a flat slice
// of Item and get back a sorted slice plus a dominance cutoff, so it can be
// unit tested and reused without pulling in node internals.
package sortcache

import "sort"

// Column is a sortable attribute of a child.
type Column int

const (
	ColumnName Column = iota
	ColumnSize
	ColumnAllocatedSize
	ColumnItems
	ColumnLatestMtime
)

// Order is ascending or descending.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Item is one child as seen by the sort cache: enough fields to order and
// break ties on, independent of the tree package's node representation.
type Item struct {
	Key                any // opaque identity returned to the caller, e.g. a tree.NodeID
	Name                string
	IsDir               bool
	IsDotEntry          bool
	IsAttic             bool
	Size                int64
	AllocatedSize       int64
	Items               int64
	LatestMtime         int64 // unix seconds
	SubtreeAllocatedPct float64
}

// dominanceFactor and the percent clamp are the constants from spec.md §4.3.
const (
	dominanceFactor = 5.0
	dominanceMinPct = 3.0
	dominanceMaxPct = 70.0
)

// Result is a sorted snapshot: the ordered items, and — when dominance
// detection applies — the row number of the first non-dominant child.
type Result struct {
	Sorted               []Item
	FirstNonDominantRow int // -1 if dominance detection doesn't apply
}

// Sort builds a sorted view of items per spec.md §4.3:
//  1. attic is carried separately and appended last by the caller (it is
//     never part of direct_children_count and sorts after everything else);
//     this function expects `items` to exclude the attic.
//  2. when column != Name, a stable sort by Name ascending runs first as the
//     secondary key;
//  3. a stable sort by (column, order) runs second, with the dot entry
//     always sorting after real directories on the Name column.
func Sort(items []Item, col Column, order Order) Result {
	sorted := make([]Item, len(items))
	copy(sorted, items)

	if col != ColumnName {
		sort.SliceStable(sorted, func(i, j int) bool {
			return nameLess(sorted[i], sorted[j])
		})
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return columnLess(sorted[i], sorted[j], col, order)
	})

	res := Result{Sorted: sorted, FirstNonDominantRow: -1}
	if isSizeLike(col) && order == Descending && len(sorted) >= 2 {
		res.FirstNonDominantRow = dominantCutoff(sorted)
	}
	return res
}

// nameLess implements the Name-column secondary sort, with the teacher-
// independent, original-source-grounded rule (SPEC_FULL.md §5.1) that
// directories collate before files, and the dot entry always sorts after
// all real directories, regardless of name.
func nameLess(a, b Item) bool {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra < rb
	}
	return a.Name < b.Name
}

// typeRank orders directories before files before the dot entry, matching
// FileInfoSorter's dir-before-file tie-break.
func typeRank(it Item) int {
	switch {
	case it.IsDotEntry:
		return 2
	case it.IsDir:
		return 0
	default:
		return 1
	}
}

func isSizeLike(col Column) bool {
	return col == ColumnSize || col == ColumnAllocatedSize || col == ColumnItems
}

func columnLess(a, b Item, col Column, order Order) bool {
	var less bool
	switch col {
	case ColumnName:
		less = nameLess(a, b)
		if order == Descending {
			// Name-descending still needs a strict total order; only the
			// final comparison direction flips, the dir/dot-entry rank does
			// not (dot entry sorts after directories either way).
			ra, rb := typeRank(a), typeRank(b)
			if ra != rb {
				return ra < rb
			}
			return a.Name > b.Name
		}
		return less
	case ColumnSize:
		return orderLess(a.Size, b.Size, order)
	case ColumnAllocatedSize:
		return orderLess(a.AllocatedSize, b.AllocatedSize, order)
	case ColumnItems:
		return orderLess(a.Items, b.Items, order)
	case ColumnLatestMtime:
		return orderLess(a.LatestMtime, b.LatestMtime, order)
	default:
		return nameLess(a, b)
	}
}

func orderLess[T int64](a, b T, order Order) bool {
	if order == Ascending {
		return a < b
	}
	return a > b
}

// dominantCutoff implements spec.md §4.3's dominance detection: the median
// child's subtree-allocated percent, scaled by dominanceFactor and clamped
// into [dominanceMinPct, dominanceMaxPct], is the threshold; the result is
// the row number of the first child strictly below it.
func dominantCutoff(sorted []Item) int {
	median := sorted[len(sorted)/2].SubtreeAllocatedPct
	threshold := median * dominanceFactor
	if threshold < dominanceMinPct {
		threshold = dominanceMinPct
	}
	if threshold > dominanceMaxPct {
		threshold = dominanceMaxPct
	}
	for i, it := range sorted {
		if it.SubtreeAllocatedPct < threshold {
			return i
		}
	}
	return len(sorted)
}
