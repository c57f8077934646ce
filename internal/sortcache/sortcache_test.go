package sortcache

import "testing"

func names(res Result) []string {
	out := make([]string, len(res.Sorted))
	for i, it := range res.Sorted {
		out[i] = it.Name
	}
	return out
}

func TestSortNameDirsBeforeFiles(t *testing.T) {
	items := []Item{
		{Name: "b.txt"},
		{Name: "a.txt"},
		{Name: "zdir", IsDir: true},
		{Name: ".", IsDotEntry: true},
	}
	res := Sort(items, ColumnName, Ascending)
	got := names(res)
	want := []string{"zdir", "a.txt", "b.txt", "."}
	if !equalStrings(got, want) {
		t.Errorf("Sort(Name, Asc) = %v, want %v", got, want)
	}
}

func TestSortNameDescendingKeepsDotEntryLast(t *testing.T) {
	items := []Item{
		{Name: "a.txt"},
		{Name: "zdir", IsDir: true},
		{Name: ".", IsDotEntry: true},
	}
	res := Sort(items, ColumnName, Descending)
	got := names(res)
	want := []string{"zdir", "a.txt", "."}
	if !equalStrings(got, want) {
		t.Errorf("Sort(Name, Desc) = %v, want %v", got, want)
	}
}

func TestSortBySizeUsesNameAsSecondaryKey(t *testing.T) {
	items := []Item{
		{Name: "b", Size: 10},
		{Name: "a", Size: 10},
		{Name: "c", Size: 20},
	}
	res := Sort(items, ColumnSize, Descending)
	got := names(res)
	want := []string{"c", "a", "b"}
	if !equalStrings(got, want) {
		t.Errorf("Sort(Size, Desc) = %v, want %v", got, want)
	}
}

func TestDominantCutoff(t *testing.T) {
	// One child holding 90% of the subtree dwarfs everything else; the
	// median (5%) times the dominance factor gives a 25% threshold, so every
	// child below 25% should be marked non-dominant starting at its row.
	items := []Item{
		{Name: "big", Size: 900, SubtreeAllocatedPct: 90},
		{Name: "mid", Size: 50, SubtreeAllocatedPct: 5},
		{Name: "small", Size: 50, SubtreeAllocatedPct: 5},
	}
	res := Sort(items, ColumnSize, Descending)
	if res.FirstNonDominantRow == -1 {
		t.Fatalf("expected dominance detection to apply")
	}
	if res.FirstNonDominantRow != 1 {
		t.Errorf("FirstNonDominantRow = %d, want 1", res.FirstNonDominantRow)
	}
}

func TestDominantCutoffNotAppliedForAscendingOrNameColumn(t *testing.T) {
	items := []Item{
		{Name: "a", Size: 10, SubtreeAllocatedPct: 50},
		{Name: "b", Size: 20, SubtreeAllocatedPct: 50},
	}
	if res := Sort(items, ColumnSize, Ascending); res.FirstNonDominantRow != -1 {
		t.Errorf("ascending sort should not compute dominance, got %d", res.FirstNonDominantRow)
	}
	if res := Sort(items, ColumnName, Descending); res.FirstNonDominantRow != -1 {
		t.Errorf("name column should not compute dominance, got %d", res.FirstNonDominantRow)
	}
}

func TestDominantCutoffClampsToMinimum(t *testing.T) {
	// Median 0.5% times the dominance factor is 2.5%, below the 3% floor;
	// the floor applies, so a child sitting right at 3% still counts as
	// dominant while anything below it does not.
	items := []Item{
		{Name: "a", Size: 100, SubtreeAllocatedPct: 3},
		{Name: "b", Size: 90, SubtreeAllocatedPct: 0.5},
		{Name: "c", Size: 80, SubtreeAllocatedPct: 0.5},
	}
	res := Sort(items, ColumnSize, Descending)
	if res.FirstNonDominantRow != 1 {
		t.Errorf("FirstNonDominantRow = %d, want 1", res.FirstNonDominantRow)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
