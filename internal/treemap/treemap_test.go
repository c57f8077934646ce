package treemap

import (
	"testing"
	"time"

	"github.com/arcfs/diskmap/internal/categorizer"
	"github.com/arcfs/diskmap/internal/tree"
)

func mkFile(tr *tree.Tree, parent tree.NodeID, name string, size int64) tree.NodeID {
	id := tr.NewFile(tree.FileAttrs{
		Name: name, Type: tree.TypeFile, Mode: 0644, Links: 1,
		ByteSize: size, AllocatedSize: size, Mtime: time.Unix(1700000000, 0),
	})
	tr.InsertChild(parent, id)
	return id
}

func mkDir(tr *tree.Tree, parent tree.NodeID, name string) tree.NodeID {
	id := tr.NewDir(name, time.Unix(1700000000, 0), true)
	tr.InsertChild(parent, id)
	return id
}

func buildTree(t *testing.T) (*tree.Tree, tree.NodeID) {
	t.Helper()
	tr := tree.NewTree()
	top := mkDir(tr, tr.Root(), "/data")
	mkFile(tr, top, "big.bin", 8000)
	mkFile(tr, top, "small.txt", 200)
	sub := mkDir(tr, top, "sub")
	mkFile(tr, sub, "c.txt", 4096)
	tr.FinalizeLocal(sub)
	tr.SetReadState(sub, tree.StateFinished)
	tr.FinalizeLocal(top)
	tr.SetReadState(top, tree.StateFinished)
	return tr, top
}

func countLeaves(tile *Tile) int {
	if tile == nil {
		return 0
	}
	if tile.Leaf {
		return 1
	}
	n := 0
	for _, c := range tile.Children {
		n += countLeaves(c)
	}
	return n
}

func TestSquarifiedLayoutCoversRectAndHasLeaves(t *testing.T) {
	tr, top := buildTree(t)
	rect := Rect{X: 0, Y: 0, W: 400, H: 300}
	tile := Layout(tr, top, rect, Options{Mode: ModeSquarified, Categorizer: categorizer.NewDefault()})
	if tile == nil {
		t.Fatal("Layout returned nil for non-empty directory")
	}
	if tile.Rect != rect {
		t.Errorf("root tile rect = %+v, want %+v", tile.Rect, rect)
	}
	if got := countLeaves(tile); got == 0 {
		t.Errorf("expected at least one leaf tile, got 0")
	}
}

func TestSliceAndDiceLayoutProducesOneTilePerChild(t *testing.T) {
	tr, top := buildTree(t)
	rect := Rect{X: 0, Y: 0, W: 400, H: 300}
	tile := Layout(tr, top, rect, Options{Mode: ModeSliceAndDice})
	if tile == nil {
		t.Fatal("Layout returned nil")
	}
	// top has: sub (dir), dot entry (big.bin + small.txt) = 2 children.
	if got := len(tile.Children); got != 2 {
		t.Errorf("len(Children) = %d, want 2", got)
	}
}

func TestLayoutReturnsNilForEmptyDirectory(t *testing.T) {
	tr := tree.NewTree()
	empty := tr.NewDir("/empty", time.Unix(1700000000, 0), false)
	tr.InsertChild(tr.Root(), empty)

	tile := Layout(tr, empty, Rect{W: 100, H: 100}, Options{})
	if tile != nil {
		t.Errorf("expected nil tile for empty directory, got %+v", tile)
	}
}

func TestLayoutDropsSubtreesBelowMinTileSize(t *testing.T) {
	tr, top := buildTree(t)
	rect := Rect{X: 0, Y: 0, W: 10, H: 10}
	tile := Layout(tr, top, rect, Options{Mode: ModeSquarified, MinTileSize: 50})
	if tile == nil {
		t.Fatal("Layout returned nil")
	}
	if len(tile.Children) != 0 {
		t.Errorf("expected all children dropped below min tile size, got %d", len(tile.Children))
	}
}
