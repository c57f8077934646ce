package fileset

import (
	"testing"
	"time"

	"github.com/arcfs/diskmap/internal/tree"
)

func buildTree(t *testing.T) (*tree.Tree, tree.NodeID, tree.NodeID, tree.NodeID) {
	t.Helper()
	tr := tree.NewTree()
	top := tr.NewDir("/home/user", time.Unix(1700000000, 0), true)
	tr.InsertChild(tr.Root(), top)
	sub := tr.NewDir("sub", time.Unix(1700000000, 0), true)
	tr.InsertChild(top, sub)
	leaf := tr.NewFile(tree.FileAttrs{
		Name: "a.txt", Type: tree.TypeFile, Mode: 0644, Links: 1,
		ByteSize: 10, AllocatedSize: 10, Mtime: time.Unix(1700000000, 0),
	})
	tr.InsertChild(sub, leaf)
	return tr, top, sub, leaf
}

func TestInvalidRemovedDropsDestroyedNodes(t *testing.T) {
	tr, top, sub, leaf := buildTree(t)
	tr.Destroy(leaf)

	s := New(top, sub, leaf).InvalidRemoved(tr)
	if len(s) != 2 {
		t.Fatalf("InvalidRemoved = %v, want 2 survivors", s)
	}
	for _, id := range s {
		if id == leaf {
			t.Fatalf("destroyed node %d survived InvalidRemoved", leaf)
		}
	}
}

func TestNormalizedDropsDescendantsOfSetMembers(t *testing.T) {
	tr, top, sub, leaf := buildTree(t)

	s := New(top, sub, leaf).Normalized(tr)
	if len(s) != 1 || s[0] != top {
		t.Fatalf("Normalized = %v, want [top]", s)
	}
}

func TestParentsSubstitutesRealDirectoryForPseudoDir(t *testing.T) {
	tr, top, sub, leaf := buildTree(t)
	_ = top

	s := New(leaf).Parents(tr)
	if len(s) != 1 || s[0] != sub {
		t.Fatalf("Parents = %v, want [sub]", s)
	}
}

func TestParentsDeduplicates(t *testing.T) {
	tr, _, sub, leaf := buildTree(t)
	leaf2 := tr.NewFile(tree.FileAttrs{
		Name: "b.txt", Type: tree.TypeFile, Mode: 0644, Links: 1,
		ByteSize: 5, AllocatedSize: 5, Mtime: time.Unix(1700000000, 0),
	})
	tr.InsertChild(sub, leaf2)

	s := New(leaf, leaf2).Parents(tr)
	if len(s) != 1 || s[0] != sub {
		t.Fatalf("Parents = %v, want single [sub]", s)
	}
}
