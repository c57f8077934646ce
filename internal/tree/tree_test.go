package tree

import (
	"testing"
	"time"
)

func mkFile(tr *Tree, parent NodeID, name string, size int64) NodeID {
	id := tr.NewFile(FileAttrs{
		Name:          name,
		Type:          TypeFile,
		Mode:          0644,
		Links:         1,
		ByteSize:      size,
		AllocatedSize: size,
		Blocks:        size / 512,
		Mtime:         time.Unix(1000, 0),
	})
	tr.InsertChild(parent, id)
	return id
}

func mkDir(tr *Tree, parent NodeID, name string) NodeID {
	id := tr.NewDir(name, time.Unix(1000, 0), true)
	tr.InsertChild(parent, id)
	return id
}

// buildS1 constructs the S1 fixture from the "basic accumulation" scenario:
// root/{a.txt: 10, b.txt: 20, s/{c.txt: 70}}, with no filters applied.
func buildS1(t *testing.T) (*Tree, NodeID) {
	t.Helper()
	tr := NewTree()
	root := mkDir(tr, tr.Root(), "/root")
	mkFile(tr, root, "a.txt", 10)
	mkFile(tr, root, "b.txt", 20)
	s := mkDir(tr, root, "s")
	mkFile(tr, s, "c.txt", 70)

	tr.FinalizeLocal(s)
	tr.FinalizeLocal(root)
	return tr, root
}

func TestBasicAccumulation(t *testing.T) {
	tr, root := buildS1(t)

	if got := tr.TotalSize(root); got != 100 {
		t.Errorf("TotalSize(root) = %d, want 100", got)
	}
	if got := tr.TotalItems(root); got != 4 {
		t.Errorf("TotalItems(root) = %d, want 4", got)
	}
	if got := tr.TotalFiles(root); got != 3 {
		t.Errorf("TotalFiles(root) = %d, want 3", got)
	}
	if got := tr.TotalSubdirs(root); got != 1 {
		t.Errorf("TotalSubdirs(root) = %d, want 1", got)
	}
	if got := tr.TotalIgnoredItems(root); got != 0 {
		t.Errorf("TotalIgnoredItems(root) = %d, want 0", got)
	}
	if got := tr.TotalUnignoredItems(root); got != 4 {
		t.Errorf("TotalUnignoredItems(root) = %d, want 4", got)
	}

	// s had no real subdir children and no attic, so its dot entry should
	// have been flattened: c.txt hangs directly off s now.
	if tr.DotEntry(s(tr, root)) != InvalidNodeID {
		t.Errorf("expected s's dot entry to be flattened away")
	}
}

// s resolves the "s" child of root by name, to avoid threading extra NodeIDs
// through the fixture builder.
func s(tr *Tree, root NodeID) NodeID {
	for c := tr.FirstChild(root); c != InvalidNodeID; c = tr.NextSibling(c) {
		if tr.Name(c) == "s" {
			return c
		}
	}
	return InvalidNodeID
}

func TestIgnoreCascade(t *testing.T) {
	tr := NewTree()
	root := mkDir(tr, tr.Root(), "/root")

	a := tr.NewFile(FileAttrs{Name: "a.txt", Type: TypeFile, ByteSize: 10, Links: 1})
	b := tr.NewFile(FileAttrs{Name: "b.txt", Type: TypeFile, ByteSize: 20, Links: 1})
	tr.AddToAttic(root, a)
	tr.AddToAttic(root, b)

	sID := mkDir(tr, root, "s")
	c := tr.NewFile(FileAttrs{Name: "c.txt", Type: TypeFile, ByteSize: 70, Links: 1})
	tr.AddToAttic(sID, c)

	tr.FinalizeLocal(sID)
	tr.FinalizeLocal(root)

	if !tr.IsIgnored(sID) {
		t.Errorf("expected s to become ignored via cascade")
	}
	if !tr.IsIgnored(root) {
		t.Errorf("expected root to become ignored via cascade")
	}
	if got := tr.TotalUnignoredItems(root); got != 0 {
		t.Errorf("TotalUnignoredItems(root) = %d, want 0", got)
	}
	if got := tr.TotalIgnoredItems(root); got != 3 {
		t.Errorf("TotalIgnoredItems(root) = %d, want 3 (a.txt, b.txt, c.txt)", got)
	}
}

func TestIgnoreCascadePartial(t *testing.T) {
	// One ignored file alongside an unignored one: the parent must not
	// become ignored, since total_unignored_items stays positive.
	tr := NewTree()
	root := mkDir(tr, tr.Root(), "/root")
	mkFile(tr, root, "keep.txt", 5)

	ignored := tr.NewFile(FileAttrs{Name: "junk.o", Type: TypeFile, ByteSize: 50, Links: 1})
	tr.AddToAttic(root, ignored)

	tr.FinalizeLocal(root)

	if tr.IsIgnored(root) {
		t.Errorf("root should not become ignored while it still has unignored content")
	}
	if got := tr.TotalUnignoredItems(root); got != 1 {
		t.Errorf("TotalUnignoredItems(root) = %d, want 1", got)
	}
	if got := tr.TotalIgnoredItems(root); got != 1 {
		t.Errorf("TotalIgnoredItems(root) = %d, want 1", got)
	}
}

func TestHardLinkAccounting(t *testing.T) {
	tr := NewTree()
	root := mkDir(tr, tr.Root(), "/root")
	id := tr.NewFile(FileAttrs{
		Name: "linked", Type: TypeFile, ByteSize: 100, AllocatedSize: 100, Links: 4,
	})
	tr.InsertChild(root, id)

	n := tr.Node(id)
	if got := n.Size(tr); got != 25 {
		t.Errorf("Size() = %d, want 25 (100/4 links)", got)
	}

	tr.SetIgnoreHardLinks(true)
	if got := n.Size(tr); got != 100 {
		t.Errorf("Size() with ignoreHardLinks = %d, want 100", got)
	}
}

func TestDestroyInvalidatesNodeID(t *testing.T) {
	tr := NewTree()
	root := mkDir(tr, tr.Root(), "/root")
	id := mkFile(tr, root, "gone.txt", 1)

	tr.Destroy(id)

	if tr.Node(id) != nil {
		t.Errorf("Node(id) should be nil after Destroy")
	}
	if got := tr.TotalItems(root); got != 0 {
		t.Errorf("TotalItems(root) after destroy = %d, want 0", got)
	}
}

func TestLocateRoundTrip(t *testing.T) {
	tr, root := buildS1(t)
	top := tr.Toplevel()
	if top != root {
		t.Fatalf("Toplevel() = %v, want %v", top, root)
	}

	sID := s(tr, root)
	url := tr.URL(sID)
	found := tr.Locate(top, url)
	if found != sID {
		t.Errorf("Locate(%q) = %v, want %v", url, found, sID)
	}

	cURL := tr.URL(tr.FirstChild(sID))
	if found := tr.Locate(top, cURL); found == InvalidNodeID {
		t.Errorf("Locate(%q) failed to find c.txt", cURL)
	}
}

func TestDirectChildrenCountExcludesAttic(t *testing.T) {
	tr := NewTree()
	root := mkDir(tr, tr.Root(), "/root")
	mkFile(tr, root, "a.txt", 1)
	ignored := tr.NewFile(FileAttrs{Name: "b.junk", Type: TypeFile, ByteSize: 1, Links: 1})
	tr.AddToAttic(root, ignored)

	// root has an eager dot entry, so direct_children_count is 1 (the dot
	// entry itself); the attic never counts toward it.
	if got := tr.DirectChildrenCount(root); got != 1 {
		t.Errorf("DirectChildrenCount(root) = %d, want 1", got)
	}
}
