package diskcache

import (
	"bytes"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/arcfs/diskmap/internal/tree"
)

func mkFile(tr *tree.Tree, parent tree.NodeID, name string, size int64) tree.NodeID {
	id := tr.NewFile(tree.FileAttrs{
		Name:          name,
		Type:          tree.TypeFile,
		Mode:          0644,
		Links:         1,
		ByteSize:      size,
		AllocatedSize: size,
		Blocks:        size / 512,
		Mtime:         time.Unix(1700000000, 0),
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
	root := mkDir(tr, tr.Root(), "/home/user")
	mkFile(tr, root, "a.txt", 1024)
	mkFile(tr, root, "b.txt", 2048)
	sub := mkDir(tr, root, "sub")
	mkFile(tr, sub, "c.txt", 4096)

	tr.FinalizeLocal(sub)
	tr.SetReadState(sub, tree.StateFinished)
	tr.FinalizeLocal(root)
	tr.SetReadState(root, tree.StateFinished)
	return tr, root
}

func TestWriteProducesGzipHeader(t *testing.T) {
	tr, root := buildTree(t)
	var buf bytes.Buffer
	if err := Write(&buf, tr, root); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty output")
	}
	// gzip magic bytes.
	if buf.Bytes()[0] != 0x1f || buf.Bytes()[1] != 0x8b {
		t.Errorf("expected gzip magic bytes, got %x", buf.Bytes()[:2])
	}
}

func TestRoundTripPreservesStructure(t *testing.T) {
	tr, root := buildTree(t)
	var buf bytes.Buffer
	if err := Write(&buf, tr, root); err != nil {
		t.Fatalf("Write: %v", err)
	}

	tr2 := tree.NewTree()
	newRoot, err := Read(&buf, tr2, tr2.Root())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if newRoot == tree.InvalidNodeID {
		t.Fatalf("expected a valid root node")
	}

	if tr2.TotalItems(newRoot) != tr.TotalItems(root) {
		t.Errorf("total_items mismatch: got %d, want %d", tr2.TotalItems(newRoot), tr.TotalItems(root))
	}
	if tr2.TotalFiles(newRoot) != tr.TotalFiles(root) {
		t.Errorf("total_files mismatch: got %d, want %d", tr2.TotalFiles(newRoot), tr.TotalFiles(root))
	}
	if tr2.TotalSize(newRoot) != tr.TotalSize(root) {
		t.Errorf("total_size mismatch: got %d, want %d", tr2.TotalSize(newRoot), tr.TotalSize(root))
	}
}

func TestReadRejectsNonGzipStream(t *testing.T) {
	tr2 := tree.NewTree()
	_, err := Read(bytes.NewReader([]byte("not gzip at all")), tr2, tr2.Root())
	if err == nil {
		t.Errorf("expected an error reading a non-gzip stream")
	}
}

func TestReadRejectsMissingHeader(t *testing.T) {
	tr, root := buildTree(t)
	var buf bytes.Buffer
	if err := Write(&buf, tr, root); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Corrupt the header by re-gzipping arbitrary content instead.
	var bad bytes.Buffer
	gz := gzip.NewWriter(&bad)
	gz.Write([]byte("not a cache header\nsome line\n"))
	gz.Close()

	tr2 := tree.NewTree()
	if _, err := Read(&bad, tr2, tr2.Root()); err == nil {
		t.Errorf("expected an error for a missing cache header")
	}
}

func TestFormatAndParseSizeRoundTrip(t *testing.T) {
	cases := []int64{0, 512, 1024, 1 << 20, 1<<20 + 1, 3 << 30}
	for _, n := range cases {
		s := formatSize(n)
		got, err := parseSize(s)
		if err != nil {
			t.Fatalf("parseSize(%q): %v", s, err)
		}
		if got != n {
			t.Errorf("formatSize/parseSize round trip for %d: got %d via %q", n, got, s)
		}
	}
}
