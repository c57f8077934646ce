package pkgsrc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arcfs/diskmap/internal/scan"
	"github.com/arcfs/diskmap/internal/tree"
)

func TestBuildPkgInfosNamesDisambiguateCollisions(t *testing.T) {
	tr := tree.NewTree()
	src := &StubSource{
		Installed: []Record{
			{Name: "libfoo", Version: "1.0", Arch: "amd64", Manager: "dpkg"},
			{Name: "libfoo", Version: "2.0", Arch: "amd64", Manager: "dpkg"},
			{Name: "bar", Version: "1.0", Arch: "amd64", Manager: "dpkg"},
		},
	}

	ids, err := BuildPkgInfos(tr, tr.Root(), src)
	if err != nil {
		t.Fatalf("BuildPkgInfos: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("len(ids) = %d, want 3", len(ids))
	}
	names := map[string]bool{}
	for _, id := range ids {
		names[tr.Name(id)] = true
	}
	if !names["Pkg:/libfoo-1.0"] || !names["Pkg:/libfoo-2.0"] {
		t.Errorf("expected version-disambiguated names, got %v", names)
	}
	if !names["Pkg:/bar"] {
		t.Errorf("expected unambiguous package name kept plain, got %v", names)
	}
}

func TestReadJobPopulatesFilesAndFinishes(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "a.txt")
	f2 := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(f1, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f2, []byte("world!!"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := tree.NewTree()
	rec := Record{Name: "demo", Version: "1.0", Arch: "amd64", Manager: "dpkg"}
	src := &StubSource{
		Installed: []Record{rec},
		Files:     map[Record][]string{rec: {f1, f2}},
	}
	ids, err := BuildPkgInfos(tr, tr.Root(), src)
	if err != nil {
		t.Fatalf("BuildPkgInfos: %v", err)
	}
	pkgID := ids[0]

	eng := scan.NewEngine(tr, scan.Config{})
	job := NewReadJob(pkgID, rec, src, Cap(2))

	deadline := time.After(2 * time.Second)
	for {
		done, err := job.Step(eng)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("ReadJob never finished")
		default:
		}
	}

	if got := tr.TotalFiles(pkgID); got != 2 {
		t.Errorf("TotalFiles = %d, want 2", got)
	}
	if tr.ReadState(pkgID) != tree.StateFinished {
		t.Errorf("ReadState = %v, want StateFinished", tr.ReadState(pkgID))
	}
}

func TestCapDefaultsToOneForNonPositive(t *testing.T) {
	if n := cap(Cap(0)); n != 1 {
		t.Errorf("cap(Cap(0)) = %d, want 1", n)
	}
	if n := cap(Cap(-5)); n != 1 {
		t.Errorf("cap(Cap(-5)) = %d, want 1", n)
	}
}
