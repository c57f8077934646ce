package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arcfs/diskmap/internal/diskcache"
	"github.com/arcfs/diskmap/internal/filter"
	"github.com/arcfs/diskmap/internal/tree"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func newEngine(t *testing.T, cfg Config) (*Engine, *tree.Tree) {
	t.Helper()
	tr := tree.NewTree()
	return NewEngine(tr, cfg), tr
}

func runToCompletion(t *testing.T, eng *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()
	select {
	case ev := <-eng.Events():
		if ev.Kind != EventFinished {
			t.Fatalf("expected EventFinished, got %v", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not finish in time")
	}
	<-done
}

func TestLocalDirReadJobBuildsTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), 100)
	writeFile(t, filepath.Join(root, "b.txt"), 200)
	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "sub", "c.txt"), 300)

	eng, tr := newEngine(t, Config{})
	topID := tr.NewDir(root, time.Now(), true)
	tr.InsertChild(tr.Root(), topID)
	eng.Enqueue(NewLocalDirReadJob(topID, root))

	runToCompletion(t, eng)

	if got, want := tr.TotalFiles(topID), int32(3); got != want {
		t.Errorf("TotalFiles = %d, want %d", got, want)
	}
	if got, want := tr.TotalSubdirs(topID), int32(1); got != want {
		t.Errorf("TotalSubdirs = %d, want %d", got, want)
	}
	subInfo, err := os.Lstat(filepath.Join(root, "sub"))
	if err != nil {
		t.Fatal(err)
	}
	// TotalSize counts the subdirectory's own st_size as well as the files.
	if got, want := tr.TotalSize(topID), 600+subInfo.Size(); got != want {
		t.Errorf("TotalSize = %d, want %d", got, want)
	}
	if tr.ReadState(topID) != tree.StateFinished {
		t.Errorf("ReadState = %v, want Finished", tr.ReadState(topID))
	}
}

func TestLocalDirReadJobAppliesIgnoreRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.txt"), 10)
	writeFile(t, filepath.Join(root, "skip.tmp"), 20)

	fs := filter.NewSet()
	fs.AddSuffix(".tmp")

	eng, tr := newEngine(t, Config{Filters: fs})
	topID := tr.NewDir(root, time.Now(), true)
	tr.InsertChild(tr.Root(), topID)
	eng.Enqueue(NewLocalDirReadJob(topID, root))

	runToCompletion(t, eng)

	if got, want := tr.TotalUnignoredItems(topID), int32(1); got != want {
		t.Errorf("TotalUnignoredItems = %d, want %d", got, want)
	}
	if got, want := tr.TotalIgnoredItems(topID), int32(1); got != want {
		t.Errorf("TotalIgnoredItems = %d, want %d", got, want)
	}
}

func TestLocalDirReadJobReportsPermissionDenied(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "locked")
	if err := os.Mkdir(sub, 0000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(sub, 0755)

	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits have no effect")
	}

	eng, tr := newEngine(t, Config{})
	dirID := tr.NewDir(sub, time.Now(), true)
	tr.InsertChild(tr.Root(), dirID)
	eng.Enqueue(NewLocalDirReadJob(dirID, sub))

	runToCompletion(t, eng)

	if tr.ReadState(dirID) != tree.StatePermissionDenied {
		t.Errorf("ReadState = %v, want PermissionDenied", tr.ReadState(dirID))
	}
}

func TestCacheReadJobYieldsAcrossSteps(t *testing.T) {
	src := tree.NewTree()
	top := src.NewDir("/scanned/root", time.Unix(1700000000, 0), true)
	src.InsertChild(src.Root(), top)
	for i := 0; i < 2500; i++ {
		id := src.NewFile(tree.FileAttrs{
			Name:          "f",
			Type:          tree.TypeFile,
			Mode:          0644,
			Links:         1,
			ByteSize:      10,
			AllocatedSize: 10,
			Mtime:         time.Unix(1700000000, 0),
		})
		src.InsertChild(top, id)
	}
	src.FinalizeLocal(top)
	src.SetReadState(top, tree.StateFinished)

	dir := t.TempDir()
	cachePath := filepath.Join(dir, "big.cache.gz")
	f, err := os.Create(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := diskcache.Write(f, src, top); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f2, err := os.Open(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	dst := tree.NewTree()
	job := NewCacheReadJob(f2, dst, dst.Root())

	steps := 0
	for {
		done, err := job.Step(&Engine{Tree: dst})
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		steps++
		if done {
			break
		}
		if steps > 10 {
			t.Fatal("too many steps, reader never finished")
		}
	}
	if steps < 2 {
		t.Errorf("expected at least 2 Step calls for 2500 lines at 1000/tick, got %d", steps)
	}
	if got, want := dst.TotalFiles(job.DirID()), int32(2500); got != want {
		t.Errorf("TotalFiles after cache read = %d, want %d", got, want)
	}
}
