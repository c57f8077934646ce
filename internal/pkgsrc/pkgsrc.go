// Package pkgsrc implements the package manager collaborator (spec.md
// §6.3): a small interface the core consumes to learn what packages are
// installed and what files belong to them, plus a reader that synthesizes
// PkgInfo subtrees from that data. No real package-manager process
// integration is implemented — spec.md §1 explicitly keeps that out of
// scope; Source is satisfied by whatever adapter a caller wires in.
package pkgsrc

import (
	"os"
	"sort"

	"github.com/arcfs/diskmap/internal/scan"
	"github.com/arcfs/diskmap/internal/tree"
)

// Record is one installed package as reported by list_installed.
type Record struct {
	Name    string
	Version string
	Arch    string
	Manager string
}

// Source is the two-entry-point collaborator spec.md §6.3 describes.
type Source interface {
	// ListInstalled returns every installed package record.
	ListInstalled() ([]Record, error)
	// ListFilesOf returns the absolute paths belonging to pkg.
	ListFilesOf(pkg Record) ([]string, error)
}

// StubSource is an in-memory Source for tests and offline pipelines: no
// package manager is ever invoked.
type StubSource struct {
	Installed []Record
	Files     map[Record][]string
}

func (s *StubSource) ListInstalled() ([]Record, error) { return s.Installed, nil }

func (s *StubSource) ListFilesOf(pkg Record) ([]string, error) { return s.Files[pkg], nil }

// pkgInfoName returns the PkgInfo name for a record, disambiguated against
// the rest of the installed set per §6.3 "mark multi-version or multi-arch
// when names collide": same name + different version gets the version
// appended, same name + version + different arch gets the arch appended
// too, grounded on original_source's PkgInfo collision rule.
func pkgInfoName(rec Record, all []Record) string {
	multiVersion, multiArch := false, false
	for _, other := range all {
		if other.Name != rec.Name {
			continue
		}
		if other.Version != rec.Version {
			multiVersion = true
		}
		if other.Version == rec.Version && other.Arch != rec.Arch {
			multiArch = true
		}
	}
	name := rec.Name
	if multiVersion {
		name += "-" + rec.Version
	}
	if multiArch {
		name += "." + rec.Arch
	}
	return name
}

// BuildPkgInfos synthesizes one PkgInfo node per installed package (§3.1,
// §6.3), inserted as direct children of root, and returns their ids in
// list_installed order. Nodes are left in StateQueued; a ReadJob populates
// each one's children on demand.
func BuildPkgInfos(t *tree.Tree, root tree.NodeID, src Source) ([]tree.NodeID, error) {
	records, err := src.ListInstalled()
	if err != nil {
		return nil, err
	}

	ids := make([]tree.NodeID, 0, len(records))
	for _, rec := range records {
		id := t.NewPkgDir(pkgInfoName(rec, records))
		t.InsertChild(root, id)
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadJob populates one PkgInfo's FileInfo children from its package's
// file list. list_files_of "may be invoked in parallel sub-processes ...
// with a configurable cap" (§6.3); ReadJob runs it on a worker goroutine
// bounded by a shared semaphore and polls for the result once per Step so
// it fits the scan engine's one-job-per-tick contract without blocking the
// tick loop.
type ReadJob struct {
	pkgID tree.NodeID
	rec   Record
	src   Source
	sem   chan struct{}

	started bool
	result  chan pkgResult
}

type pkgResult struct {
	files []string
	err   error
}

// NewReadJob creates a job that reads rec's file list into pkgID's
// children when stepped. sem bounds how many ReadJobs may have their
// ListFilesOf call in flight concurrently (the "configurable cap");
// pass a channel sized to the cap, shared across every ReadJob in a scan.
func NewReadJob(pkgID tree.NodeID, rec Record, src Source, sem chan struct{}) *ReadJob {
	return &ReadJob{pkgID: pkgID, rec: rec, src: src, sem: sem, result: make(chan pkgResult, 1)}
}

func (j *ReadJob) DirID() tree.NodeID { return j.pkgID }

// Step implements scan.Job. The first call dispatches ListFilesOf to a
// worker goroutine once the semaphore admits it; subsequent calls poll the
// result channel non-blockingly, so a slow package manager query never
// stalls the single-writer tick loop.
func (j *ReadJob) Step(eng *scan.Engine) (bool, error) {
	if !j.started {
		select {
		case j.sem <- struct{}{}:
		default:
			return false, nil
		}
		j.started = true
		go func() {
			defer func() { <-j.sem }()
			files, err := j.src.ListFilesOf(j.rec)
			j.result <- pkgResult{files: files, err: err}
		}()
		return false, nil
	}

	select {
	case res := <-j.result:
		if res.err != nil {
			return true, res.err
		}
		j.populate(eng.Tree, res.files)
		return true, nil
	default:
		return false, nil
	}
}

func (j *ReadJob) populate(t *tree.Tree, files []string) {
	sort.Strings(files)
	for _, path := range files {
		info, err := os.Lstat(path)
		if err != nil {
			continue
		}
		fa := tree.FileAttrs{
			Name:          path,
			Type:          tree.TypeFile,
			Mode:          uint32(info.Mode().Perm()),
			Mtime:         info.ModTime(),
			ByteSize:      info.Size(),
			AllocatedSize: info.Size(),
			Links:         1,
		}
		id := t.NewFile(fa)
		t.InsertChild(j.pkgID, id)
	}
	t.SetReadState(j.pkgID, tree.StateFinished)
}

// Cap builds a semaphore channel enforcing the configurable parallelism
// cap spec.md §6.3 calls for across a batch of ReadJobs.
func Cap(n int) chan struct{} {
	if n <= 0 {
		n = 1
	}
	return make(chan struct{}, n)
}
