package scan

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/arcfs/diskmap/internal/diskcache"
	"github.com/arcfs/diskmap/internal/mount"
	"github.com/arcfs/diskmap/internal/tree"
)

// LocalDirReadJob reads one directory's immediate children from the live
// filesystem (§4.4's LocalDirReadJob, steps 1-5). It always finishes in a
// single Step call; directories it creates get their own job enqueued (or
// are left on-request-only per the crossing policy), which is what spreads
// a scan across many ticks.
type LocalDirReadJob struct {
	dirID tree.NodeID
	path  string
}

// NewLocalDirReadJob creates a job to read dirID, whose absolute filesystem
// path is path.
func NewLocalDirReadJob(dirID tree.NodeID, path string) *LocalDirReadJob {
	return &LocalDirReadJob{dirID: dirID, path: path}
}

func (j *LocalDirReadJob) DirID() tree.NodeID { return j.dirID }

func (j *LocalDirReadJob) Step(eng *Engine) (bool, error) {
	eng.Tree.SetReadState(j.dirID, tree.StateReading)

	// Step 1: access probe.
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsPermission(err) {
			eng.Tree.SetReadError(j.dirID, tree.StatePermissionDenied, err.Error())
		} else {
			eng.Tree.SetReadError(j.dirID, tree.StateError, err.Error())
		}
		return true, nil
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		eng.Tree.SetReadError(j.dirID, tree.StateError, err.Error())
		return true, nil
	}

	// Step 2/3: inode-ordered stat pass.
	entries := make([]dirent, 0, len(names))
	for _, name := range names {
		full := filepath.Join(j.path, name)
		var st unix.Stat_t
		if err := unix.Lstat(full, &st); err != nil {
			logrus.WithField("component", "scan").
				WithField("path", full).WithError(err).
				Warn("lstat failed, skipping entry")
			continue
		}
		entries = append(entries, dirent{name: name, st: st})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].st.Ino < entries[b].st.Ino })

	var nonDirChildren []string
	replaced := false
	for _, de := range entries {
		if de.name == CacheFileName {
			if j.tryReplaceFromCache(eng, de) {
				replaced = true
				break
			}
			continue
		}
		name := j.processEntry(eng, de)
		if name != "" {
			nonDirChildren = append(nonDirChildren, name)
		}
	}
	if replaced {
		return true, nil
	}

	// Step 4: file-child exclude rules.
	if eng.Config.Filters != nil {
		for _, name := range nonDirChildren {
			full := filepath.Join(j.path, name)
			if eng.Config.Filters.MatchesFileChildRule(full, name) {
				eng.Tree.WipeChildren(j.dirID)
				eng.Tree.SetExcluded(j.dirID)
				break
			}
		}
	}

	// Step 5: finalize.
	eng.Tree.FinalizeLocal(j.dirID)
	if eng.Tree.ReadState(j.dirID) != tree.StateError && eng.Tree.ReadState(j.dirID) != tree.StatePermissionDenied {
		eng.Tree.SetReadState(j.dirID, tree.StateFinished)
	}
	return true, nil
}

type dirent struct {
	name string
	st   unix.Stat_t
}

// processEntry stats one non-cache-file entry and inserts the corresponding
// node, returning its name when it was a non-directory child (for the
// file-child rule pass) or "" for a directory child.
func (j *LocalDirReadJob) processEntry(eng *Engine, de dirent) string {
	full := filepath.Join(j.path, de.name)
	mode := os.FileMode(de.st.Mode & 0o777)
	switch de.st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		mode |= os.ModeDir
	case unix.S_IFLNK:
		mode |= os.ModeSymlink
	case unix.S_IFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFBLK:
		mode |= os.ModeDevice
	case unix.S_IFIFO:
		mode |= os.ModeNamedPipe
	case unix.S_IFSOCK:
		mode |= os.ModeSocket
	}

	if mode&os.ModeDir != 0 {
		j.addSubdir(eng, de, full)
		return ""
	}

	entryType := entryTypeOf(mode)
	links := int32(de.st.Nlink)
	if eng.isNTFSChild(j.dirID) && links > 1 {
		links = 1
		logrus.WithField("component", "scan").
			WithField("path", full).
			Warn("NTFS reports bogus hard-link count, forcing links=1")
	}

	if eng.Config.Filters != nil && eng.Config.Filters.ShouldIgnore(full, de.name, false) {
		fa := tree.FileAttrs{
			Name:          de.name,
			Type:          entryType,
			Mode:          uint32(mode.Perm()),
			UID:           de.st.Uid,
			GID:           de.st.Gid,
			Mtime:         statMtime(de.st),
			ByteSize:      de.st.Size,
			AllocatedSize: de.st.Blocks * 512,
			Blocks:        de.st.Blocks,
			Links:         links,
		}
		id := eng.Tree.NewFile(fa)
		eng.Tree.AddToAttic(j.dirID, id)
		return de.name
	}

	fa := tree.FileAttrs{
		Name:          de.name,
		Type:          entryType,
		Mode:          uint32(mode.Perm()),
		UID:           de.st.Uid,
		GID:           de.st.Gid,
		Mtime:         statMtime(de.st),
		ByteSize:      de.st.Size,
		AllocatedSize: de.st.Blocks * 512,
		Blocks:        de.st.Blocks,
		Links:         links,
	}
	id := eng.Tree.NewFile(fa)
	eng.Tree.InsertChild(j.dirID, id)
	return de.name
}

func (j *LocalDirReadJob) addSubdir(eng *Engine, de dirent, full string) {
	id := eng.Tree.NewDir(de.name, statMtime(de.st), true)
	eng.Tree.SetDirStatAttrs(id, uint32(os.FileMode(de.st.Mode).Perm()), de.st.Uid, de.st.Gid, de.st.Size, de.st.Blocks*512, de.st.Blocks)

	if eng.Config.Filters != nil && eng.Config.Filters.ShouldIgnore(full, de.name, true) {
		eng.Tree.AddToAttic(j.dirID, id)
		eng.Tree.SetReadState(id, tree.StateFinished)
		return
	}

	eng.Tree.InsertChild(j.dirID, id)

	crosses, crossingPoint := eng.crossesFilesystem(j.path, full)
	if crosses {
		eng.Tree.SetMountPoint(id, true)
		if eng.Config.CrossFilesystems && crossingPoint != nil && crossingPoint.IsNormalMountPoint() && !crossingPoint.IsNetworkMount() {
			eng.Enqueue(NewLocalDirReadJob(id, full))
			eng.Tree.AddPendingReadJobs(j.dirID, 1)
			return
		}
		eng.Tree.SetReadState(id, tree.StateOnRequestOnly)
		return
	}

	eng.Enqueue(NewLocalDirReadJob(id, full))
	eng.Tree.AddPendingReadJobs(j.dirID, 1)
}

// crossesFilesystem reports whether child's device differs from parent's,
// and if so the mount point table entry that owns child (§4.4 "Filesystem
// crossing").
func (eng *Engine) crossesFilesystem(parentPath, childPath string) (bool, *mount.Point) {
	if eng.Config.Mounts == nil {
		return false, nil
	}
	parentDev, err := deviceNumber(parentPath)
	if err != nil {
		return false, nil
	}
	childDev, err := deviceNumber(childPath)
	if err != nil || childDev == parentDev {
		return false, nil
	}
	return true, eng.Config.Mounts.FindNearestMountPoint(childPath)
}

// isNTFSChild reports whether dirID's own mount point is NTFS, for the
// bogus-link-count workaround (§4.4 step 3).
func (eng *Engine) isNTFSChild(dirID tree.NodeID) bool {
	if eng.Config.Mounts == nil {
		return false
	}
	p := eng.Config.Mounts.FindNearestMountPoint(eng.Tree.URL(dirID))
	return p != nil && p.IsNtfs()
}

// tryReplaceFromCache implements step 3's cache-file auto-discovery: peek
// the cache's first directory record, and if it names this same directory,
// wipe D and re-enqueue its subtree as a CacheReadJob.
func (j *LocalDirReadJob) tryReplaceFromCache(eng *Engine, de dirent) bool {
	full := filepath.Join(j.path, de.name)
	f, err := os.Open(full)
	if err != nil {
		return false
	}
	peekPath, err := diskcache.PeekRootPath(f)
	f.Close()
	if err != nil {
		return false
	}
	if peekPath != eng.Tree.URL(j.dirID) {
		return false
	}

	f2, err := os.Open(full)
	if err != nil {
		return false
	}

	isToplevel := eng.Tree.Parent(j.dirID) == eng.Tree.Root()

	var startID tree.NodeID
	if isToplevel {
		// Replacing the toplevel clears the whole tree first (§4.4 step 3).
		eng.Tree.Clear()
		startID = eng.Tree.Root()
	} else {
		startID = eng.Tree.Parent(j.dirID)
		eng.cancelQueuedUnder(j.dirID, j)
		eng.Tree.Destroy(j.dirID)
	}

	eng.Enqueue(NewCacheReadJob(f2, eng.Tree, startID))
	return true
}

func deviceNumber(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, errors.Wrapf(err, "scan: stat %s", path)
	}
	return uint64(st.Dev), nil
}

func statMtime(st unix.Stat_t) time.Time {
	return time.Unix(int64(st.Mtim.Sec), int64(st.Mtim.Nsec))
}

func entryTypeOf(mode os.FileMode) tree.EntryType {
	switch {
	case mode&os.ModeSymlink != 0:
		return tree.TypeSymlink
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		return tree.TypeCharDev
	case mode&os.ModeDevice != 0:
		return tree.TypeBlockDev
	case mode&os.ModeNamedPipe != 0:
		return tree.TypeFifo
	case mode&os.ModeSocket != 0:
		return tree.TypeSocket
	case mode.IsRegular():
		return tree.TypeFile
	default:
		return tree.TypeOther
	}
}
