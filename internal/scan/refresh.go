package scan

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/arcfs/diskmap/internal/fileset"
	"github.com/arcfs/diskmap/internal/tree"
)

// Refresh implements §4.4's refresh semantics for a selection: normalize
// the input set, then for each surviving node stat its url; if it's gone,
// walk up until a surviving ancestor is found and refresh there instead.
// Refreshing a node whose parent is the tree's (invisible) root triggers a
// full rescan from the visible toplevel; otherwise the subtree is deleted
// and re-stated in place.
func (e *Engine) Refresh(ids fileset.Set) {
	for _, id := range fileset.Set(ids).InvalidRemoved(e.Tree).Normalized(e.Tree) {
		e.refreshOne(id)
	}
}

func (e *Engine) refreshOne(id tree.NodeID) {
	url := e.Tree.URL(id)
	for {
		if _, err := os.Lstat(url); err == nil {
			break
		}
		parent := e.Tree.Parent(id)
		if parent == tree.InvalidNodeID {
			return
		}
		id = parent
		url = e.Tree.URL(id)
	}

	var st unix.Stat_t
	if err := unix.Lstat(url, &st); err != nil {
		// Vanished between the two stats; leave the stale node, a future
		// refresh will catch it once the gone-ness is visible above.
		return
	}

	parent := e.Tree.Parent(id)
	toplevel := parent == e.Tree.Root()

	name := url
	if !toplevel {
		name = e.Tree.Name(id)
	}
	e.Tree.Destroy(id)

	fresh := e.Tree.NewDir(name, statMtime(st), true)
	e.Tree.SetDirStatAttrs(fresh, uint32(os.FileMode(st.Mode).Perm()), st.Uid, st.Gid, st.Size, st.Blocks*512, st.Blocks)
	e.Tree.InsertChild(parent, fresh)
	e.Enqueue(NewLocalDirReadJob(fresh, url))
}
