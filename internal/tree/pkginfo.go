package tree

import "time"

// NewPkgDir allocates a PkgInfo node: a DirInfo whose name is "Pkg:/<name>"
// and whose children are synthesized from a package manager's file list
// (§3.1, §6.3). PkgInfo nodes never get an eager dot entry — their children
// are files added directly by the reader that populates them.
func (t *Tree) NewPkgDir(pkgName string) NodeID {
	id := t.alloc(Node{
		kind:        KindPkg,
		name:        "Pkg:/" + pkgName,
		entryType:   TypeDir,
		mtime:       time.Time{},
		parent:      InvalidNodeID,
		nextSibling: InvalidNodeID,
		dir:         newDirExt(),
	})
	return id
}
