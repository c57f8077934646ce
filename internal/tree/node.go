// Package tree implements the in-memory file/directory graph: FileInfo/DirInfo
// nodes with pseudo-container children (dot entries, attics, package nodes),
// parent/sibling links, and lazily recomputed subtree summaries.
package tree

import (
	"os"
	"time"
)

// NodeID addresses a node inside a Tree's arena. The zero value is the ID of
// the tree's invisible root; use InvalidNodeID for "no node".
type NodeID int32

// InvalidNodeID is the sentinel for "no node".
const InvalidNodeID NodeID = -1

// Kind tags the variant a Node plays in the graph.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindDotEntry
	KindAttic
	KindPkg
)

// IsDir reports whether this kind carries children (Dir, DotEntry, Attic, Pkg).
func (k Kind) IsDir() bool {
	return k != KindFile
}

// ReadState is the lifecycle state of a directory's read job.
type ReadState uint8

const (
	StateQueued ReadState = iota
	StateReading
	StateFinished
	StateOnRequestOnly
	StateAborted
	StatePermissionDenied
	StateError
)

// String names a ReadState for logging and cache serialization.
func (s ReadState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateReading:
		return "reading"
	case StateFinished:
		return "finished"
	case StateOnRequestOnly:
		return "on-request-only"
	case StateAborted:
		return "aborted"
	case StatePermissionDenied:
		return "permission-denied"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// EntryType classifies what a FileInfo represents on disk. It is distinct
// from Kind, which is about the tree's own graph role (dir vs pseudo-dir);
// EntryType is about what fstatat said.
type EntryType uint8

const (
	TypeFile EntryType = iota
	TypeDir
	TypeSymlink
	TypeBlockDev
	TypeCharDev
	TypeFifo
	TypeSocket
	TypeOther
)

// dirExt holds the fields that only directories (and pseudo-dirs) carry.
// Keeping them on a side struct lets plain files stay small, the way the
// teacher's Entry keeps Children nil for files rather than paying for an
// empty slice header on every leaf.
type dirExt struct {
	firstChild NodeID
	dotEntry   NodeID
	attic      NodeID

	readState       ReadState
	pendingReadJobs int

	isMountPoint bool
	isExcluded   bool
	isFromCache  bool
	isLocked     bool

	summaryDirty bool

	totalSize           int64
	totalAllocatedSize  int64
	totalBlocks         int64
	totalItems          int32
	totalSubdirs        int32
	totalFiles          int32
	totalIgnoredItems   int32
	totalUnignoredItems int32
	directChildrenCount int32
	errSubdirCount      int32
	latestMtime         time.Time
	oldestFileMtime     time.Time

	sortCache sortCacheSlot
}

// Node is one entity in the tree: a FileInfo, or — when dir != nil — a
// DirInfo/DotEntry/Attic/PkgInfo. A Node is only ever reached by its NodeID
// through its owning Tree's arena; there are no raw pointers between nodes,
// so a destroyed node's ID simply stops resolving (see Tree.Destroy).
type Node struct {
	kind Kind
	live bool

	name string
	mode os.FileMode
	uid  uint32
	gid  uint32

	entryType EntryType
	mtime     time.Time

	byteSize      int64
	allocatedSize int64
	blocks        int64
	links         int32

	isSparse   bool
	isIgnored  bool
	errMessage string

	parent      NodeID
	nextSibling NodeID
	rowNumber   int

	dir *dirExt
}

// Name is the final path component (or, for the visible toplevel, the
// absolute path it was scanned from).
func (n *Node) Name() string { return n.name }

// IsDir reports whether this node owns children (directory or pseudo-dir).
func (n *Node) IsDir() bool { return n.kind.IsDir() }

// IsDotEntry reports whether this node is a directory's dot entry.
func (n *Node) IsDotEntry() bool { return n.kind == KindDotEntry }

// IsAttic reports whether this node is a directory's attic.
func (n *Node) IsAttic() bool { return n.kind == KindAttic }

// IsPseudoDir reports whether this node is a DotEntry or Attic.
func (n *Node) IsPseudoDir() bool { return n.kind == KindDotEntry || n.kind == KindAttic }

// IsPkg reports whether this node is a PkgInfo.
func (n *Node) IsPkg() bool { return n.kind == KindPkg }

// Mode returns the stored permission bits; the entry's type is held
// separately (see Tree.EntryType).
func (n *Node) Mode() os.FileMode { return n.mode }

// UID returns the owning user ID.
func (n *Node) UID() uint32 { return n.uid }

// GID returns the owning group ID.
func (n *Node) GID() uint32 { return n.gid }

// Blocks returns the raw 512-byte block count (un-hardlink-adjusted).
func (n *Node) Blocks() int64 { return n.blocks }

// ModTime returns the node's own modification time.
func (n *Node) ModTime() time.Time { return n.mtime }

// Links returns the hard-link count (forced to 1 on untrusted filesystems —
// see the NTFS workaround in internal/scan).
func (n *Node) Links() int32 { return n.links }

// ByteSize returns the raw, un-hardlink-adjusted byte size.
func (n *Node) ByteSize() int64 { return n.byteSize }

// IsSparse reports whether the file's allocation undershoots its byte size.
func (n *Node) IsSparse() bool { return n.isSparse }

// IsIgnored reports whether this node was routed to an attic, or is itself
// an attic, or was swept up by the ignored cascade (invariant 3/4, §4.1).
func (n *Node) IsIgnored() bool { return n.isIgnored }

// RowNumber returns this node's index in its parent's most recently built
// sort-cache result (invariant 4, §3.2). It is only meaningful immediately
// after a SortedChildren call for the (column, order) the caller cares
// about; a later mutation invalidates it without resetting the field.
func (n *Node) RowNumber() int { return n.rowNumber }

// EffectiveReadState returns the directory's read lifecycle state. For an
// Attic it delegates to the parent directory's state, per spec.md §9's
// resolution of the open question: if there is no parent, StateFinished is
// the base case rather than recursing unboundedly.
func (n *Node) EffectiveReadState(t *Tree) ReadState {
	if n.dir == nil {
		return StateFinished
	}
	if n.kind == KindAttic {
		if n.parent == InvalidNodeID {
			return StateFinished
		}
		parent := t.node(n.parent)
		if parent == nil {
			return StateFinished
		}
		return parent.EffectiveReadState(t)
	}
	return n.dir.readState
}

// Size returns the hard-link-adjusted size: a regular file with Links() > 1
// reports ByteSize()/Links() unless the tree is configured to ignore
// hard-link sharing (invariant 5, §3.2).
func (n *Node) Size(t *Tree) int64 {
	if n.kind == KindFile && n.links > 1 && !t.ignoreHardLinks {
		return n.byteSize / int64(n.links)
	}
	return n.byteSize
}

// AllocatedSize returns the hard-link-adjusted allocated size.
func (n *Node) AllocatedSize(t *Tree) int64 {
	if n.kind == KindFile && n.links > 1 && !t.ignoreHardLinks {
		return n.allocatedSize / int64(n.links)
	}
	return n.allocatedSize
}

// Error returns the per-node scan error message, if any.
func (n *Node) Error() string { return n.errMessage }
