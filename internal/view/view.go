// Package view implements the model-side half of the view collaborator
// (spec.md §6.5): a typed event stream the model emits as the scan plane
// runs, and read-model formatting helpers that turn a tree.Node into the
// strings a UI would display. The model itself never imports a widget
// toolkit; everything here is plain data and strings.
package view

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/arcfs/diskmap/internal/categorizer"
	"github.com/arcfs/diskmap/internal/tree"
)

// EventKind enumerates the signals spec.md §6.5 lists the model as
// emitting.
type EventKind int

const (
	StartingReading EventKind = iota
	ReadJobFinished
	Finished
	Aborted
	Clearing
	Cleared
	DeletingChild
	ChildrenDeleted
	ClearingSubtree
	SubtreeCleared
)

func (k EventKind) String() string {
	switch k {
	case StartingReading:
		return "starting_reading"
	case ReadJobFinished:
		return "read_job_finished"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	case Clearing:
		return "clearing"
	case Cleared:
		return "cleared"
	case DeletingChild:
		return "deleting_child"
	case ChildrenDeleted:
		return "children_deleted"
	case ClearingSubtree:
		return "clearing_subtree"
	case SubtreeCleared:
		return "subtree_cleared"
	default:
		return "unknown"
	}
}

// Event carries the node a per-directory signal applies to. Node is
// tree.InvalidNodeID for events that carry none (Finished, Aborted,
// Cleared, ChildrenDeleted).
type Event struct {
	Kind EventKind
	Node tree.NodeID
}

// Bus is a minimal typed pub-sub the model publishes Events to and a view
// collaborator subscribes to, so the core never references a widget
// toolkit directly (spec.md §5 "signals from tree to view").
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBus creates an empty event bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe returns a channel that receives every event published after
// this call, buffered so a slow subscriber cannot stall the scan plane
// that publishes on it.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish fans out ev to every current subscriber. A subscriber whose
// buffer is full drops the event rather than blocking the publisher,
// since the model is single-writer and must never stall on a view.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// StartReading publishes StartingReading for dir.
func (b *Bus) StartReading(dir tree.NodeID) { b.Publish(Event{Kind: StartingReading, Node: dir}) }

// FinishReadJob publishes ReadJobFinished for dir.
func (b *Bus) FinishReadJob(dir tree.NodeID) { b.Publish(Event{Kind: ReadJobFinished, Node: dir}) }

// Finish publishes the terminal Finished event.
func (b *Bus) Finish() { b.Publish(Event{Kind: Finished, Node: tree.InvalidNodeID}) }

// Abort publishes the terminal Aborted event.
func (b *Bus) Abort() { b.Publish(Event{Kind: Aborted, Node: tree.InvalidNodeID}) }

// Row is the read-model view of one node: every field spec.md §6.5 lists
// the model as exposing, pre-formatted for display.
type Row struct {
	Name        string
	Size        string // humanized, with a ">" prefix when a descendant erred or was aborted
	Permissions string // symbolic, e.g. "drwxr-xr-x"
	Octal       string // e.g. "0755"
	Owner       string
	Group       string
	ModTime     string // humanized relative time
	Category    categorizer.Category
	RowNumber   int
}

// BuildRow formats id's read-model row. cat may be nil, in which case
// Category is the zero value.
func BuildRow(t *tree.Tree, id tree.NodeID, cat categorizer.Categorizer) Row {
	n := t.Node(id)
	if n == nil {
		return Row{}
	}

	row := Row{
		Name:        t.Name(id),
		Size:        formatSize(t, id, n),
		Permissions: formatPermissions(t.EntryType(id), n.IsDir(), n.Mode()),
		Octal:       fmt.Sprintf("%04o", n.Mode().Perm()),
		Owner:       lookupUser(n.UID()),
		Group:       lookupGroup(n.GID()),
		ModTime:     humanize.Time(t.TotalLatestMtime(id)),
		RowNumber:   n.RowNumber(),
	}
	if cat != nil {
		row.Category = cat.Category(t.Name(id))
	}
	return row
}

// formatSize humanizes a node's total (subtree) size for a directory, or
// its own size for a file, prefixed with ">" when any descendant
// directory ended in error, permission-denied, or was aborted (spec.md
// §6.5, §7 "scan errors ... surfaced by the '>' size prefix").
func formatSize(t *tree.Tree, id tree.NodeID, n *tree.Node) string {
	size := n.Size(t)
	if n.IsDir() {
		size = t.TotalAllocatedSize(id)
	}
	text := humanize.Bytes(uint64(size))
	if hasTroubledDescendant(t, id, n) {
		return ">" + text
	}
	return text
}

func hasTroubledDescendant(t *tree.Tree, id tree.NodeID, n *tree.Node) bool {
	if !n.IsDir() {
		return false
	}
	if t.TotalErrSubdirCount(id) > 0 {
		return true
	}
	if n.EffectiveReadState(t) == tree.StateAborted {
		return true
	}
	for c := t.FirstChild(id); c != tree.InvalidNodeID; c = t.NextSibling(c) {
		if cn := t.Node(c); cn != nil && hasTroubledDescendant(t, c, cn) {
			return true
		}
	}
	return false
}

// formatPermissions renders a symbolic permission string ("drwxr-xr-x")
// from the node's entry type and permission bits.
func formatPermissions(entryType tree.EntryType, isDir bool, mode os.FileMode) string {
	var typeChar byte
	switch {
	case isDir:
		typeChar = 'd'
	case entryType == tree.TypeSymlink:
		typeChar = 'l'
	case entryType == tree.TypeBlockDev:
		typeChar = 'b'
	case entryType == tree.TypeCharDev:
		typeChar = 'c'
	case entryType == tree.TypeFifo:
		typeChar = 'p'
	case entryType == tree.TypeSocket:
		typeChar = 's'
	default:
		typeChar = '-'
	}

	perm := mode.Perm()
	buf := make([]byte, 10)
	buf[0] = typeChar
	const rwx = "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if perm&(1<<uint(8-i)) != 0 {
			buf[i+1] = rwx[i]
		} else {
			buf[i+1] = '-'
		}
	}
	return string(buf)
}

func lookupUser(uid uint32) string {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return strconv.FormatUint(uint64(uid), 10)
	}
	return u.Username
}

func lookupGroup(gid uint32) string {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return strconv.FormatUint(uint64(gid), 10)
	}
	return g.Name
}
