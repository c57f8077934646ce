// Package scan implements the cooperative scan engine (spec.md §4.4, §5): a
// single-writer job queue driven by a zero-delay tick, the local-directory
// read job, the gzip cache-replacement path, and the filesystem-crossing
// policy that decides whether a mount point's subtree gets its own job.
package scan

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/arcfs/diskmap/internal/filter"
	"github.com/arcfs/diskmap/internal/mount"
	"github.com/arcfs/diskmap/internal/tree"
)

// CacheFileName is the well-known cache file auto-discovered during a scan.
const CacheFileName = ".qdirstat.cache.gz"

// Job is one unit of cooperative work. Step runs one tick's worth of work
// and reports whether the job is finished; a job that isn't done yet (such
// as CacheReadJob, which yields every ~1000 lines) is requeued at the tail.
type Job interface {
	Step(eng *Engine) (done bool, err error)
	DirID() tree.NodeID
}

// EventKind distinguishes the two terminal engine events.
type EventKind int

const (
	EventFinished EventKind = iota
	EventAborted
)

// Event is emitted once, when the engine's queues drain (or on abort).
type Event struct {
	Kind EventKind
}

// Config bundles the read-only collaborators a scan consults.
type Config struct {
	Mounts           *mount.Table
	Filters          *filter.Set
	CrossFilesystems bool
	IgnoreHardLinks  bool
}

// Engine runs the cooperative job queue against a single tree.Tree. It is
// not safe for concurrent use from multiple goroutines — the whole point of
// the single-writer design (§4.4) is that only one goroutine ever mutates
// the tree at a time.
type Engine struct {
	Tree   *tree.Tree
	Config Config

	ready   []Job
	blocked []Job

	events chan Event
}

// NewEngine creates an engine over t with the given collaborators.
func NewEngine(t *tree.Tree, cfg Config) *Engine {
	return &Engine{
		Tree:   t,
		Config: cfg,
		events: make(chan Event, 1),
	}
}

// Enqueue appends j to the ready queue's tail.
func (e *Engine) Enqueue(j Job) {
	e.ready = append(e.ready, j)
}

// Events returns the channel the single terminal event arrives on.
func (e *Engine) Events() <-chan Event { return e.events }

// Run drives the tick loop until both queues are empty (emitting
// EventFinished) or ctx is cancelled (emitting EventAborted). Per §4.4 "the
// tick is rearmed until the queue ... is empty" — there is no real timer
// here since nothing in this engine ever sleeps between ticks; the loop
// itself plays the zero-delay-periodic-tick role.
func (e *Engine) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			e.Abort()
			return
		}
		if len(e.ready) == 0 && len(e.blocked) == 0 {
			e.events <- Event{Kind: EventFinished}
			close(e.events)
			return
		}
		if len(e.ready) == 0 {
			// Nothing currently runnable; nothing in this engine ever moves
			// a job out of blocked on its own (no external-process jobs are
			// implemented), so this is unreachable in practice but kept for
			// §4.4's "separate blocked list" structure.
			e.events <- Event{Kind: EventFinished}
			close(e.events)
			return
		}
		e.tick()
	}
}

func (e *Engine) tick() {
	job := e.ready[0]
	e.ready = e.ready[1:]

	done, err := job.Step(e)
	if err != nil {
		logrus.WithField("component", "scan").
			WithField("dir", e.Tree.Name(job.DirID())).
			WithError(err).
			Warn("job step failed")
	}
	if !done {
		e.ready = append(e.ready, job)
	}
}

// Abort clears both queues and marks every dir still queued as aborted
// (§4.4 "Abort clears both lists and marks every dir in them as aborted").
func (e *Engine) Abort() {
	for _, j := range e.ready {
		e.Tree.SetReadState(j.DirID(), tree.StateAborted)
	}
	for _, j := range e.blocked {
		e.Tree.SetReadState(j.DirID(), tree.StateAborted)
	}
	e.ready = nil
	e.blocked = nil
	e.events <- Event{Kind: EventAborted}
	close(e.events)
}

// cancelQueuedUnder removes (without touching their read state) every
// queued job whose target lies inside rootID's subtree, except keep, used
// when a cache-file match replaces a subtree mid-scan (§4.4 step 3: "kill
// queued sibling jobs on this subtree except this read job itself").
func (e *Engine) cancelQueuedUnder(rootID tree.NodeID, keep Job) {
	filtered := e.ready[:0]
	for _, j := range e.ready {
		if j != keep && e.isDescendant(j.DirID(), rootID) {
			continue
		}
		filtered = append(filtered, j)
	}
	e.ready = filtered
}

func (e *Engine) isDescendant(id, ancestor tree.NodeID) bool {
	for id != tree.InvalidNodeID {
		if id == ancestor {
			return true
		}
		id = e.Tree.Parent(id)
	}
	return false
}
