package scan

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/arcfs/diskmap/internal/diskcache"
	"github.com/arcfs/diskmap/internal/tree"
)

// cacheStepLines is how many data lines CacheReadJob consumes per tick,
// matching §4.4's "CacheReadJob yields to the scheduler every ~1000 input
// lines".
const cacheStepLines = 1000

// CacheReadJob drains a gzip-compressed cache stream a bit at a time,
// wrapping diskcache.Reader so a large cache file doesn't block the engine's
// other queued jobs for the whole read.
type CacheReadJob struct {
	f       *os.File
	startID tree.NodeID
	rdr     *diskcache.Reader
	dirID   tree.NodeID
}

// NewCacheReadJob creates a job that reads f (already open, closed when the
// job finishes or errors) into t, attaching the result under startID.
func NewCacheReadJob(f *os.File, t *tree.Tree, startID tree.NodeID) *CacheReadJob {
	j := &CacheReadJob{f: f, startID: startID, dirID: startID}
	rdr, err := diskcache.NewReader(f, t, startID)
	if err != nil {
		logrus.WithField("component", "scan").
			WithError(err).
			Warn("cache read job failed to open stream")
		f.Close()
		return j
	}
	j.rdr = rdr
	return j
}

func (j *CacheReadJob) DirID() tree.NodeID {
	if j.rdr != nil && j.rdr.Root() != tree.InvalidNodeID {
		return j.rdr.Root()
	}
	return j.dirID
}

func (j *CacheReadJob) Step(eng *Engine) (bool, error) {
	if j.rdr == nil {
		return true, io.ErrClosedPipe
	}
	done, err := j.rdr.Step(cacheStepLines)
	if done {
		j.f.Close()
		if root := j.rdr.Root(); root != tree.InvalidNodeID {
			j.dirID = root
		}
	}
	return done, err
}
