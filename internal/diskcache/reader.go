package diskcache

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/arcfs/diskmap/internal/tree"
)

var multiSlash = strings.NewReplacer("//", "/")

func collapseSlashes(p string) string {
	for strings.Contains(p, "//") {
		p = multiSlash.Replace(p)
	}
	return p
}

// Reader incrementally parses a gzip-compressed cache stream, a few
// thousand lines at a time, so a CacheReadJob can yield back to the scan
// engine's cooperative scheduler instead of blocking it (§4.4 "CacheReadJob
// yields to the scheduler every ~1000 input lines").
type Reader struct {
	gz *gzip.Reader
	sc *bufio.Scanner
	rd *reader

	headerSeen bool
	done       bool
	err        error
}

// NewReader opens a gzip-compressed cache stream for incremental reading,
// attaching results under startID (pass t.Toplevel() for a mid-scan
// replacement against a known parent, or t.Root() for a from-scratch load).
func NewReader(r io.Reader, t *tree.Tree, startID tree.NodeID) (*Reader, error) {
	gz, err := newGzipReader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{
		gz: gz,
		sc: newLineScanner(gz),
		rd: &reader{t: t, startID: startID, root: tree.InvalidNodeID, latestDir: tree.InvalidNodeID},
	}, nil
}

// Step consumes up to maxLines data lines (the header and blank/comment
// lines don't count against the budget) and reports whether the stream is
// exhausted. Call it repeatedly with maxLines around 1000 from a cache
// read job's per-tick Step; a single large maxLines drains the whole
// stream in one call.
func (rdr *Reader) Step(maxLines int) (done bool, err error) {
	if rdr.done {
		return true, rdr.err
	}
	consumed := 0
	for consumed < maxLines {
		if !rdr.sc.Scan() {
			if serr := rdr.sc.Err(); serr != nil {
				rdr.err = errors.Wrap(serr, "diskcache: reading cache stream")
			}
			rdr.finish()
			return true, rdr.err
		}
		line := strings.TrimRight(rdr.sc.Text(), " \t\r")
		if !rdr.headerSeen {
			rdr.headerSeen = true
			if !HeaderRegexp.MatchString(strings.TrimSpace(line)) {
				rdr.err = errors.New("diskcache: missing or malformed header line")
				rdr.finish()
				return true, rdr.err
			}
			continue
		}
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		consumed++
		if len(line) > maxLineLen {
			if lerr := logParseError(&rdr.rd.errCount, "diskcache: line exceeds %d bytes, skipping", maxLineLen); lerr != nil {
				rdr.err = lerr
				rdr.finish()
				return true, rdr.err
			}
			continue
		}
		if perr := rdr.rd.parseLine(line); perr != nil {
			rdr.err = perr
			rdr.finish()
			return true, rdr.err
		}
	}
	return false, nil
}

// Root returns the node the cache created as its (first) root, valid only
// once Step has reported done.
func (rdr *Reader) Root() tree.NodeID { return rdr.rd.root }

func (rdr *Reader) finish() {
	if !rdr.done {
		rdr.rd.finalizeAll()
	}
	rdr.gz.Close()
	rdr.done = true
}

// Read drains a gzip-compressed cache stream in one call and populates t,
// attaching the result under startID. See NewReader/Step for the
// incremental form a scan job uses instead.
func Read(r io.Reader, t *tree.Tree, startID tree.NodeID) (tree.NodeID, error) {
	rdr, err := NewReader(r, t, startID)
	if err != nil {
		return tree.InvalidNodeID, err
	}
	for {
		if done, err := rdr.Step(1 << 30); done {
			return rdr.Root(), err
		}
	}
}

type reader struct {
	t       *tree.Tree
	startID tree.NodeID

	root       tree.NodeID
	latestDir  tree.NodeID
	createdDir []tree.NodeID

	errCount int
}

func (r *reader) parseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) > maxFields {
		fields = fields[:maxFields]
	}
	if len(fields) < 4 {
		return logParseError(&r.errCount, "diskcache: fewer than 4 fields: %q", line)
	}

	typ, isDir := letterType(fields[0])
	pathOrName := tree.DecodePathComponent(fields[1])

	size, err := parseSize(fields[2])
	if err != nil {
		return logParseError(&r.errCount, "diskcache: bad size field %q", fields[2])
	}

	var uid, gid uint64
	var modeOctal uint64
	fieldIdx := 3
	// Old cache formats omit uid/gid/mode and jump straight to a hex mtime
	// (detected by a leading "0x"); treat that as the backward-compatible
	// shape.
	if len(fields) > fieldIdx && !strings.HasPrefix(fields[fieldIdx], "0x") && len(fields) >= 7 {
		uid, _ = strconv.ParseUint(fields[3], 10, 32)
		gid, _ = strconv.ParseUint(fields[4], 10, 32)
		modeOctal, _ = strconv.ParseUint(fields[5], 8, 32)
		fieldIdx = 6
	}
	if fieldIdx >= len(fields) {
		return logParseError(&r.errCount, "diskcache: missing mtime field: %q", line)
	}
	mtime, err := parseMtime(fields[fieldIdx])
	if err != nil {
		return logParseError(&r.errCount, "diskcache: bad mtime field %q", fields[fieldIdx])
	}
	fieldIdx++

	var allocSize int64
	if fieldIdx < len(fields) && fields[fieldIdx] != "|" {
		allocSize, _ = parseSize(fields[fieldIdx])
		fieldIdx++
	} else {
		allocSize = size
	}

	opts := parseOptionalFields(fields[fieldIdx:])

	if strings.HasPrefix(pathOrName, "/") {
		pathOrName = collapseSlashes(pathOrName)
	}

	if isDir {
		return r.handleDir(pathOrName, typ, uint32(uid), uint32(gid), uint32(modeOctal), mtime, size, allocSize, opts)
	}
	return r.handleLeaf(pathOrName, typ, uint32(uid), uint32(gid), uint32(modeOctal), mtime, size, allocSize, opts)
}

type optionalFields struct {
	unread    string
	blocks    int64
	hasBlocks bool
	links     int32
}

func parseOptionalFields(fields []string) optionalFields {
	var o optionalFields
	for _, f := range fields {
		if f == "|" {
			continue
		}
		kv := strings.SplitN(f, ":", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "unread":
			o.unread = kv[1]
		case "blocks":
			if v, err := strconv.ParseInt(kv[1], 10, 64); err == nil {
				o.blocks = v
				o.hasBlocks = true
			}
		case "links":
			if v, err := strconv.ParseInt(kv[1], 10, 32); err == nil {
				o.links = int32(v)
			}
		}
	}
	return o
}

func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

func (r *reader) handleDir(path string, typ tree.EntryType, uid, gid, mode uint32, mtime time.Time, size, allocSize int64, opts optionalFields) error {
	parent := r.resolveParentForDir(path)

	// The toplevel directory's own name is its whole absolute path, not
	// just its last path component (Node.Name's doc comment, §3.1); every
	// other directory is named by its leaf component as usual.
	name := leafOf(path)
	if parent == r.t.Root() {
		name = path
	}
	id := r.t.NewDir(name, mtime, true)
	r.t.SetDirStatAttrs(id, mode, uid, gid, size, allocSize, allocSize/512)

	if parent == tree.InvalidNodeID {
		logrus.WithField("component", "diskcache").
			WithField("path", path).
			Warn("could not resolve parent directory, leaving node detached")
	} else {
		r.t.InsertChild(parent, id)
	}
	r.t.SetFromCache(id, true)
	r.applyDirOptions(id, opts)

	if r.root == tree.InvalidNodeID {
		r.root = id
	}
	r.latestDir = id
	r.createdDir = append(r.createdDir, id)
	return nil
}

// resolveParentForDir implements §4.7's parent-resolution fallback chain.
// The common case is the directory right after its own parent in the
// stream, so try the last directory created first before paying for a
// full Locate search.
func (r *reader) resolveParentForDir(path string) tree.NodeID {
	if r.t.Toplevel() == tree.InvalidNodeID && r.latestDir == tree.InvalidNodeID {
		// Nothing visible in the tree yet: this line becomes the toplevel,
		// parented directly under the invisible root.
		return r.t.Root()
	}

	parentPath := parentOf(path)
	if r.latestDir != tree.InvalidNodeID && normalizedURL(r.t, r.latestDir) == parentPath {
		return r.latestDir
	}
	if found := r.t.Locate(r.startID, parentPath); found != tree.InvalidNodeID {
		return found
	}
	if top := r.t.Toplevel(); top != tree.InvalidNodeID {
		if found := r.t.Locate(top, parentPath); found != tree.InvalidNodeID {
			return found
		}
	}
	return tree.InvalidNodeID
}

func normalizedURL(t *tree.Tree, id tree.NodeID) string {
	u := t.URL(id)
	if u == "" {
		return "/"
	}
	return u
}

func (r *reader) applyDirOptions(id tree.NodeID, opts optionalFields) {
	switch opts.unread {
	case "e":
		r.t.SetExcluded(id)
	case "p":
		r.t.SetReadState(id, tree.StatePermissionDenied)
	case "m":
		r.t.SetReadState(id, tree.StateOnRequestOnly)
	default:
		r.t.SetReadState(id, tree.StateFinished)
	}
}

func (r *reader) handleLeaf(name string, typ tree.EntryType, uid, gid, mode uint32, mtime time.Time, size, allocSize int64, opts optionalFields) error {
	parent := r.latestDir
	if parent == tree.InvalidNodeID {
		return logParseError(&r.errCount, "diskcache: leaf entry %q with no known parent directory", name)
	}

	links := opts.links
	if links == 0 {
		links = 1
	}
	blocks := allocSize / 512
	if opts.hasBlocks {
		blocks = opts.blocks
	}

	fa := tree.FileAttrs{
		Name:          name,
		Type:          typ,
		Mode:          mode,
		UID:           uid,
		GID:           gid,
		Mtime:         mtime,
		ByteSize:      size,
		AllocatedSize: allocSize,
		Blocks:        blocks,
		Links:         links,
	}
	id := r.t.NewFile(fa)
	r.t.InsertChild(parent, id)
	return nil
}

func leafOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return path
	}
	return path[i+1:]
}

// finalizeAll finalizes every directory created by this read in reverse
// (child-before-parent) order, per §4.7's end-of-stream step, then marks
// non-error directories finished.
func (r *reader) finalizeAll() {
	for i := len(r.createdDir) - 1; i >= 0; i-- {
		id := r.createdDir[i]
		r.t.FinalizeLocal(id)
		switch r.t.ReadState(id) {
		case tree.StateError, tree.StatePermissionDenied, tree.StateOnRequestOnly:
			// leave as-is
		default:
			r.t.SetReadState(id, tree.StateFinished)
		}
	}
	logrus.WithField("component", "diskcache").
		WithField("dirs", len(r.createdDir)).
		Debug("cache read complete")
}
