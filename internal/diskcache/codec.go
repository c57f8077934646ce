// Package diskcache implements the gzip-compressed, line-oriented cache file
// format (spec.md §4.7, §6.1): a writer that serializes a tree.Tree and a
// tolerant, versioned reader that rebuilds one.
package diskcache

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/arcfs/diskmap/internal/tree"
)

// HeaderRegexp matches the first non-comment line of a cache file, §6.1.
var HeaderRegexp = regexp.MustCompile(`^\[(qdirstat|kdirstat) [^ ]+ cache file\]$`)

const (
	headerLine  = "[qdirstat 2.0 cache file]"
	maxLineLen  = 5000
	maxFields   = 32
	maxParseErr = 1000
)

// typeLetter encodes a tree.EntryType as the cache format's one-letter code.
func typeLetter(t tree.EntryType, isDir bool) string {
	if isDir {
		return "D"
	}
	switch t {
	case tree.TypeSymlink:
		return "L"
	case tree.TypeBlockDev:
		return "BlockDev"
	case tree.TypeCharDev:
		return "CharDev"
	case tree.TypeFifo:
		return "FIFO"
	case tree.TypeSocket:
		return "Socket"
	default:
		return "F"
	}
}

func letterType(s string) (tree.EntryType, bool) {
	switch s {
	case "D":
		return tree.TypeDir, true
	case "L":
		return tree.TypeSymlink, false
	case "BlockDev":
		return tree.TypeBlockDev, false
	case "CharDev":
		return tree.TypeCharDev, false
	case "FIFO":
		return tree.TypeFifo, false
	case "Socket":
		return tree.TypeSocket, false
	default:
		return tree.TypeFile, false
	}
}

// formatSize renders n compactly (NNK/NNM/NNG/NNT) when it divides exactly,
// else as a plain decimal — §4.7.
func formatSize(n int64) string {
	units := []struct {
		suffix string
		factor int64
	}{
		{"T", 1 << 40},
		{"G", 1 << 30},
		{"M", 1 << 20},
		{"K", 1 << 10},
	}
	for _, u := range units {
		if n != 0 && n%u.factor == 0 {
			return strconv.FormatInt(n/u.factor, 10) + u.suffix
		}
	}
	return strconv.FormatInt(n, 10)
}

// parseSize reverses formatSize, accepting an optional K|M|G|T suffix.
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("diskcache: empty size field")
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1 << 10
	case 'M', 'm':
		mult = 1 << 20
	case 'G', 'g':
		mult = 1 << 30
	case 'T', 't':
		mult = 1 << 40
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return v * mult, nil
}

// parseMtime accepts a hex (with or without 0x) or decimal timestamp.
func parseMtime(s string) (time.Time, error) {
	base := 10
	trimmed := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		trimmed = s[2:]
		base = 16
	} else if looksHex(s) {
		base = 16
	}
	v, err := strconv.ParseInt(trimmed, base, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0), nil
}

func looksHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9') {
			return strings.ContainsAny(s, "abcdefABCDEF")
		}
	}
	return false
}

// newGzipReader wraps r in a gzip reader, producing a consistent error for a
// corrupt or non-gzip stream.
func newGzipReader(r io.Reader) (*gzip.Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "diskcache: not a gzip-compressed cache file")
	}
	return gz, nil
}

// newLineScanner accepts lines up to 1 MiB, well above maxLineLen, so a
// line longer than maxLineLen reaches the reader's parse-error skip path; a
// line longer than 1 MiB ends the read with a scanner error.
func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, maxLineLen), 1<<20)
	return sc
}

// PeekRootPath reads just enough of a cache stream to return the absolute
// path of its first directory record, without building any tree nodes. A
// LocalDirReadJob uses this to decide whether an auto-discovered
// .qdirstat.cache.gz file names the directory it is currently reading
// before committing to replacing that subtree (§4.4 step 3).
func PeekRootPath(r io.Reader) (string, error) {
	gz, err := newGzipReader(r)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	sc := newLineScanner(gz)
	headerSeen := false
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if !headerSeen {
			headerSeen = true
			if !HeaderRegexp.MatchString(strings.TrimSpace(line)) {
				return "", errors.New("diskcache: missing or malformed header line")
			}
			continue
		}
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		typ, isDir := letterType(fields[0])
		if !isDir || typ != tree.TypeDir {
			return "", errors.New("diskcache: first data line is not a directory record")
		}
		return collapseSlashes(tree.DecodePathComponent(fields[1])), nil
	}
	if err := sc.Err(); err != nil {
		return "", errors.Wrap(err, "diskcache: reading cache stream")
	}
	return "", errors.New("diskcache: empty cache stream")
}

var errTooManyParseErrors = errors.New("diskcache: too many parse errors, aborting")

func logParseError(errCount *int, format string, args ...any) error {
	*errCount++
	logrus.WithField("component", "diskcache").Warnf(format, args...)
	if *errCount >= maxParseErr {
		return errTooManyParseErrors
	}
	return nil
}
