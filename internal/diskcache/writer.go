package diskcache

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/arcfs/diskmap/internal/tree"
)

// Write serializes id's subtree to w as a gzip-compressed cache file,
// §4.7's writer: header, commented column line, then one line per node in
// pre-order (item, then its leaf children, whether held in the dot entry or
// directly by a flattened directory, then real subdirectories).
func Write(w io.Writer, t *tree.Tree, id tree.NodeID) error {
	gz, _ := gzip.NewWriterLevel(w, gzip.BestSpeed)
	defer gz.Close()

	bw := bufio.NewWriter(gz)
	defer bw.Flush()

	fmt.Fprintln(bw, headerLine)
	fmt.Fprintln(bw, "# Type\tpath\t\tsize\tuid\tgid\tmode\tmtime\t\talloc_size\t<optional fields>")

	if err := writeNode(bw, t, id); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return gz.Close()
}

func writeNode(bw *bufio.Writer, t *tree.Tree, id tree.NodeID) error {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	if n.IsDotEntry() {
		// The dot entry itself never gets a line; only its leaf children do.
		return writeDotEntryChildren(bw, t, id)
	}
	if n.IsAttic() || n.IsPkg() {
		// Attics are never persisted (they are rebuilt from filters on the
		// next scan); PkgInfo nodes are synthesized from the package
		// manager, not the cache.
		return nil
	}

	if err := writeLine(bw, t, id); err != nil {
		return err
	}

	if n.IsDir() {
		if dot := t.DotEntry(id); dot != tree.InvalidNodeID {
			if err := writeDotEntryChildren(bw, t, dot); err != nil {
				return err
			}
		}
		for c := t.FirstChild(id); c != tree.InvalidNodeID; c = t.NextSibling(c) {
			if !t.Node(c).IsDir() {
				if err := writeLine(bw, t, c); err != nil {
					return err
				}
			}
		}
		for c := t.FirstChild(id); c != tree.InvalidNodeID; c = t.NextSibling(c) {
			cn := t.Node(c)
			if cn.IsDir() && !cn.IsPseudoDir() {
				if err := writeNode(bw, t, c); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeDotEntryChildren(bw *bufio.Writer, t *tree.Tree, dotID tree.NodeID) error {
	for c := t.FirstChild(dotID); c != tree.InvalidNodeID; c = t.NextSibling(c) {
		if err := writeLine(bw, t, c); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(bw *bufio.Writer, t *tree.Tree, id tree.NodeID) error {
	n := t.Node(id)

	var pathField string
	if n.IsDir() {
		// Directory entries always write the absolute path; EncodePathComponent
		// preserves "/" separators while escaping everything else (§4.7).
		pathField = tree.EncodePathComponent(t.URL(id))
	} else {
		pathField = tree.EncodePathComponent(t.Name(id))
	}

	fields := []string{
		typeLetter(t.EntryType(id), n.IsDir()),
		pathField,
		formatSize(n.ByteSize()),
		fmt.Sprintf("%d", n.UID()),
		fmt.Sprintf("%d", n.GID()),
		fmt.Sprintf("%o", n.Mode().Perm()),
		fmt.Sprintf("0x%x", n.ModTime().Unix()),
		formatSize(n.AllocatedSize(t)),
	}
	line := strings.Join(fields, "\t")

	var opts []string
	if unread := unreadTag(t, id); unread != "" {
		opts = append(opts, "unread:"+unread)
	}
	if n.IsSparse() {
		opts = append(opts, fmt.Sprintf("blocks:%d", n.Blocks()))
	}
	if n.Links() > 1 {
		opts = append(opts, fmt.Sprintf("links:%d", n.Links()))
	}

	if len(opts) > 0 {
		line += "\t|\t" + strings.Join(opts, "\t")
	}

	_, err := fmt.Fprintln(bw, line)
	return err
}

func unreadTag(t *tree.Tree, id tree.NodeID) string {
	if t.IsExcluded(id) {
		return "e"
	}
	switch t.ReadState(id) {
	case tree.StatePermissionDenied:
		return "p"
	case tree.StateOnRequestOnly:
		return "m"
	}
	return ""
}
