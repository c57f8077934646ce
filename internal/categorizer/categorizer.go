// Package categorizer implements the Mime categorizer collaborator
// (spec.md §6.4): given a path, decide which named category it belongs to
// and which color the treemap should paint its tile with.
package categorizer

import (
	"path/filepath"
	"strings"
	"sync/atomic"
)

// RGB is a plain 8-bit-per-channel color, independent of any GUI toolkit.
type RGB struct {
	R, G, B uint8
}

// Category names a bucket and the color its tiles are painted.
type Category struct {
	Name  string
	Color RGB
}

// Categorizer resolves a filesystem path to a Category. The default
// implementation buckets by extension; callers needing real MIME sniffing
// can supply their own.
type Categorizer interface {
	Category(path string) Category
}

// ExtensionCategorizer buckets files by lowercased extension, falling back
// to a catch-all category for anything unrecognized. Its rule table is
// swapped as a whole snapshot (atomic.Value) so Category is safe to call
// concurrently with a config reload — it is consulted from every render
// task in the cushion worker pool (§4.9).
type ExtensionCategorizer struct {
	rules    atomic.Value // map[string]Category, ext without leading dot
	fallback Category
	dirColor Category
}

// NewDefault builds an ExtensionCategorizer pre-populated with the common
// buckets a disk-usage view needs: archives, images, video, audio,
// documents, source code, and executables, plus a neutral fallback.
func NewDefault() *ExtensionCategorizer {
	c := &ExtensionCategorizer{
		fallback: Category{Name: "Other", Color: RGB{100, 100, 110}},
		dirColor: Category{Name: "Directory", Color: RGB{60, 160, 170}},
	}
	c.rules.Store(defaultRules())
	return c
}

func defaultRules() map[string]Category {
	archives := Category{Name: "Archives", Color: RGB{200, 155, 60}}
	images := Category{Name: "Images", Color: RGB{170, 130, 210}}
	video := Category{Name: "Video", Color: RGB{220, 70, 130}}
	audio := Category{Name: "Audio", Color: RGB{70, 180, 220}}
	documents := Category{Name: "Documents", Color: RGB{140, 200, 80}}
	code := Category{Name: "Source code", Color: RGB{90, 200, 200}}
	executables := Category{Name: "Executables", Color: RGB{220, 70, 70}}

	rules := map[string]Category{}
	for _, ext := range []string{"zip", "tar", "gz", "bz2", "xz", "7z", "rar", "zst"} {
		rules[ext] = archives
	}
	for _, ext := range []string{"jpg", "jpeg", "png", "gif", "bmp", "webp", "svg", "tiff"} {
		rules[ext] = images
	}
	for _, ext := range []string{"mp4", "mkv", "avi", "mov", "webm", "flv"} {
		rules[ext] = video
	}
	for _, ext := range []string{"mp3", "flac", "wav", "ogg", "m4a"} {
		rules[ext] = audio
	}
	for _, ext := range []string{"pdf", "doc", "docx", "odt", "txt", "md", "rtf"} {
		rules[ext] = documents
	}
	for _, ext := range []string{"go", "c", "cpp", "h", "hpp", "py", "js", "ts", "rs", "java", "rb"} {
		rules[ext] = code
	}
	for _, ext := range []string{"exe", "bin", "appimage", "deb", "rpm"} {
		rules[ext] = executables
	}
	return rules
}

// Category implements Categorizer. A directory's own node has no
// extension-addressable identity here; callers resolve directory color via
// DirCategory instead.
func (c *ExtensionCategorizer) Category(path string) Category {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	rules := c.rules.Load().(map[string]Category)
	if cat, ok := rules[ext]; ok {
		return cat
	}
	return c.fallback
}

// DirCategory returns the fixed category painted for a directory's own
// pedestal, when a directory tile is ever drawn non-transparent.
func (c *ExtensionCategorizer) DirCategory() Category { return c.dirColor }

// AddRule registers (or overrides) the category for one extension. It
// builds a new snapshot map and swaps it atomically, so a render task
// mid-Category call never observes a partially-updated table.
func (c *ExtensionCategorizer) AddRule(ext string, cat Category) {
	old := c.rules.Load().(map[string]Category)
	next := make(map[string]Category, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[strings.ToLower(strings.TrimPrefix(ext, "."))] = cat
	c.rules.Store(next)
}
