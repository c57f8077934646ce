// Package treemap implements the squarified and slice-and-dice treemap
// layouts (spec.md §4.8): subdividing a rectangle into child tiles
// proportional to each child's total allocated size.
package treemap

import (
	"math"
	"sort"

	"github.com/arcfs/diskmap/internal/categorizer"
	"github.com/arcfs/diskmap/internal/tree"
)

// Mode selects the tiling algorithm.
type Mode int

const (
	ModeSquarified Mode = iota
	ModeSliceAndDice
)

// Rect is an axis-aligned rectangle in pixel space.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) shortSide() float64 {
	if r.W < r.H {
		return r.W
	}
	return r.H
}

func (r Rect) area() float64 { return r.W * r.H }

// Tile is one node of the laid-out treemap. A directory tile's Children
// cover its own Rect, except for the space of children dropped below the
// minimum tile size; per §4.8 a directory tile with children does
// not paint itself, only its leaf descendants do.
type Tile struct {
	NodeID   tree.NodeID
	Rect     Rect
	Leaf     bool
	Color    categorizer.RGB
	Children []*Tile
}

// Options controls the layout.
type Options struct {
	Mode Mode
	// MinTileSize is the minimum pixel extent a tile must advance by to be
	// kept (§4.8 step 4). Zero selects the mode's spec default: 6px
	// squarified, 4px slice-and-dice.
	MinTileSize float64
	Categorizer categorizer.Categorizer
}

func minTileSize(opts Options) float64 {
	if opts.MinTileSize > 0 {
		return opts.MinTileSize
	}
	if opts.Mode == ModeSliceAndDice {
		return 4
	}
	return 6
}

// Layout builds the treemap for id's subtree within rect. Returns nil if id
// is a directory with no children (§4.8: "a tile whose child count is zero
// is not created").
func Layout(t *tree.Tree, id tree.NodeID, rect Rect, opts Options) *Tile {
	return layoutNode(t, id, rect, opts)
}

func layoutNode(t *tree.Tree, id tree.NodeID, rect Rect, opts Options) *Tile {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	if !n.IsDir() {
		return leafTile(t, id, rect, opts)
	}

	children := collectChildren(t, id)
	if len(children) == 0 {
		return nil
	}

	min := minTileSize(opts)
	var childTiles []*Tile
	if opts.Mode == ModeSliceAndDice {
		childTiles = sliceAndDice(t, children, rect, min, opts)
	} else {
		childTiles = squarify(t, children, rect, min, opts)
	}
	return &Tile{NodeID: id, Rect: rect, Children: childTiles}
}

func leafTile(t *tree.Tree, id tree.NodeID, rect Rect, opts Options) *Tile {
	var color categorizer.RGB
	if opts.Categorizer != nil {
		color = opts.Categorizer.Category(t.Name(id)).Color
	}
	return &Tile{NodeID: id, Rect: rect, Leaf: true, Color: color}
}

type childInfo struct {
	id   tree.NodeID
	size float64
}

// collectChildren gathers id's treemap-visible children: every direct
// child that is not a pseudo-dir (subdirectories, plus plain files held
// directly by a dot entry or a flattened directory), plus id's own dot entry as one virtual child standing in for D's direct
// files (§4.8 step 1), sorted size-descending.
func collectChildren(t *tree.Tree, id tree.NodeID) []childInfo {
	var out []childInfo
	for c := t.FirstChild(id); c != tree.InvalidNodeID; c = t.NextSibling(c) {
		n := t.Node(c)
		if n == nil || n.IsPseudoDir() {
			continue
		}
		out = append(out, childInfo{id: c, size: float64(sizeOf(t, c))})
	}
	if dot := t.DotEntry(id); dot != tree.InvalidNodeID && t.FirstChild(dot) != tree.InvalidNodeID {
		out = append(out, childInfo{id: dot, size: float64(sizeOf(t, dot))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].size > out[j].size })
	return out
}

func sizeOf(t *tree.Tree, id tree.NodeID) int64 {
	n := t.Node(id)
	if n.IsDir() {
		return t.TotalAllocatedSize(id)
	}
	return n.AllocatedSize(t)
}

// squarify implements the squarified treemap algorithm: rows are
// accumulated greedily while the worst tile aspect ratio keeps improving,
// each row consumes a band off the shorter side of the remaining rect, and
// a row that would round below the minimum pixel size is force-grown by
// consuming further children (§4.8 steps 2-5).
func squarify(t *tree.Tree, children []childInfo, rect Rect, minTile float64, opts Options) []*Tile {
	totalSize := 0.0
	for _, c := range children {
		totalSize += math.Max(c.size, 1)
	}
	totalArea := rect.area()

	var tiles []*Tile
	remaining := rect
	i := 0
	for i < len(children) {
		shortSide := remaining.shortSide()

		row := []childInfo{children[i]}
		rowArea := areaOf(children[i], totalSize, totalArea)
		i++

		for i < len(children) {
			nextArea := areaOf(children[i], totalSize, totalArea)
			if worstAspectRatio(row, rowArea, shortSide, totalSize, totalArea) <=
				worstAspectRatioWith(row, children[i], rowArea+nextArea, shortSide, totalSize, totalArea) {
				break
			}
			row = append(row, children[i])
			rowArea += nextArea
			i++
		}

		rowHeight := rowArea / shortSide
		for rowHeight < minTile && i < len(children) {
			extraArea := areaOf(children[i], totalSize, totalArea)
			row = append(row, children[i])
			rowArea += extraArea
			i++
			rowHeight = rowArea / shortSide
		}

		rowTiles, band := layoutRow(t, row, rowArea, remaining, minTile, opts)
		tiles = append(tiles, rowTiles...)
		remaining = band
		if remaining.W <= 0 || remaining.H <= 0 {
			break
		}
	}
	return tiles
}

func areaOf(c childInfo, totalSize, totalArea float64) float64 {
	return (math.Max(c.size, 1) / totalSize) * totalArea
}

func worstAspectRatio(row []childInfo, rowArea, shortSide, totalSize, totalArea float64) float64 {
	if len(row) == 0 || shortSide <= 0 || rowArea <= 0 {
		return math.MaxFloat64
	}
	s2 := shortSide * shortSide
	worst := 0.0
	for _, c := range row {
		a := areaOf(c, totalSize, totalArea)
		r1 := (s2 * a) / (rowArea * rowArea)
		r2 := (rowArea * rowArea) / (s2 * a)
		if ratio := math.Max(r1, r2); ratio > worst {
			worst = ratio
		}
	}
	return worst
}

func worstAspectRatioWith(row []childInfo, extra childInfo, rowArea, shortSide, totalSize, totalArea float64) float64 {
	withExtra := append(append([]childInfo{}, row...), extra)
	return worstAspectRatio(withExtra, rowArea, shortSide, totalSize, totalArea)
}

// layoutRow lays out one squarified row along the remaining rect's long
// dimension, rounding offsets by cumulative area to avoid drift, and
// dropping any tile that does not advance by at least minTile pixels
// (§4.8 step 4). It returns the row's tiles and the rect left over after
// subtracting the row's band.
func layoutRow(t *tree.Tree, row []childInfo, rowArea float64, rect Rect, minTile float64, opts Options) ([]*Tile, Rect) {
	if len(row) == 0 {
		return nil, rect
	}

	var tiles []*Tile
	if rect.W < rect.H {
		rowHeight := rowArea / rect.W
		if rowHeight > rect.H {
			rowHeight = rect.H
		}
		cum := 0.0
		prevX := rect.X
		for _, c := range row {
			cum += c.size
			x1 := rect.X + math.Round((cum/rowSize(row))*rect.W)
			w := x1 - prevX
			if w < minTile {
				continue
			}
			if tile := layoutNode(t, c.id, Rect{X: prevX, Y: rect.Y, W: w, H: rowHeight}, opts); tile != nil {
				tiles = append(tiles, tile)
			}
			prevX = x1
		}
		return tiles, Rect{X: rect.X, Y: rect.Y + rowHeight, W: rect.W, H: rect.H - rowHeight}
	}

	rowWidth := rowArea / rect.H
	if rowWidth > rect.W {
		rowWidth = rect.W
	}
	cum := 0.0
	prevY := rect.Y
	for _, c := range row {
		cum += c.size
		y1 := rect.Y + math.Round((cum/rowSize(row))*rect.H)
		h := y1 - prevY
		if h < minTile {
			continue
		}
		if tile := layoutNode(t, c.id, Rect{X: rect.X, Y: prevY, W: rowWidth, H: h}, opts); tile != nil {
			tiles = append(tiles, tile)
		}
		prevY = y1
	}
	return tiles, Rect{X: rect.X + rowWidth, Y: rect.Y, W: rect.W - rowWidth, H: rect.H}
}

func rowSize(row []childInfo) float64 {
	s := 0.0
	for _, c := range row {
		s += c.size
	}
	return s
}

// sliceAndDice alternates horizontal and vertical stripes along the
// remaining rect's longer axis, one tile per child (§4.8).
func sliceAndDice(t *tree.Tree, children []childInfo, rect Rect, minTile float64, opts Options) []*Tile {
	total := 0.0
	for _, c := range children {
		total += math.Max(c.size, 1)
	}
	if total <= 0 {
		return nil
	}

	var tiles []*Tile
	if rect.W >= rect.H {
		cum := 0.0
		prevX := rect.X
		for _, c := range children {
			cum += math.Max(c.size, 1)
			x1 := rect.X + math.Round((cum/total)*rect.W)
			w := x1 - prevX
			if w < minTile {
				continue
			}
			r := Rect{X: prevX, Y: rect.Y, W: w, H: rect.H}
			if tile := layoutNode(t, c.id, r, opts); tile != nil {
				tiles = append(tiles, tile)
			}
			prevX = x1
		}
		return tiles
	}

	cum := 0.0
	prevY := rect.Y
	for _, c := range children {
		cum += math.Max(c.size, 1)
		y1 := rect.Y + math.Round((cum/total)*rect.H)
		h := y1 - prevY
		if h < minTile {
			continue
		}
		r := Rect{X: rect.X, Y: prevY, W: rect.W, H: h}
		if tile := layoutNode(t, c.id, r, opts); tile != nil {
			tiles = append(tiles, tile)
		}
		prevY = y1
	}
	return tiles
}
