// Package cushion implements the cushion rendering model (spec.md §4.9):
// a per-tile quadratic height field accumulated through ridge addition on
// each subdivision, shaded by a fixed light direction into the tile's
// pixel buffer, rendered by a bounded worker pool (the render plane of
// spec.md §5).
package cushion

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/arcfs/diskmap/internal/categorizer"
	"github.com/arcfs/diskmap/internal/treemap"
)

// Surface holds the quadratic cushion coefficients for one tile:
// z(x,y) = XX2*x^2 + XX1*x + YY2*y^2 + YY1*y.
type Surface struct {
	XX2, XX1, YY2, YY1 float64
}

// HeightSeed returns the root height seed sequence H[k] = 4*h0*r^k
// (spec.md §4.9), bounded by n entries; beyond index n-1 the last
// generated value is reused by the caller.
func HeightSeed(h0, r float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	h := 4 * h0
	for k := 0; k < n; k++ {
		out[k] = h
		h *= r
	}
	return out
}

// heightAt returns seeds[depth], clamping to the last entry once depth
// runs past the configured sequence length.
func heightAt(seeds []float64, depth int) float64 {
	if len(seeds) == 0 {
		return 0
	}
	if depth >= len(seeds) {
		depth = len(seeds) - 1
	}
	return seeds[depth]
}

// HorizontalRidge adds a ridge along [x0, x1] to a cushion inherited from
// the parent tile (spec.md §4.9).
func (s Surface) HorizontalRidge(x0, x1, h float64) Surface {
	span := x1 - x0
	if span == 0 {
		return s
	}
	s.XX2 -= h / span
	s.XX1 += h * (x0 + x1) / span
	return s
}

// VerticalRidge adds a ridge along [y0, y1] to a cushion inherited from
// the parent tile.
func (s Surface) VerticalRidge(y0, y1, h float64) Surface {
	span := y1 - y0
	if span == 0 {
		return s
	}
	s.YY2 -= h / span
	s.YY1 += h * (y0 + y1) / span
	return s
}

// Light is the fixed shading direction, derived from an ambient
// intensity a so that |L| = 1-a (spec.md §4.9). There is no reference
// default for Lx/Ly/Lz/a anywhere in the source this spec was distilled
// from; these match the values qdirstat itself ships as its built-in
// cushion defaults (light coming from upper-left, mostly overhead).
type Light struct {
	Lx, Ly, Lz float64
	Ambient    float64
}

// DefaultLight is the package default: light tilted from the upper
// left, 50% ambient fill so fully flat tiles still render at half
// brightness rather than black.
var DefaultLight = NewLight(0.09759, -0.19518, 1.0, 0.5)

// NewLight builds a Light from a raw (dx, dy, dz) direction and an
// ambient intensity a, rescaling the direction so |L| = 1-a.
func NewLight(dx, dy, dz, ambient float64) Light {
	norm := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if norm == 0 {
		norm = 1
	}
	scale := (1 - ambient) / norm
	return Light{Lx: dx * scale, Ly: dy * scale, Lz: dz * scale, Ambient: ambient}
}

// Shade computes cos(alpha) for tile-local pixel center (x+0.5, y+0.5)
// under surface s, clamped to [0, 1] (spec.md §4.9).
func (l Light) Shade(s Surface, x, y float64) float64 {
	nx := s.XX1 + 2*s.XX2*(x+0.5)
	ny := s.YY1 + 2*s.YY2*(y+0.5)
	denom := math.Sqrt(nx*nx + ny*ny + 1)
	dot := l.Lx*nx + l.Ly*ny + l.Lz
	cos := l.Ambient + math.Max(0, dot/denom)
	if cos < 0 {
		cos = 0
	}
	if cos > 1 {
		cos = 1
	}
	return cos
}

// Shaded returns color scaled by the shading intensity at (x, y).
func Shaded(color categorizer.RGB, intensity float64) categorizer.RGB {
	return categorizer.RGB{
		R: scaleChannel(color.R, intensity),
		G: scaleChannel(color.G, intensity),
		B: scaleChannel(color.B, intensity),
	}
}

func scaleChannel(c uint8, intensity float64) uint8 {
	v := float64(c) * intensity
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// Options configures the cushion builder and render pool.
type Options struct {
	Light Light
	// HeightScale is r in H[k] = 4*h0*r^k.
	HeightScale float64
	// RootHeight is h0, the seed height of the toplevel tile.
	RootHeight float64
	// SeedDepth bounds the generated H sequence; depths beyond it reuse
	// the last entry.
	SeedDepth int
	// ParallelThreshold is the parent tile area (px^2) above which a child
	// subtree may be handed to the render pool as one task; below it the
	// walk keeps descending and hands each leaf to the pool on its own
	// (spec.md §4.9 "its parent is large enough").
	ParallelThreshold float64
	// Workers bounds the render pool's concurrency. Zero selects
	// 2*runtime.NumCPU(), matching spec.md §5's "2 x physical cores".
	Workers int
	// Cancel is checked between tiles so a rebuild triggered while a
	// prior one is still painting can be abandoned early (spec.md §5).
	// A nil Cancel means the render can never be interrupted early.
	Cancel *Cancel
}

func (o Options) withDefaults() Options {
	if o.HeightScale == 0 {
		o.HeightScale = 0.75
	}
	if o.RootHeight == 0 {
		o.RootHeight = 1.0
	}
	if o.SeedDepth == 0 {
		o.SeedDepth = 8
	}
	if o.ParallelThreshold == 0 {
		o.ParallelThreshold = 640 * 480
	}
	if (o.Light == Light{}) {
		o.Light = DefaultLight
	}
	return o
}

// Pixel is one shaded sample of a leaf tile's cushion: X and Y are the leaf
// tile's origin in layout coordinates, and Color is the tile color shaded at
// the tile's centre.
type Pixel struct {
	X, Y  int
	Color categorizer.RGB
}

// Plane is the cushion render of one laid-out treemap tile: the
// quadratic surface that produced it plus shaded pixels for every leaf
// tile in its subtree.
type Plane struct {
	Tile    *treemap.Tile
	Surface Surface
	Pixels  []Pixel
}

// Build walks a laid-out treemap from its root, accumulating cushion
// surfaces via ridge addition at every subdivision, and renders leaf
// tiles through a bounded worker pool: a subtree that qualifies goes to the
// pool as one task, and any other leaf reached by the walk goes as a task
// of its own (spec.md §4.9, §5).
//
// minTile is the layout's own minimum tile size (6px squarified, 4px
// slice-and-dice) — tiles smaller than it are never scheduled to the
// pool, matching the spec's "tile itself is not smaller than a minimum"
// clause.
func Build(root *treemap.Tile, opts Options, minTile float64) []*Plane {
	opts = opts.withDefaults()
	if root == nil {
		return nil
	}
	cancel := opts.Cancel
	if cancel == nil {
		cancel = &Cancel{}
	}

	seeds := HeightSeed(opts.RootHeight, opts.HeightScale, opts.SeedDepth)
	rootSurface := Surface{}

	var planes []*Plane
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, poolSize(opts.Workers))

	addPlane := func(p *Plane) {
		mu.Lock()
		planes = append(planes, p)
		mu.Unlock()
	}

	// walk descends the tree one tile at a time, looking for the point at
	// which a subtree first qualifies for the render pool (spec.md §4.9's
	// three-clause trigger); once found, the whole subtree is handed to
	// renderSubtree as a single task instead of being walked further.
	var walk func(tile *treemap.Tile, surf Surface, depth int, parentArea float64)
	walk = func(tile *treemap.Tile, surf Surface, depth int, parentArea float64) {
		if tile == nil || cancel.IsSet() {
			return
		}

		tileArea := tile.Rect.W * tile.Rect.H
		qualifies := parentArea > opts.ParallelThreshold &&
			tile.Rect.W >= minTile && tile.Rect.H >= minTile &&
			(tileArea <= opts.ParallelThreshold || onlyLeaves(tile))

		if qualifies || tile.Leaf {
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				addPlane(renderSubtree(tile, surf, seeds, depth, opts.Light, cancel))
			}()
			return
		}

		h := heightAt(seeds, depth+1)
		for _, c := range tile.Children {
			if cancel.IsSet() {
				return
			}
			childSurf := surf
			if c.Rect.W < tile.Rect.W {
				childSurf = childSurf.HorizontalRidge(c.Rect.X, c.Rect.X+c.Rect.W, h)
			}
			if c.Rect.H < tile.Rect.H {
				childSurf = childSurf.VerticalRidge(c.Rect.Y, c.Rect.Y+c.Rect.H, h)
			}
			walk(c, childSurf, depth+1, tileArea)
		}
	}

	walk(root, rootSurface, 0, math.Inf(1))
	wg.Wait()
	return planes
}

func poolSize(workers int) int {
	if workers > 0 {
		return workers
	}
	return 2 * runtime.NumCPU()
}

func onlyLeaves(t *treemap.Tile) bool {
	for _, c := range t.Children {
		if !c.Leaf {
			return false
		}
	}
	return true
}

// renderSubtree accumulates ridges down through tile's descendants and
// shades every leaf it finds, checking the cancellation flag between
// tiles (spec.md §5 "a cancellation flag is checked between tiles").
func renderSubtree(tile *treemap.Tile, surf Surface, seeds []float64, depth int, light Light, cancel *Cancel) *Plane {
	plane := &Plane{Tile: tile, Surface: surf}
	var visit func(t *treemap.Tile, s Surface, d int)
	visit = func(t *treemap.Tile, s Surface, d int) {
		if t == nil || cancel.IsSet() {
			return
		}
		if t.Leaf {
			intensity := light.Shade(s, t.Rect.W/2, t.Rect.H/2)
			plane.Pixels = append(plane.Pixels, Pixel{
				X:     int(t.Rect.X),
				Y:     int(t.Rect.Y),
				Color: Shaded(t.Color, intensity),
			})
			return
		}
		h := heightAt(seeds, d+1)
		for _, c := range t.Children {
			if cancel.IsSet() {
				return
			}
			childSurf := s
			if c.Rect.W < t.Rect.W {
				childSurf = childSurf.HorizontalRidge(c.Rect.X, c.Rect.X+c.Rect.W, h)
			}
			if c.Rect.H < t.Rect.H {
				childSurf = childSurf.VerticalRidge(c.Rect.Y, c.Rect.Y+c.Rect.H, h)
			}
			visit(c, childSurf, d+1)
		}
	}
	visit(tile, surf, depth)
	return plane
}

// Cancel aborts an in-flight Build as soon as its render tasks next
// check the flag between tiles. Callers that need the three-state
// none/cancel/restart model of spec.md §5 layer it over repeated Build
// calls: a restart is simply Cancel followed by a new Build.
type Cancel struct {
	flag atomic.Bool
}

func (c *Cancel) Set()        { c.flag.Store(true) }
func (c *Cancel) IsSet() bool { return c.flag.Load() }
func (c *Cancel) Reset()      { c.flag.Store(false) }
