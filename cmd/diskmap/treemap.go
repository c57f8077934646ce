package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcfs/diskmap/internal/categorizer"
	"github.com/arcfs/diskmap/internal/cushion"
	"github.com/arcfs/diskmap/internal/diskcache"
	"github.com/arcfs/diskmap/internal/treemap"
	"github.com/arcfs/diskmap/internal/tree"
)

var treemapFlags struct {
	path    string
	cache   string
	width   float64
	height  float64
	mode    string
	cushion bool
	out     string
}

var treemapCommand = &cobra.Command{
	Use:   "treemap",
	Short: "Lay out a tree as a treemap and print it as JSON",
	RunE:  runTreemap,
}

func init() {
	flags := treemapCommand.Flags()
	flags.StringVar(&treemapFlags.path, "path", "", "Directory to scan first")
	flags.StringVar(&treemapFlags.cache, "cache", "", "Cache file to load instead of scanning")
	flags.Float64Var(&treemapFlags.width, "width", 1024, "Treemap pixel width")
	flags.Float64Var(&treemapFlags.height, "height", 768, "Treemap pixel height")
	flags.StringVar(&treemapFlags.mode, "mode", "squarified", `Tiling algorithm: "squarified" or "slicedice"`)
	flags.BoolVar(&treemapFlags.cushion, "cushion", false, "Also compute cushion-shaded pixel planes")
	flags.StringVar(&treemapFlags.out, "out", "", "Write JSON to this file instead of stdout")
}

func runTreemap(cmd *cobra.Command, args []string) error {
	if (treemapFlags.path == "") == (treemapFlags.cache == "") {
		return fmt.Errorf("exactly one of --path or --cache must be set")
	}

	var tr *tree.Tree
	var topID tree.NodeID
	var err error

	if treemapFlags.cache != "" {
		f, ferr := os.Open(treemapFlags.cache)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		tr = tree.NewTree()
		topID, err = diskcache.Read(f, tr, tr.Root())
		if err != nil {
			return fmt.Errorf("reading cache: %w", err)
		}
	} else {
		tr, topID, err = runScan(context.Background(), treemapFlags.path, scanOptions{})
		if err != nil {
			return err
		}
	}

	mode := treemap.ModeSquarified
	if treemapFlags.mode == "slicedice" {
		mode = treemap.ModeSliceAndDice
	}

	rect := treemap.Rect{X: 0, Y: 0, W: treemapFlags.width, H: treemapFlags.height}
	tile := treemap.Layout(tr, topID, rect, treemap.Options{
		Mode:        mode,
		Categorizer: categorizer.NewDefault(),
	})

	output := struct {
		Tile   *treemap.Tile    `json:"tile"`
		Planes []*cushion.Plane `json:"planes,omitempty"`
	}{Tile: tile}

	if treemapFlags.cushion && tile != nil {
		minTile := 6.0
		if mode == treemap.ModeSliceAndDice {
			minTile = 4
		}
		output.Planes = cushion.Build(tile, cushion.Options{}, minTile)
	}

	w := os.Stdout
	if treemapFlags.out != "" {
		f, ferr := os.Create(treemapFlags.out)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}
