package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arcfs/diskmap/internal/diskcache"
	"github.com/arcfs/diskmap/internal/filter"
	"github.com/arcfs/diskmap/internal/mount"
	"github.com/arcfs/diskmap/internal/scan"
	"github.com/arcfs/diskmap/internal/tree"
)

// scanOptions bundles the flags every subcommand that performs a live scan
// shares (scan, cache write, treemap run against a live path).
type scanOptions struct {
	crossFilesystems bool
	ignoreHardLinks  bool
	excludePatterns  []string
}

// runScan builds a fresh tree rooted at path and drives it to completion,
// returning the tree and the toplevel node id (spec.md §4.4).
func runScan(ctx context.Context, path string, opts scanOptions) (*tree.Tree, tree.NodeID, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, tree.InvalidNodeID, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil || !info.IsDir() {
		return nil, tree.InvalidNodeID, fmt.Errorf("not a directory: %s", absPath)
	}

	mounts, err := mount.Load()
	if err != nil {
		logrus.WithError(err).Warn("failed to load mount table, filesystem-crossing checks disabled")
		mounts = nil
	}

	filters := filter.NewSet()
	for _, pat := range opts.excludePatterns {
		rule, err := filter.NewExcludeRule(pat, filter.KindWildcard, false, false, false)
		if err != nil {
			return nil, tree.InvalidNodeID, fmt.Errorf("exclude pattern %q: %w", pat, err)
		}
		filters.AddRule(rule)
	}

	tr := tree.NewTree()
	tr.SetIgnoreHardLinks(opts.ignoreHardLinks)

	eng := scan.NewEngine(tr, scan.Config{
		Mounts:           mounts,
		Filters:          filters,
		CrossFilesystems: opts.crossFilesystems,
		IgnoreHardLinks:  opts.ignoreHardLinks,
	})

	topID := tr.NewDir(absPath, time.Now(), true)
	tr.InsertChild(tr.Root(), topID)
	eng.Enqueue(scan.NewLocalDirReadJob(topID, absPath))

	go eng.Run(ctx)

	select {
	case ev := <-eng.Events():
		if ev.Kind == scan.EventAborted {
			return tr, topID, ctx.Err()
		}
	case <-ctx.Done():
		return tr, topID, ctx.Err()
	}

	return tr, topID, nil
}

// writeCacheFile writes id's subtree to path in the gzipped .qdirstat.cache
// text format (spec.md §4.7).
func writeCacheFile(tr *tree.Tree, id tree.NodeID, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return diskcache.Write(f, tr, id)
}
