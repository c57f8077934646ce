package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arcfs/diskmap/internal/view"
)

var scanFlags struct {
	crossFilesystems bool
	ignoreHardLinks  bool
	exclude          []string
	cacheOut         string
}

var scanCommand = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan a directory tree and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runScanCommand,
}

func init() {
	flags := scanCommand.Flags()
	flags.SortFlags = false
	flags.BoolVar(&scanFlags.crossFilesystems, "cross-filesystems", false, "Descend into mounted filesystems instead of leaving them on-request-only")
	flags.BoolVar(&scanFlags.ignoreHardLinks, "ignore-hard-links", false, "Count every hard-linked file's full size instead of dividing by link count")
	flags.StringArrayVar(&scanFlags.exclude, "exclude", nil, "Wildcard pattern to exclude (repeatable)")
	flags.StringVar(&scanFlags.cacheOut, "cache-out", "", "Write a .qdirstat.cache.gz of the scanned tree to this path")
}

func runScanCommand(cmd *cobra.Command, args []string) error {
	tr, topID, err := runScan(context.Background(), args[0], scanOptions{
		crossFilesystems: scanFlags.crossFilesystems,
		ignoreHardLinks:  scanFlags.ignoreHardLinks,
		excludePatterns:  scanFlags.exclude,
	})
	if err != nil {
		return err
	}

	row := view.BuildRow(tr, topID, nil)
	fmt.Printf("%s\n", tr.Name(topID))
	fmt.Printf("  total size:   %s\n", row.Size)
	fmt.Printf("  files:        %d\n", tr.TotalFiles(topID))
	fmt.Printf("  subdirs:      %d\n", tr.TotalSubdirs(topID))
	fmt.Printf("  items:        %d\n", tr.TotalItems(topID))
	fmt.Printf("  latest mtime: %s\n", humanize.Time(tr.TotalLatestMtime(topID)))
	if errCount := tr.TotalErrSubdirCount(topID); errCount > 0 {
		fmt.Printf("  read errors:  %d subdirectories\n", errCount)
	}

	if scanFlags.cacheOut != "" {
		if err := writeCacheFile(tr, topID, scanFlags.cacheOut); err != nil {
			return fmt.Errorf("writing cache: %w", err)
		}
		fmt.Printf("  cache written to %s\n", scanFlags.cacheOut)
	}
	return nil
}
