package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcfs/diskmap/internal/diskcache"
	"github.com/arcfs/diskmap/internal/tree"
	"github.com/arcfs/diskmap/internal/view"
)

var cacheCommand = &cobra.Command{
	Use:   "cache",
	Short: "Read or write a .qdirstat.cache.gz file",
}

var cacheReadFlags struct {
	file string
}

var cacheReadCommand = &cobra.Command{
	Use:   "read",
	Short: "Load a cache file and print its summary",
	RunE:  runCacheRead,
}

var cacheWriteFlags struct {
	path string
	out  string
}

var cacheWriteCommand = &cobra.Command{
	Use:   "write",
	Short: "Scan a directory and write it as a cache file",
	RunE:  runCacheWrite,
}

func init() {
	cacheCommand.AddCommand(cacheReadCommand)
	cacheCommand.AddCommand(cacheWriteCommand)

	cacheReadCommand.Flags().StringVar(&cacheReadFlags.file, "file", "", "Cache file to read (required)")
	cacheReadCommand.MarkFlagRequired("file")

	cacheWriteCommand.Flags().StringVar(&cacheWriteFlags.path, "path", "", "Directory to scan (required)")
	cacheWriteCommand.Flags().StringVar(&cacheWriteFlags.out, "out", "", "Cache file to write (required)")
	cacheWriteCommand.MarkFlagRequired("path")
	cacheWriteCommand.MarkFlagRequired("out")
}

func runCacheRead(cmd *cobra.Command, args []string) error {
	f, err := os.Open(cacheReadFlags.file)
	if err != nil {
		return err
	}
	defer f.Close()

	tr := tree.NewTree()
	topID, err := diskcache.Read(f, tr, tr.Root())
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}

	row := view.BuildRow(tr, topID, nil)
	fmt.Printf("%s\n", tr.Name(topID))
	fmt.Printf("  total size: %s\n", row.Size)
	fmt.Printf("  files:      %d\n", tr.TotalFiles(topID))
	fmt.Printf("  subdirs:    %d\n", tr.TotalSubdirs(topID))
	fmt.Printf("  items:      %d\n", tr.TotalItems(topID))
	return nil
}

func runCacheWrite(cmd *cobra.Command, args []string) error {
	tr, topID, err := runScan(context.Background(), cacheWriteFlags.path, scanOptions{})
	if err != nil {
		return err
	}
	if err := writeCacheFile(tr, topID, cacheWriteFlags.out); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	fmt.Printf("wrote %s\n", cacheWriteFlags.out)
	return nil
}
