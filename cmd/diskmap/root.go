// Command diskmap drives the scan engine, cache codec, and treemap/cushion
// layout offline from the command line: no GUI, just the model.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootVerbose bool

var rootCommand = &cobra.Command{
	Use:   "diskmap",
	Short: "Scan, cache, and lay out disk usage trees without a GUI",
	Long: `diskmap builds the same node tree a qdirstat-style GUI would, using
the same scan, cache, and layout model, and exposes it through subcommands
instead of a widget toolkit.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if rootVerbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")

	rootCommand.AddCommand(scanCommand)
	rootCommand.AddCommand(cacheCommand)
	rootCommand.AddCommand(treemapCommand)
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
