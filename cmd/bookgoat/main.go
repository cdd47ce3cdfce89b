package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	verbose       bool
	batchSize     int
	batchDelay    string
	headless      bool
	selectorsFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bookgoat",
		Short: "bookgoat — ISBN to catalog metadata scraper",
		Long: `bookgoat resolves a list of ISBNs to product pages on a retail site and
extracts catalog metadata from each page.

Stages:
  • resolve  ISBN list  -> intermediate URL dataset (site search in a browser)
  • details  URL dataset -> final book dataset (selector-driven extraction)

Items are processed in fixed-size concurrent batches with a pause between
batches. Each item gets its own browser session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file path")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.IntVarP(&batchSize, "batch-size", "b", 0, "items per concurrent batch (overrides engine.batch_size)")
	pf.StringVar(&batchDelay, "delay", "", "pause between batches, e.g. 2s (overrides engine.inter_batch_delay)")
	pf.BoolVar(&headless, "headless", true, "run browsers headless (overrides browser.headless)")
	pf.StringVar(&selectorsFile, "selectors", "", "selector YAML file (overrides site.selectors_file)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(detailsCmd())
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
