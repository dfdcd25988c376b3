package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "graphflow",
	Short: "Validate and run agent workflow graphs",
	Long: `graphflow stores workflow definitions built as node graphs, validates
them (schema, duplicate ids, dangling edges, cycles) and executes runs of
valid definitions through configurable content agents.

Examples:
  graphflow serve
  graphflow validate blog-post.json
  graphflow validate pipeline.yaml`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
