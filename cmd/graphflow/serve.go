package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/graphflowhq/graphflow/pkg/graphflow"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run database migrations and start the engine and HTTP API",
	Long: `Serve migrates the configured database, seeds definitions from
GRAPHFLOW_SEED_DEFINITIONS_DIR when set, starts the run engine and serves
the HTTP API until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		graphflow.SetupLogger()
		if err := graphflow.Start(nil); err != nil {
			slog.Error("Engine exited with error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
