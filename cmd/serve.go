package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/fleetcache/internal/facade"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fleetcache tools over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		s := facade.NewServer(a.sched, a.queries, version)
		return facade.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
