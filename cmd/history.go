package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [profile]",
	Short: "Show recent builds for a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		entries, err := a.journal.Recent(args[0], historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No builds recorded.")
			return nil
		}

		for _, e := range entries {
			dur := e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond)
			fmt.Printf("%s  %-10s %6v  %d compartments, %d resources",
				e.StartedAt.Format(time.RFC3339), e.Outcome, dur,
				e.Stats.CompartmentsScanned, e.Stats.ResourcesFound)
			if n := e.Stats.SkippedSubtrees + e.Stats.FailedUnits + e.Stats.IntegrityDrops; n > 0 {
				fmt.Printf(", %d partial failures", n)
			}
			if e.Error != "" {
				fmt.Printf("  (%s)", e.Error)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Max entries to show")
	rootCmd.AddCommand(historyCmd)
}
