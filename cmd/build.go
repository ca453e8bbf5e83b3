package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/fleetcache/internal/refresh"
)

var buildWait bool

var buildCmd = &cobra.Command{
	Use:   "build [profile]",
	Short: "Rebuild the inventory cache for a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		profileName := args[0]
		start := time.Now()
		t, err := a.sched.StartBuild(profileName)
		if err != nil {
			return err
		}
		fmt.Printf("Build started for %s (task %s)\n", profileName, t.ID)

		if !buildWait {
			return nil
		}

		t, err = a.sched.Await(cmd.Context(), t.ID)
		if err != nil {
			return err
		}
		if t.State != refresh.TaskSucceeded {
			return fmt.Errorf("build %s: %s", t.State, t.Error)
		}

		sum, err := a.queries.FleetSummary(profileName)
		if err != nil {
			return err
		}
		fmt.Printf("Done in %v: %d compartments, %d resources", time.Since(start).Round(time.Millisecond),
			sum.Stats.CompartmentsScanned, sum.TotalResources)
		if n := sum.Stats.SkippedSubtrees + sum.Stats.FailedUnits + sum.Stats.IntegrityDrops; n > 0 {
			fmt.Printf(" (%d partial failures, see `fleetcache history %s`)", n, profileName)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVarP(&buildWait, "wait", "w", true, "Wait for the build to finish")
	rootCmd.AddCommand(buildCmd)
}
