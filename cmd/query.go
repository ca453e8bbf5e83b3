package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/fleetcache/api"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [profile]",
	Short: "Fleet summary for a cached profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		sum, err := a.queries.FleetSummary(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Profile:   %s (tenancy %s)\n", sum.Profile, sum.TenancyID)
		fmt.Printf("Snapshot:  built %s (%s old)\n",
			sum.BuiltAt.Format(time.RFC3339), sum.SnapshotAge.Round(time.Second))
		fmt.Printf("Resources: %d total\n", sum.TotalResources)

		kinds := make([]string, 0, len(sum.ByKind))
		for k := range sum.ByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("  %-20s %d\n", k, sum.ByKind[api.ResourceKind(k)])
		}

		comps := make([]string, 0, len(sum.ByCompartment))
		for c := range sum.ByCompartment {
			comps = append(comps, c)
		}
		sort.Strings(comps)
		fmt.Println("By compartment:")
		for _, c := range comps {
			fmt.Printf("  %-20s %d\n", c, sum.ByCompartment[c])
		}

		if n := sum.Stats.SkippedSubtrees + sum.Stats.FailedUnits + sum.Stats.IntegrityDrops; n > 0 {
			fmt.Printf("Warnings: %d skipped subtrees, %d failed units, %d integrity drops\n",
				sum.Stats.SkippedSubtrees, sum.Stats.FailedUnits, sum.Stats.IntegrityDrops)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [profile] [pattern]",
	Short: "Search resources by display name substring",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		pattern := ""
		if len(args) > 1 {
			pattern = args[1]
		}
		res, err := a.queries.Search(args[0], pattern)
		if err != nil {
			return err
		}
		for _, r := range res {
			fmt.Printf("%-30s %-18s %-16s %s\n", r.Name, r.Kind, r.Region, r.ID)
		}
		fmt.Printf("%d resources\n", len(res))
		return nil
	},
}

var compartmentsCmd = &cobra.Command{
	Use:   "compartments [profile]",
	Short: "List the compartment tree of a cached profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		comps, err := a.queries.ListCompartments(args[0])
		if err != nil {
			return err
		}
		sort.Slice(comps, func(i, j int) bool { return comps[i].Name < comps[j].Name })
		for _, c := range comps {
			fmt.Printf("%-30s %s\n", c.Name, c.ID)
		}
		return nil
	},
}

var resourcesCmd = &cobra.Command{
	Use:   "resources [profile] [compartment]",
	Short: "List resources in a compartment subtree (by name or ID)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.queries.ByCompartment(args[0], args[1])
		if err != nil {
			return err
		}
		for _, r := range res {
			fmt.Printf("%-30s %-18s %-16s %s\n", r.Name, r.Kind, r.Region, r.Status)
		}
		fmt.Printf("%d resources\n", len(res))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd, searchCmd, compartmentsCmd, resourcesCmd)
}
