package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var costsDays int

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show cost summary for the team",
	RunE:  runCosts,
}

func init() {
	costsCmd.Flags().IntVarP(&costsDays, "days", "d", 7, "Lookback period in days")
	rootCmd.AddCommand(costsCmd)
}

func runCosts(cmd *cobra.Command, args []string) error {
	tid, err := resolveTeamID()
	if err != nil {
		return err
	}
	api, err := apiClient()
	if err != nil {
		return err
	}

	report, err := api.TeamCosts(cmd.Context(), tid, costsDays)
	if err != nil {
		return err
	}

	fmt.Println(bold(fmt.Sprintf("Cost Summary (last %d days)", report.PeriodDays)))
	fmt.Println()
	fmt.Printf("  Total cost:     $%.4f\n", report.TotalCostUSD)
	fmt.Printf("  Sessions:       %d\n", report.SessionCount)
	fmt.Printf("  Tokens in:      %s\n", formatCount(report.TotalTokensIn))
	fmt.Printf("  Tokens out:     %s\n", formatCount(report.TotalTokensOut))

	if len(report.PerAgent) > 0 {
		fmt.Println()
		fmt.Println(bold("  Per agent:"))
		for _, a := range report.PerAgent {
			name := a.AgentName
			if name == "" {
				name = shortID(a.AgentID)
			}
			fmt.Printf("    %-20s  $%.4f  (%d sessions)\n", name, a.CostUSD, a.Sessions)
		}
	}

	if len(report.PerModel) > 0 {
		fmt.Println()
		fmt.Println(bold("  Per model:"))
		for _, m := range report.PerModel {
			model := m.Model
			if model == "" {
				model = "unknown"
			}
			fmt.Printf("    %-30s  $%.4f  (%d sessions)\n", model, m.CostUSD, m.Sessions)
		}
	}
	return nil
}
