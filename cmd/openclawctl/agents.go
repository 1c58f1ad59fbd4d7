package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents in the team",
	RunE:  runAgents,
}

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List agent adapters registered on the server",
	RunE:  runAdapters,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(adaptersCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	tid, err := resolveTeamID()
	if err != nil {
		return err
	}
	api, err := apiClient()
	if err != nil {
		return err
	}

	agents, err := api.ListAgents(cmd.Context(), tid)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents found.")
		return nil
	}

	fmt.Println(bold(fmt.Sprintf("Agents (%d):", len(agents))))
	fmt.Println()
	for _, a := range agents {
		adapter := "—"
		if v, ok := a.Config["adapter"].(string); ok && v != "" {
			adapter = v
		}
		model := a.Model
		if model == "" {
			model = "—"
		}
		fmt.Printf("  %s  %-20s  %-10s  %-20s  model=%s  adapter=%s\n",
			shortID(a.ID), a.Name, a.Role, colorStatus(a.Status), model, adapter)
	}
	return nil
}

func runAdapters(cmd *cobra.Command, args []string) error {
	api, err := apiClient()
	if err != nil {
		return err
	}

	adapters, err := api.Adapters(cmd.Context())
	if err != nil {
		return err
	}
	if len(adapters) == 0 {
		fmt.Println("No adapters registered on the server.")
		return nil
	}

	fmt.Println(bold("Available adapters:"))
	fmt.Println()
	for _, name := range adapters {
		fmt.Printf("  %-20s  %sready%s\n", name, colorGreen, colorReset)
	}
	return nil
}
