package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw/pkg/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show team overview — agents, active tasks, and pending requests",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	tid, err := resolveTeamID()
	if err != nil {
		return err
	}
	api, err := apiClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	team, err := api.GetTeam(ctx, tid)
	if err != nil {
		return err
	}
	fmt.Println(bold("Team: " + team.Name))
	fmt.Println()

	// Agents
	fmt.Println(bold("Agents:"))
	agents, err := api.ListAgents(ctx, tid)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("  (none)")
	}
	for _, a := range agents {
		adapter := "default"
		if v, ok := a.Config["adapter"].(string); ok && v != "" {
			adapter = v
		}
		fmt.Printf("  %-20s  %-10s  %-20s  adapter=%s\n", a.Name, a.Role, colorStatus(a.Status), adapter)
	}

	// Active tasks
	fmt.Println()
	fmt.Println(bold("Active tasks:"))
	tasks, err := api.ListTasks(ctx, tid, client.TaskFilter{Status: client.TaskInProgress, Limit: 20})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("  (none)")
	}
	for _, t := range tasks {
		assignee := "unassigned"
		if t.AssigneeID != nil {
			assignee = shortID(*t.AssigneeID)
		}
		fmt.Printf("  #%-5d  %-50s  → %s\n", t.ID, truncate(t.Title, 50), assignee)
	}

	// Pending human requests
	fmt.Println()
	fmt.Println(bold("Pending human requests:"))
	reqs, err := api.ListHumanRequests(ctx, tid, false)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Println("  (none)")
		return nil
	}
	for _, r := range reqs {
		fmt.Printf("  %s  [%s%s%s]  %s\n", r.ID, colorCyan, r.Kind, colorReset, truncate(r.Question, 60))
	}
	fmt.Printf("\n  Respond with: openclawctl respond <id> \"your answer\"\n")
	return nil
}
