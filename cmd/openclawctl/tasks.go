package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw/pkg/client"
)

var (
	tasksStatus string
	tasksLimit  int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks for the team",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksStatus, "status", "s", "", "Filter by status")
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "l", 50, "Max results")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	tid, err := resolveTeamID()
	if err != nil {
		return err
	}
	api, err := apiClient()
	if err != nil {
		return err
	}

	tasks, err := api.ListTasks(cmd.Context(), tid, client.TaskFilter{
		Status: tasksStatus,
		Limit:  tasksLimit,
	})
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	fmt.Println(bold(fmt.Sprintf("Tasks (%d):", len(tasks))))
	fmt.Println()
	header := fmt.Sprintf("%-6s  %-14s  %-10s  %-60s", "ID", "Status", "Priority", "Title")
	fmt.Println(bold(header))
	fmt.Println(strings.Repeat("-", len(header)))
	for _, t := range tasks {
		fmt.Printf("%-6d  %-14s  %-10s  %-60s\n", t.ID, t.Status, t.Priority, truncate(t.Title, 60))
	}
	return nil
}
