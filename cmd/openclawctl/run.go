package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw/pkg/client"
)

var (
	runAgentID string
	runAdapter string
	runNoPoll  bool
)

// pollTimeout is a little longer than the default agent run timeout so
// the agent side gives up first.
const (
	pollEvery   = 5 * time.Second
	pollTimeout = 35 * time.Minute
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Create a task and dispatch a coding agent to work on it",
	Long: `Creates a task from PROMPT, assigns it to an idle engineer agent
(or the agent given with --agent-id), moves it to in_progress and
dispatches an agent run. Unless --no-poll is set, the command then
polls the task until it reaches review or a terminal status.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runAgentID, "agent-id", "a", "", "Agent ID (auto-picks an idle engineer if omitted)")
	runCmd.Flags().StringVar(&runAdapter, "adapter", "", `Adapter override (e.g. "claude")`)
	runCmd.Flags().BoolVar(&runNoPoll, "no-poll", false, "Return immediately without polling")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt := args[0]
	tid, err := resolveTeamID()
	if err != nil {
		return err
	}
	api, err := apiClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// 1. Find an idle engineer agent (or use the one specified)
	aid := runAgentID
	if aid != "" {
		fmt.Printf("Using agent %s\n", aid)
	} else {
		fmt.Println("Finding idle engineer agent...")
		agents, err := api.ListAgents(ctx, tid)
		if err != nil {
			return err
		}
		for _, a := range agents {
			if a.Role == "engineer" && a.Status == client.AgentIdle {
				aid = a.ID
				fmt.Printf("Selected agent: %s (%s)\n", a.Name, a.ID)
				break
			}
		}
		if aid == "" {
			return fmt.Errorf("no idle engineer agents found; create one or wait")
		}
	}

	// 2. Create the task
	title := prompt
	if len(title) > 500 {
		title = title[:500]
	}
	fmt.Printf("Creating task: %s...\n", truncate(prompt, 80))
	task, err := api.CreateTask(ctx, tid, client.CreateTaskRequest{
		Title:       title,
		Description: prompt,
		Priority:    "medium",
		AssigneeID:  &aid,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Task #%d created\n", task.ID)

	// 3. Move it to in_progress
	if _, err := api.ChangeTaskStatus(ctx, task.ID, client.TaskInProgress, aid); err != nil {
		return err
	}

	// 4. Dispatch the agent run
	fmt.Println("Dispatching agent run...")
	started, err := api.RunAgent(ctx, aid, client.RunAgentInput{
		TaskID:  &task.ID,
		Adapter: runAdapter,
	})
	if err != nil {
		return err
	}
	success(fmt.Sprintf("Agent dispatched (adapter %s)", started.Adapter))

	if runNoPoll {
		fmt.Printf("Task #%d | Agent %s\n", task.ID, aid)
		return nil
	}

	// 5. Poll until the task leaves in_progress
	fmt.Println()
	start := time.Now()
	lastStatus := client.TaskInProgress
	var pending []client.HumanRequest

	for {
		time.Sleep(pollEvery)
		elapsed := time.Since(start)

		task, err = api.GetTask(ctx, task.ID)
		if err != nil {
			return err
		}
		pending = pendingForTask(ctx, api, tid, task.ID)

		reqStr := ""
		if len(pending) > 0 {
			reqStr = fmt.Sprintf("%s | %d pending request(s)%s", colorYellow, len(pending), colorReset)
		}
		fmt.Printf("\r  [%.0fs] Task #%d: %s%s    ", elapsed.Seconds(), task.ID, colorStatus(task.Status), reqStr)

		if task.Status != lastStatus {
			fmt.Println()
			lastStatus = task.Status
		}

		if task.Status == client.TaskDone || task.Status == client.TaskCancelled || task.Status == client.TaskInReview {
			fmt.Println()
			break
		}
		if elapsed > pollTimeout {
			fmt.Println()
			warn("Polling timed out (35 min). Agent may still be running.")
			break
		}
	}

	// 6. Summary
	fmt.Println()
	fmt.Println(bold("--- Run Summary ---"))
	fmt.Printf("  Task:     #%d — %s\n", task.ID, truncate(task.Title, 60))
	fmt.Printf("  Status:   %s\n", colorStatus(task.Status))
	fmt.Printf("  Agent:    %s\n", aid)
	fmt.Printf("  Duration: %.0fs\n", time.Since(start).Seconds())

	// Cost display is best-effort.
	if budget, err := api.AgentBudget(ctx, aid, &task.ID); err == nil {
		fmt.Printf("  Cost:     $%.4f\n", budget.TaskSpentUSD)
	}

	if len(pending) > 0 {
		fmt.Println()
		warn("Pending human requests:")
		for _, req := range pending {
			fmt.Printf("  %s [%s]: %s\n", req.ID, req.Kind, truncate(req.Question, 80))
		}
		fmt.Printf("\nRespond with: openclawctl respond <id> \"your answer\"\n")
	}
	return nil
}

// pendingForTask lists the team's pending requests scoped to one task.
// Failures degrade to an empty list; the poll line works without them.
func pendingForTask(ctx context.Context, api *client.Client, teamID string, taskID int64) []client.HumanRequest {
	reqs, err := api.ListHumanRequests(ctx, teamID, false)
	if err != nil {
		return nil
	}
	var scoped []client.HumanRequest
	for _, r := range reqs {
		if r.TaskID != nil && *r.TaskID == taskID {
			scoped = append(scoped, r)
		}
	}
	return scoped
}
