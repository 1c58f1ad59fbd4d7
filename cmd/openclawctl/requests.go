package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw/pkg/client"
)

var (
	requestsAll   bool
	respondUserID string
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List human-in-the-loop requests",
	RunE:  runRequests,
}

var respondCmd = &cobra.Command{
	Use:   "respond <request-id> <response>",
	Short: "Respond to a human-in-the-loop request",
	Long: `Resolves a pending human request with your answer. The waiting
agent receives the response and continues its run.`,
	Args: cobra.ExactArgs(2),
	RunE: runRespond,
}

func init() {
	requestsCmd.Flags().BoolVar(&requestsAll, "all", false, "Show resolved/expired too")
	respondCmd.Flags().StringVarP(&respondUserID, "user-id", "u", "", "Your user ID (optional)")
	rootCmd.AddCommand(requestsCmd)
	rootCmd.AddCommand(respondCmd)
}

func runRequests(cmd *cobra.Command, args []string) error {
	tid, err := resolveTeamID()
	if err != nil {
		return err
	}
	api, err := apiClient()
	if err != nil {
		return err
	}

	reqs, err := api.ListHumanRequests(cmd.Context(), tid, requestsAll)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		if requestsAll {
			fmt.Println("No requests found.")
		} else {
			fmt.Println("No pending requests.")
		}
		return nil
	}

	fmt.Println(bold(fmt.Sprintf("Human requests (%d):", len(reqs))))
	fmt.Println()
	for _, r := range reqs {
		taskStr := ""
		if r.TaskID != nil {
			taskStr = fmt.Sprintf(" (task #%d)", *r.TaskID)
		}
		fmt.Printf("  %s  %s  [%s%s%s]%s\n", r.ID, colorStatus(r.Status), colorCyan, r.Kind, colorReset, taskStr)
		fmt.Printf("    %s\n", r.Question)
		if len(r.Options) > 0 {
			fmt.Printf("    Options: %s\n", strings.Join(r.Options, ", "))
		}
		if r.Response != nil {
			fmt.Printf("    Response: %s\n", *r.Response)
		}
		fmt.Println()
	}
	return nil
}

func runRespond(cmd *cobra.Command, args []string) error {
	requestID, response := args[0], args[1]
	api, err := apiClient()
	if err != nil {
		return err
	}

	req, err := api.RespondToHumanRequest(cmd.Context(), requestID, response, respondUserID)
	if client.IsNotFound(err) {
		return fmt.Errorf("request %s not found", requestID)
	}
	if client.IsConflict(err) {
		return fmt.Errorf("request %s already resolved", requestID)
	}
	if err != nil {
		return err
	}

	success(fmt.Sprintf("Responded to %s: %s", requestID, response))
	if req.TaskID != nil {
		fmt.Printf("  Related task: #%d\n", *req.TaskID)
	}
	return nil
}
