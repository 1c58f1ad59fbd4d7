// Package main is openclawctl, the operator CLI for the openclaw
// control plane. It dispatches coding agents, tracks tasks, answers
// human-in-the-loop requests and reports spend, all over the HTTP API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// apiURL is the control-plane address used by all commands.
	apiURL string

	// teamID scopes team commands; OPENCLAW_TEAM_ID is the fallback.
	teamID string
)

var rootCmd = &cobra.Command{
	Use:   "openclawctl",
	Short: "openclawctl — dispatch coding agents and manage human-in-the-loop workflows",
	Long: `openclawctl talks to an openclaw API server.

Common workflow:

  openclawctl init -f openclaw.yaml        # bootstrap org, team, agents, repos
  openclawctl run "fix the login bug"      # create task, assign, dispatch agent
  openclawctl status                       # agents, active tasks, pending requests
  openclawctl tasks                        # list tasks
  openclawctl requests                     # pending human-in-the-loop requests
  openclawctl respond <id> "go with JWT"   # answer a human request
  openclawctl costs                        # team cost summary
  openclawctl agents                       # list team agents
  openclawctl adapters                     # adapters registered on the server`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API server URL (default: $OPENCLAW_API_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVarP(&teamID, "team-id", "t", "", "Team ID (default: $OPENCLAW_TEAM_ID)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fail(err.Error())
		os.Exit(1)
	}
}
