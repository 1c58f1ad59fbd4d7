package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openclaw/openclaw/pkg/client"
)

var initFile string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap an org, team, agents and repos from a manifest",
	Long: `Reads a YAML manifest and creates the org, team, agents,
repositories and team conventions it describes. Prints the team ID to
export as OPENCLAW_TEAM_ID.

Manifest shape:

  org:
    name: Acme
  team:
    name: Platform
  agents:
    - name: alice
      role: engineer            # manager | engineer | reviewer
      model: claude-sonnet-4-20250514
      config:
        adapter: claude
        daily_budget_usd: 25.0
  repos:
    - name: webapp
      local_path: /srv/repos/webapp
      default_branch: main
  conventions:
    - key: style
      content: Tabs, not spaces.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initFile, "file", "f", "openclaw.yaml", "Manifest file")
	rootCmd.AddCommand(initCmd)
}

// manifest mirrors the YAML bootstrap file.
type manifest struct {
	Org struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"org"`
	Team struct {
		Name   string                 `yaml:"name"`
		Slug   string                 `yaml:"slug"`
		Config map[string]interface{} `yaml:"config"`
	} `yaml:"team"`
	Agents []struct {
		Name   string                 `yaml:"name"`
		Role   string                 `yaml:"role"`
		Model  string                 `yaml:"model"`
		Config map[string]interface{} `yaml:"config"`
	} `yaml:"agents"`
	Repos []struct {
		Name          string `yaml:"name"`
		LocalPath     string `yaml:"local_path"`
		DefaultBranch string `yaml:"default_branch"`
	} `yaml:"repos"`
	Conventions []struct {
		Key     string `yaml:"key"`
		Content string `yaml:"content"`
	} `yaml:"conventions"`
}

func runInit(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(initFile)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if m.Org.Name == "" || m.Team.Name == "" {
		return fmt.Errorf("manifest needs org.name and team.name")
	}

	api, err := apiClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	org, err := api.CreateOrg(ctx, client.CreateOrgRequest{Name: m.Org.Name, Slug: m.Org.Slug})
	if err != nil {
		return fmt.Errorf("create org: %w", err)
	}
	fmt.Printf("Org %s created (%s)\n", org.Name, org.ID)

	team, err := api.CreateTeam(ctx, org.ID, client.CreateTeamRequest{
		Name:   m.Team.Name,
		Slug:   m.Team.Slug,
		Config: m.Team.Config,
	})
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	fmt.Printf("Team %s created (%s)\n", team.Name, team.ID)

	for _, a := range m.Agents {
		agent, err := api.CreateAgent(ctx, team.ID, client.CreateAgentRequest{
			Name:   a.Name,
			Role:   a.Role,
			Model:  a.Model,
			Config: a.Config,
		})
		if err != nil {
			return fmt.Errorf("create agent %q: %w", a.Name, err)
		}
		fmt.Printf("  agent %-20s  %-10s  %s\n", agent.Name, agent.Role, agent.ID)
	}

	for _, r := range m.Repos {
		repo, err := api.CreateRepo(ctx, team.ID, client.CreateRepoRequest{
			Name:          r.Name,
			LocalPath:     r.LocalPath,
			DefaultBranch: r.DefaultBranch,
		})
		if err != nil {
			return fmt.Errorf("create repo %q: %w", r.Name, err)
		}
		fmt.Printf("  repo  %-20s  %s\n", repo.Name, repo.ID)
	}

	for _, c := range m.Conventions {
		if _, err := api.AddConvention(ctx, team.ID, c.Key, c.Content); err != nil {
			return fmt.Errorf("add convention %q: %w", c.Key, err)
		}
		fmt.Printf("  convention %s\n", c.Key)
	}

	fmt.Println()
	success("Bootstrap complete.")
	fmt.Printf("export OPENCLAW_TEAM_ID=%s\n", team.ID)
	return nil
}
