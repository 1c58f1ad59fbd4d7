package adapter

import (
	"strings"
	"testing"

	"github.com/openclaw/openclaw/internal/control/models"
)

func basePromptInput(role models.AgentRole) PromptInput {
	return PromptInput{
		TaskTitle:       "Add rate limiting",
		TaskDescription: "Limit login attempts per IP.",
		AgentID:         "agent-1",
		TeamID:          "team-1",
		TaskID:          7,
		Role:            role,
	}
}

func TestEngineerPrompt(t *testing.T) {
	in := basePromptInput(models.RoleEngineer)
	in.Conventions = []models.Convention{
		{Key: "language", Content: "Go 1.22+", Active: true},
		{Key: "errors", Content: "wrap with %w", Active: true},
	}
	in.Context = map[string]string{
		"root_cause": "missing middleware",
		"entrypoint": "internal/api/router.go",
	}

	prompt := BuildRolePrompt(in)

	for _, want := range []string{
		"TASK #7: Add rate limiting",
		"Limit login attempts per IP.",
		"TEAM CONVENTIONS:",
		"Follow these team standards:",
		"- language: Go 1.22+",
		"- errors: wrap with %w",
		"PREVIOUS CONTEXT:",
		"Key findings from earlier work on this task:",
		"- entrypoint: internal/api/router.go",
		"- root_cause: missing middleware",
		`mcp__openclaw__get_inbox(agent_id="agent-1")`,
		`mcp__openclaw__change_task_status(task_id=7, status="in_review", actor_id="agent-1")`,
		"mcp__openclaw__ask_human(",
		"mcp__openclaw__save_context(task_id=7",
		"YOUR IDENTITY:",
		"- agent_id: agent-1",
		"- team_id: team-1",
		"- task_id: 7",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("engineer prompt missing %q", want)
		}
	}

	// Context keys render sorted.
	if strings.Index(prompt, "- entrypoint:") > strings.Index(prompt, "- root_cause:") {
		t.Error("context keys not sorted")
	}
}

func TestManagerPrompt(t *testing.T) {
	in := basePromptInput(models.RoleManager)
	in.Conventions = []models.Convention{{Key: "style", Content: "gofmt", Active: true}}

	prompt := BuildRolePrompt(in)

	for _, want := range []string{
		"MANAGER agent",
		"Ensure all sub-tasks follow these team standards:",
		`mcp__openclaw__list_team_agents(team_id="team-1")`,
		"mcp__openclaw__create_tasks_batch(",
		"depends_on_indices",
		"mcp__openclaw__assign_task(task_id=<id>",
		"mcp__openclaw__wait_for_task_completion(task_id=<id>",
		"- task_id: 7 (your parent/orchestration task)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("manager prompt missing %q", want)
		}
	}
}

func TestReviewerPrompt(t *testing.T) {
	in := basePromptInput(models.RoleReviewer)
	in.Conventions = []models.Convention{{Key: "tests", Content: "table-driven", Active: true}}

	prompt := BuildRolePrompt(in)

	for _, want := range []string{
		"REVIEWER agent",
		"Check code against these team standards:",
		"mcp__openclaw__get_task_diff(task_id=7",
		"mcp__openclaw__get_changed_files(task_id=7",
		"mcp__openclaw__read_file(task_id=7",
		"mcp__openclaw__add_review_comment(",
		`verdict="request_changes"`,
		`verdict="approve"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("reviewer prompt missing %q", want)
		}
	}
}

func TestPromptSectionsOmittedWhenEmpty(t *testing.T) {
	prompt := BuildRolePrompt(basePromptInput(models.RoleEngineer))

	if strings.Contains(prompt, "TEAM CONVENTIONS:") {
		t.Error("conventions block should be omitted when empty")
	}
	if strings.Contains(prompt, "PREVIOUS CONTEXT:") {
		t.Error("context block should be omitted when empty")
	}
	// The description block should flow straight into the instructions.
	if !strings.Contains(prompt, "Limit login attempts per IP.\n\nINSTRUCTIONS:") {
		t.Error("empty sections should leave no gap before INSTRUCTIONS")
	}
}

func TestUnknownRoleFallsBackToEngineer(t *testing.T) {
	in := basePromptInput(models.AgentRole("wizard"))
	prompt := BuildRolePrompt(in)
	if !strings.Contains(prompt, "engineer agent") {
		t.Error("unknown role should use the engineer template")
	}
}
