package main

import "testing"

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{42, "42"},
		{999, "999"},
		{1000, "1,000"},
		{9500, "9,500"},
		{131072, "131,072"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.n); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"hi", 10, "hi"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 3, "hel"},
		{"Fix the login flow for expired sessions", 20, "Fix the login flo..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"3f2b8c4d", "3f2b8c4d"},
		{"3f2b8c4d-9e01-4a7b-8f3c-2d5e6a1b0c9d", "3f2b8c4d"},
	}
	for _, tt := range tests {
		if got := shortID(tt.id); got != tt.want {
			t.Errorf("shortID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"idle", colorGreen},
		{"done", colorGreen},
		{"working", colorYellow},
		{"in_progress", colorYellow},
		{"pending", colorYellow},
		{"in_review", colorCyan},
		{"in_approval", colorMagenta},
		{"merging", colorBlue},
		{"cancelled", colorRed},
		{"error", colorRed},
		{"something_else", colorReset},
	}
	for _, tt := range tests {
		if got := statusColor(tt.status); got != tt.want {
			t.Errorf("statusColor(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestColorStatus(t *testing.T) {
	if got := colorStatus("done"); got != colorGreen+"done"+colorReset {
		t.Errorf("colorStatus(%q) = %q", "done", got)
	}
}

func TestResolveTeamID(t *testing.T) {
	orig := teamID
	t.Cleanup(func() { teamID = orig })

	t.Run("flag wins", func(t *testing.T) {
		teamID = "team-flag"
		t.Setenv("OPENCLAW_TEAM_ID", "team-env")

		got, err := resolveTeamID()
		if err != nil {
			t.Fatalf("resolveTeamID() error = %v", err)
		}
		if got != "team-flag" {
			t.Errorf("resolveTeamID() = %q, want %q", got, "team-flag")
		}
	})

	t.Run("env fallback", func(t *testing.T) {
		teamID = ""
		t.Setenv("OPENCLAW_TEAM_ID", "team-env")

		got, err := resolveTeamID()
		if err != nil {
			t.Fatalf("resolveTeamID() error = %v", err)
		}
		if got != "team-env" {
			t.Errorf("resolveTeamID() = %q, want %q", got, "team-env")
		}
	})

	t.Run("missing", func(t *testing.T) {
		teamID = ""
		t.Setenv("OPENCLAW_TEAM_ID", "")

		if _, err := resolveTeamID(); err == nil {
			t.Error("expected an error when no team is configured")
		}
	})
}
