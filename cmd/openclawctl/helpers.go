package main

import (
	"fmt"
	"os"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/pkg/client"
)

const defaultAPIURL = "http://localhost:8080"

// ANSI colours.
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
)

func bold(msg string) string {
	return colorBold + msg + colorReset
}

func success(msg string) {
	fmt.Printf("%s%s%s\n", colorGreen, msg, colorReset)
}

func warn(msg string) {
	fmt.Printf("%s%s%s\n", colorYellow, msg, colorReset)
}

func fail(msg string) {
	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorRed, msg, colorReset)
}

// statusColor maps agent/task/request statuses to a colour code.
func statusColor(status string) string {
	switch status {
	case "idle", "done", "resolved":
		return colorGreen
	case "working", "in_progress", "pending", "todo":
		return colorYellow
	case "in_review":
		return colorCyan
	case "in_approval":
		return colorMagenta
	case "merging":
		return colorBlue
	case "cancelled", "expired", "error":
		return colorRed
	default:
		return colorReset
	}
}

func colorStatus(status string) string {
	return statusColor(status) + status + colorReset
}

// apiClient builds the typed client for the configured server. The CLI
// logger only surfaces errors so command output stays clean.
func apiClient() (*client.Client, error) {
	url := apiURL
	if url == "" {
		url = os.Getenv("OPENCLAW_API_URL")
	}
	if url == "" {
		url = defaultAPIURL
	}
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "error",
		Format:     "text",
		OutputPath: "stderr",
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return client.New(url, log), nil
}

// resolveTeamID returns the team from the flag or OPENCLAW_TEAM_ID.
func resolveTeamID() (string, error) {
	if teamID != "" {
		return teamID, nil
	}
	if tid := os.Getenv("OPENCLAW_TEAM_ID"); tid != "" {
		return tid, nil
	}
	return "", fmt.Errorf("--team-id required (or set OPENCLAW_TEAM_ID)")
}

// truncate shortens s to max runes for table cells.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// shortID returns the first eight characters of an ID for display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// formatCount renders n with thousands separators (1234567 -> 1,234,567).
func formatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatCount(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, digit := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digit)
	}
	return string(out)
}
