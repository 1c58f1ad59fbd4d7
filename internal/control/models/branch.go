package models

import (
	"fmt"
	"strings"
)

// TaskBranch derives the git branch name for a task:
// "task-<id>-<slug>", where the slug is the lowercased title truncated to
// 50 characters with spaces turned into hyphens and anything outside
// [a-z0-9-] dropped.
func TaskBranch(id int64, title string) string {
	slug := strings.ToLower(title)
	if len(slug) > 50 {
		slug = slug[:50]
	}
	slug = strings.ReplaceAll(slug, " ", "-")
	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("task-%d-%s", id, b.String())
}
