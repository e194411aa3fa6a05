package memory

import (
	"math"
	"strings"
)

// autoImportanceKeywords score content that signals the memory is
// worth keeping even when the caller never set an explicit importance.
var autoImportanceKeywords = []string{
	"important", "critical", "urgent", "remember", "note",
	"preference", "like", "dislike", "hate", "love",
	"password", "secret", "private", "confidential",
}

// AutoImportance heuristically scores content in [0,1] for callers
// that omit importance entirely, so a memory never silently lands at
// a flat default regardless of what it actually says. Purely
// rule-based — no LLM round trip on the hot AddMemory path.
func AutoImportance(content string, metadata map[string]any) float64 {
	score := 0.0
	contentLower := strings.ToLower(content)

	switch {
	case len(content) > 100:
		score += 0.1
	case len(content) > 50:
		score += 0.05
	}

	for _, keyword := range autoImportanceKeywords {
		if strings.Contains(contentLower, keyword) {
			score += 0.1
		}
	}

	if strings.Contains(content, "?") {
		score += 0.05
	}
	if strings.Contains(content, "!") {
		score += 0.05
	}

	if metadata != nil {
		if priority, ok := metadata["priority"].(string); ok {
			switch priority {
			case "high":
				score += 0.2
			case "medium":
				score += 0.1
			}
		}
	}

	if score == 0 {
		return defaultImportance
	}
	return math.Min(score, 1.0)
}
