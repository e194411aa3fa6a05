package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memscribe/memscribe/pkg/memory"
)

func TestAutoImportanceFallsBackToDefaultOnPlainContent(t *testing.T) {
	score := memory.AutoImportance("ok", nil)
	assert.Equal(t, 0.5, score)
}

func TestAutoImportanceRewardsKeywordsAndLength(t *testing.T) {
	plain := memory.AutoImportance("a short note", nil)
	flagged := memory.AutoImportance(
		"This is important: remember my password preference is to use a password manager!",
		nil,
	)
	assert.Greater(t, flagged, plain)
	assert.LessOrEqual(t, flagged, 1.0)
}

func TestAutoImportanceHonorsMetadataPriority(t *testing.T) {
	low := memory.AutoImportance("a note about something", map[string]any{"priority": "low"})
	high := memory.AutoImportance("a note about something", map[string]any{"priority": "high"})
	assert.Greater(t, high, low)
}

func TestAutoImportanceNeverExceedsOne(t *testing.T) {
	content := "important critical urgent remember note preference like dislike hate love password secret private confidential?!"
	score := memory.AutoImportance(content, map[string]any{"priority": "high"})
	assert.LessOrEqual(t, score, 1.0)
}
