package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/memscribe/memscribe/pkg/memory"
)

func TestRetentionFreshMemory(t *testing.T) {
	r := memory.Retention(time.Now(), nil)
	assert.Greater(t, r, 0.99)
	assert.LessOrEqual(t, r, 1.0)
}

func TestRetentionDecaysOverTime(t *testing.T) {
	createdAt := time.Now().Add(-48 * time.Hour)
	r := memory.Retention(createdAt, nil)
	assert.Less(t, r, 1.0)
	assert.Greater(t, r, 0.0)
}

func TestRetentionUsesLastAccessedWhenSet(t *testing.T) {
	createdAt := time.Now().Add(-72 * time.Hour)
	lastAccessed := time.Now()
	r := memory.Retention(createdAt, &lastAccessed)
	assert.Greater(t, r, 0.99, "a just-accessed memory should read as freshly retained regardless of age")
}

func TestRetentionNeverExceedsBounds(t *testing.T) {
	veryOld := time.Now().Add(-24 * 365 * time.Hour)
	r := memory.Retention(veryOld, nil)
	assert.GreaterOrEqual(t, r, 0.0)
	assert.LessOrEqual(t, r, 1.0)
}
