package memory

import (
	"math"
	"time"
)

// retentionDecayRate matches the teacher's documented default (0.05-0.2
// recommended range, 0.1 chosen as the midpoint).
const retentionDecayRate = 0.1

// Retention computes the Ebbinghaus forgetting-curve retention strength
// for a memory last touched at lastAccessedAt (falling back to
// createdAt when never accessed). It is purely informational — §4.3's
// ranking algorithm does not consult it — so it is computed on demand
// rather than persisted and kept in sync on every read.
func Retention(createdAt time.Time, lastAccessedAt *time.Time) float64 {
	anchor := createdAt
	if lastAccessedAt != nil {
		anchor = *lastAccessedAt
	}
	hoursElapsed := time.Since(anchor).Hours()
	r := math.Exp(-retentionDecayRate * hoursElapsed / 24.0)
	if r > 1.0 {
		return 1.0
	}
	if r < 0.0 {
		return 0.0
	}
	return r
}
