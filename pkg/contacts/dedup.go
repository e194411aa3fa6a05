package contacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/memscribe/memscribe/pkg/llm"
)

// DefaultPreThreshold is the preliminary similarity score at or above
// which a candidate pair is promoted to the LLM judge.
const DefaultPreThreshold = 0.6

// DefaultJudgeConfidence is the judge confidence (0-100) a pair must
// clear, in addition to a positive duplicate verdict, to auto-merge.
const DefaultJudgeConfidence = 90

// DuplicatePair is one candidate duplicate found among the unmatched
// set, along with how it was resolved.
type DuplicatePair struct {
	A, B       Contact
	PreScore   float64
	Judged     bool
	Duplicate  bool
	Confidence int
	Reason     string
	Merged     bool
}

// preliminarySimilarity scores two contacts on (email, phone,
// normalized name) alone — cheap enough to run over every unmatched
// pair before spending an LLM call on the promising ones.
func preliminarySimilarity(a, b Contact) float64 {
	var score float64

	if a.Email != "" && strings.EqualFold(a.Email, b.Email) {
		score += 0.5
	}
	if ap, bp := normalizePhone(a.Phone), normalizePhone(b.Phone); ap != "" && ap == bp {
		score += 0.3
	}
	if nameOverlap(a.Name, b.Name) {
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func nameOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	an, bn := strings.ToLower(a), strings.ToLower(b)
	if an == bn {
		return true
	}
	aTokens := strings.Fields(an)
	bSet := make(map[string]struct{}, len(strings.Fields(bn)))
	for _, t := range strings.Fields(bn) {
		bSet[t] = struct{}{}
	}
	var shared int
	for _, t := range aTokens {
		if _, ok := bSet[t]; ok {
			shared++
		}
	}
	return shared > 0 && shared == len(aTokens)
}

// FindDuplicates scores every pair in candidates, promotes pairs at or
// above preThreshold to judge, and marks a pair mergeable iff the
// judge says duplicate with confidence >= judgeThreshold and autoMerge
// is enabled. Pairs below preThreshold are not returned; when judge is
// nil, pairs at or above it are returned unjudged and unmerged.
func FindDuplicates(ctx context.Context, candidates []Contact, judge llm.Judge, preThreshold float64, judgeThreshold int, autoMerge bool) ([]DuplicatePair, error) {
	if preThreshold == 0 {
		preThreshold = DefaultPreThreshold
	}
	if judgeThreshold == 0 {
		judgeThreshold = DefaultJudgeConfidence
	}

	var pairs []DuplicatePair
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			score := preliminarySimilarity(a, b)
			if score < preThreshold {
				continue
			}

			pair := DuplicatePair{A: a, B: b, PreScore: score}
			if judge != nil {
				verdict, err := judge.JudgeDuplicate(ctx, summarize(a), summarize(b))
				if err != nil {
					return nil, fmt.Errorf("contacts: judge duplicate: %w", err)
				}
				pair.Judged = true
				pair.Duplicate = verdict.Duplicate
				pair.Confidence = verdict.Confidence
				pair.Reason = verdict.Reason
				pair.Merged = autoMerge && verdict.Duplicate && verdict.Confidence >= judgeThreshold
			}
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

func summarize(c Contact) string {
	return fmt.Sprintf("name=%q email=%q phone=%q company=%q", c.Name, c.Email, c.Phone, c.Company)
}
