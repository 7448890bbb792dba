package search

import (
	"sort"
	"strings"
	"time"

	"github.com/alpsla/codequal-rag/internal/store"
)

// rerankWeights are the multi-factor scoring weights. The defaults are
// tuning decisions, not invariants, so they stay configurable.
type rerankWeights struct {
	importance float64
	framework  float64
	recency    float64
	windowDays int
}

// rerank scores candidates and returns them ordered by relevance
// descending, truncated to limit. Ordering is stable so equal scores
// keep the store's similarity-then-importance order.
func rerank(candidates []store.DocumentResult, queryFrameworks []string, weights rerankWeights, limit int, now time.Time) []ScoredResult {
	scored := make([]ScoredResult, 0, len(candidates))
	for _, candidate := range candidates {
		scored = append(scored, ScoredResult{
			DocumentResult: candidate,
			RelevanceScore: relevanceScore(candidate, queryFrameworks, weights, now),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func relevanceScore(candidate store.DocumentResult, queryFrameworks []string, weights rerankWeights, now time.Time) float64 {
	score := candidate.Similarity
	score += candidate.ImportanceScore * weights.importance
	score += frameworkOverlapFraction(queryFrameworks, candidate.FrameworkReferences) * weights.framework
	score += recencyFactor(candidate.UpdatedAt, weights.windowDays, now) * weights.recency
	return score
}

// frameworkOverlapFraction is the share of query frameworks the
// candidate references. Zero when the query names no frameworks.
func frameworkOverlapFraction(queryFrameworks, candidateFrameworks []string) float64 {
	if len(queryFrameworks) == 0 {
		return 0
	}
	matched := 0
	for _, qf := range queryFrameworks {
		for _, cf := range candidateFrameworks {
			if strings.EqualFold(qf, cf) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(queryFrameworks))
}

// recencyFactor decays linearly from 1 to 0 across the window. Zero when
// the candidate has no update timestamp.
func recencyFactor(updatedAt time.Time, windowDays int, now time.Time) float64 {
	if updatedAt.IsZero() {
		return 0
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	days := now.Sub(updatedAt).Hours() / 24
	factor := (float64(windowDays) - days) / float64(windowDays)
	if factor < 0 {
		return 0
	}
	if factor > 1 {
		return 1
	}
	return factor
}
