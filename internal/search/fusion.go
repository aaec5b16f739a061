package search

import (
	"sort"

	"github.com/mementolabs/memento/internal/domain"
)

// FusionConfig tunes weighted reciprocal rank fusion. The reference
// values are empirical; callers may override them through configuration
// but the mechanism is fixed.
type FusionConfig struct {
	K                 int
	SemanticWeight    float64
	FullTextWeight    float64
	ScoreScale        float64
	RelativeThreshold float64
}

// DefaultFusionConfig returns the reference fusion parameters.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		K:                 100,
		SemanticWeight:    0.7,
		FullTextWeight:    0.3,
		ScoreScale:        100,
		RelativeThreshold: 0.6,
	}
}

// Fuse merges ranked channel lists with weighted reciprocal rank
// fusion. A result at 0-based rank r contributes
// (weight/(r+K)) * score*ScoreScale; contributions for the same
// (memory, chunk) key are summed across all lists. Output is sorted by
// fused score descending with a deterministic key tiebreak.
func Fuse(lists [][]domain.SearchResult, cfg FusionConfig) []domain.FusedResult {
	type candidate struct {
		memoryID string
		chunkID  string
		score    float64
	}

	candidates := make(map[string]*candidate)
	for _, list := range lists {
		for rank, r := range list {
			weight := cfg.FullTextWeight
			if r.Channel == domain.ChannelSemantic {
				weight = cfg.SemanticWeight
			}
			contribution := weight / float64(rank+cfg.K) * r.Score * cfg.ScoreScale

			key := r.MemoryID + ":" + r.ChunkID
			if c, ok := candidates[key]; ok {
				c.score += contribution
			} else {
				candidates[key] = &candidate{
					memoryID: r.MemoryID,
					chunkID:  r.ChunkID,
					score:    contribution,
				}
			}
		}
	}

	fused := make([]domain.FusedResult, 0, len(candidates))
	for _, c := range candidates {
		fused = append(fused, domain.FusedResult{
			MemoryID: c.memoryID,
			ChunkID:  c.chunkID,
			Score:    c.score,
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		if fused[i].MemoryID != fused[j].MemoryID {
			return fused[i].MemoryID < fused[j].MemoryID
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})

	return fused
}

// Threshold keeps fused results scoring at least
// rel * max(topScore, rel/2). The floor guards against a degenerate
// cutoff when the top score itself is near zero.
func Threshold(fused []domain.FusedResult, rel float64) []domain.FusedResult {
	if len(fused) == 0 || rel <= 0 {
		return fused
	}

	top := fused[0].Score
	floor := rel / 2
	base := top
	if floor > base {
		base = floor
	}
	cutoff := rel * base

	kept := make([]domain.FusedResult, 0, len(fused))
	for _, f := range fused {
		if f.Score >= cutoff {
			kept = append(kept, f)
		}
	}
	return kept
}
