package search

import (
	"context"
	"log"
	"sort"

	"github.com/mementolabs/memento/internal/domain"
)

// RerankScore is one backend result: an index into the submitted batch
// plus the cross-encoder relevance for that document.
type RerankScore struct {
	Index     int
	Relevance float64
}

// RerankClient is the external cross-encoder backend.
type RerankClient interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankScore, error)
}

// MemoryCandidate is a fused memory chunk hydrated with its content,
// ready for cross-encoder scoring.
type MemoryCandidate struct {
	MemoryID string
	ChunkID  string
	Content  string
}

// RerankConfig tunes the unified reranker.
type RerankConfig struct {
	BatchLimit      int
	MemoryThreshold float64
	WebThreshold    float64
	TopK            int
}

// DefaultRerankConfig returns the reference rerank parameters.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		BatchLimit:      1000,
		MemoryThreshold: 0.5,
		WebThreshold:    0.3,
		TopK:            10,
	}
}

// origin maps a merged document position back to its source list.
type origin struct {
	web   bool
	index int
}

// Reranker scores memory and web candidates together against a query.
// Per-source thresholds differ because the sources have different score
// distributions; a single global threshold would bias one source.
type Reranker struct {
	client RerankClient
	cfg    RerankConfig
}

// NewReranker creates a Reranker.
func NewReranker(client RerankClient, cfg RerankConfig) *Reranker {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultRerankConfig().BatchLimit
	}
	return &Reranker{client: client, cfg: cfg}
}

// Rerank submits the merged candidate pool in sequential batches, then
// partitions the scored results back per source and filters each by its
// own threshold. If the backend fails for every batch the call returns
// an explicit empty pair so the caller can fall back to un-reranked
// data; it never returns an error for backend failure.
func (r *Reranker) Rerank(ctx context.Context, query string, memories []MemoryCandidate, web []domain.WebResult) ([]domain.RerankedChunk, []domain.RerankedWebResult) {
	documents := make([]string, 0, len(memories)+len(web))
	origins := make([]origin, 0, len(memories)+len(web))

	for i, m := range memories {
		documents = append(documents, m.Content)
		origins = append(origins, origin{web: false, index: i})
	}
	for i, w := range web {
		documents = append(documents, w.Content)
		origins = append(origins, origin{web: true, index: i})
	}

	if len(documents) == 0 {
		return []domain.RerankedChunk{}, []domain.RerankedWebResult{}
	}

	var rerankedMemories []domain.RerankedChunk
	var rerankedWeb []domain.RerankedWebResult
	succeeded := false

	for start := 0; start < len(documents); start += r.cfg.BatchLimit {
		end := start + r.cfg.BatchLimit
		if end > len(documents) {
			end = len(documents)
		}

		scores, err := r.client.Rerank(ctx, query, documents[start:end], r.cfg.TopK)
		if err != nil {
			log.Printf("WARN: rerank batch %d-%d failed: %v", start, end, err)
			continue
		}
		succeeded = true

		for _, s := range scores {
			pos := start + s.Index
			if pos < 0 || pos >= len(origins) {
				log.Printf("WARN: rerank returned out-of-range index %d for batch %d-%d", s.Index, start, end)
				continue
			}
			o := origins[pos]
			if o.web {
				if s.Relevance < r.cfg.WebThreshold {
					continue
				}
				rerankedWeb = append(rerankedWeb, domain.RerankedWebResult{
					WebResult: web[o.index],
					Relevance: s.Relevance,
				})
			} else {
				if s.Relevance < r.cfg.MemoryThreshold {
					continue
				}
				m := memories[o.index]
				rerankedMemories = append(rerankedMemories, domain.RerankedChunk{
					MemoryID:  m.MemoryID,
					ChunkID:   m.ChunkID,
					Content:   m.Content,
					Relevance: s.Relevance,
				})
			}
		}
	}

	if !succeeded {
		return []domain.RerankedChunk{}, []domain.RerankedWebResult{}
	}

	sort.SliceStable(rerankedMemories, func(i, j int) bool {
		return rerankedMemories[i].Relevance > rerankedMemories[j].Relevance
	})
	sort.SliceStable(rerankedWeb, func(i, j int) bool {
		return rerankedWeb[i].Relevance > rerankedWeb[j].Relevance
	})

	if rerankedMemories == nil {
		rerankedMemories = []domain.RerankedChunk{}
	}
	if rerankedWeb == nil {
		rerankedWeb = []domain.RerankedWebResult{}
	}
	return rerankedMemories, rerankedWeb
}
