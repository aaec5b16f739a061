package search

import (
	"context"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mementolabs/memento/internal/domain"
)

// Embedder turns query text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the semantic retrieval backend.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, filters Filters, topK int) ([]domain.SearchResult, error)
}

// FullTextIndex is the lexical retrieval backend. The query it receives
// is already normalized.
type FullTextIndex interface {
	Query(ctx context.Context, query string, filters Filters, topK int) ([]domain.SearchResult, error)
}

// Filters restrict a search to a user's slice of the store.
type Filters struct {
	UserID       string
	MemoryIDs    []string
	ContentKinds []domain.ContentKind
	Tags         []string
}

// ChannelResults holds the four ranked lists the searcher produces, one
// per (channel, query variant) pair.
type ChannelResults struct {
	SemanticOriginal []domain.SearchResult
	SemanticRefined  []domain.SearchResult
	FullTextOriginal []domain.SearchResult
	FullTextRefined  []domain.SearchResult
}

// Lists returns the four lists in fusion order.
func (c ChannelResults) Lists() [][]domain.SearchResult {
	return [][]domain.SearchResult{
		c.SemanticOriginal,
		c.SemanticRefined,
		c.FullTextOriginal,
		c.FullTextRefined,
	}
}

// Searcher runs the dual-channel retrieval: semantic and full-text
// search, each over the original and the refined query, all four
// concurrently. A failed channel contributes an empty list instead of
// failing the whole search.
type Searcher struct {
	embedder      Embedder
	vectors       VectorIndex
	fulltext      FullTextIndex
	semanticFloor float64
}

// NewSearcher creates a Searcher. semanticFloor discards vector matches
// below an absolute similarity before they reach fusion.
func NewSearcher(embedder Embedder, vectors VectorIndex, fulltext FullTextIndex, semanticFloor float64) *Searcher {
	return &Searcher{
		embedder:      embedder,
		vectors:       vectors,
		fulltext:      fulltext,
		semanticFloor: semanticFloor,
	}
}

// Search runs all four channel searches and joins them before
// returning; fusion must never start with a partial channel set.
func (s *Searcher) Search(ctx context.Context, original, refined string, filters Filters, topK int) (ChannelResults, error) {
	original = strings.TrimSpace(original)
	refined = strings.TrimSpace(refined)
	if original == "" {
		return ChannelResults{}, domain.ErrEmptyQuery
	}
	if refined == "" {
		refined = original
	}

	var out ChannelResults
	g, gctx := errgroup.WithContext(ctx)

	runSemantic := func(query string, dst *[]domain.SearchResult) func() error {
		return func() error {
			results, err := s.semanticSearch(gctx, query, filters, topK)
			if err != nil {
				log.Printf("WARN: semantic search failed for %q: %v", query, err)
				*dst = nil
				return nil
			}
			*dst = results
			return nil
		}
	}
	runFullText := func(query string, dst *[]domain.SearchResult) func() error {
		return func() error {
			normalized := NormalizeFullText(query)
			if normalized == "" {
				*dst = nil
				return nil
			}
			results, err := s.fulltext.Query(gctx, normalized, filters, topK)
			if err != nil {
				log.Printf("WARN: full-text search failed for %q: %v", query, err)
				*dst = nil
				return nil
			}
			for i := range results {
				results[i].Channel = domain.ChannelFullText
			}
			*dst = results
			return nil
		}
	}

	g.Go(runSemantic(original, &out.SemanticOriginal))
	g.Go(runSemantic(refined, &out.SemanticRefined))
	g.Go(runFullText(original, &out.FullTextOriginal))
	g.Go(runFullText(refined, &out.FullTextRefined))

	if err := g.Wait(); err != nil {
		return ChannelResults{}, err
	}

	return out, nil
}

func (s *Searcher) semanticSearch(ctx context.Context, query string, filters Filters, topK int) ([]domain.SearchResult, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	matches, err := s.vectors.Query(ctx, vectors[0], filters, topK)
	if err != nil {
		return nil, err
	}

	results := matches[:0]
	for _, m := range matches {
		if m.Score < s.semanticFloor {
			continue
		}
		m.Channel = domain.ChannelSemantic
		results = append(results, m)
	}
	return results, nil
}
