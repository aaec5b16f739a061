package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/search"
	"github.com/mementolabs/memento/internal/telemetry"
)

const (
	// chatContextTurns is how many past exchanges flow into the prompt.
	chatContextTurns = 2
	// chatAnswerCap truncates long stored answers in the chat context.
	chatAnswerCap = 300
	// defaultTopK is the per-channel retrieval depth.
	defaultTopK = 10
)

// WebSearcher is the optional web retrieval collaborator.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.WebResult, error)
}

// QueryRefiner rewrites a query for a second retrieval pass. A failed
// refinement falls back to the original query.
type QueryRefiner interface {
	Refine(ctx context.Context, query string) (string, error)
}

// MessageStoreInterface persists answers and loads past exchanges.
type MessageStoreInterface interface {
	SaveAnswer(ctx context.Context, userID, query, answer string, citations []domain.Citation) error
	GetRecentExchanges(ctx context.Context, userID string, limit int) ([]Exchange, error)
}

// Exchange is one past question/answer turn.
type Exchange struct {
	ID        string
	UserID    string
	Query     string
	Answer    string
	CreatedAt time.Time
}

// QueryLogEntry captures one retrieval run for offline evaluation.
type QueryLogEntry struct {
	UserID         string
	Query          string
	RefinedQuery   string
	Filters        search.Filters
	Results        []domain.FusedResult
	WebResultCount int
	DurationMs     int64
}

// QueryLoggerInterface records retrieval runs. Logging never fails a query.
type QueryLoggerInterface interface {
	CreateQueryLog(ctx context.Context, entry QueryLogEntry) (string, error)
}

// QueryInput is one retrieval-augmented question.
type QueryInput struct {
	UserID       string
	Query        string
	MemoryIDs    []string
	ContentKinds []domain.ContentKind
	Tags         []string
	TopK         int
}

// QueryResult is the retrieval outcome before answering.
type QueryResult struct {
	Chunks    []domain.RerankedChunk
	Web       []domain.RerankedWebResult
	Citations []domain.Citation
}

// QueryService runs the full retrieval and answer pipeline: dual-channel
// search, fusion, hydration, reranking, web formatting and streaming
// answer generation.
type QueryService struct {
	searcher  *search.Searcher
	fusionCfg search.FusionConfig
	reranker  *search.Reranker
	formatter *search.WebFormatter
	orch      *search.Orchestrator
	chunks    ChunkRepositoryInterface
	messages  MessageStoreInterface
	web       WebSearcher
	refiner   QueryRefiner
	queryLog  QueryLoggerInterface
}

func NewQueryService(
	searcher *search.Searcher,
	fusionCfg search.FusionConfig,
	reranker *search.Reranker,
	formatter *search.WebFormatter,
	orch *search.Orchestrator,
	chunks ChunkRepositoryInterface,
	messages MessageStoreInterface,
) *QueryService {
	return &QueryService{
		searcher:  searcher,
		fusionCfg: fusionCfg,
		reranker:  reranker,
		formatter: formatter,
		orch:      orch,
		chunks:    chunks,
		messages:  messages,
	}
}

// WithWebSearch enables the web retrieval collaborator.
func (s *QueryService) WithWebSearch(web WebSearcher) *QueryService {
	s.web = web
	return s
}

// WithRefiner enables second-pass query refinement.
func (s *QueryService) WithRefiner(refiner QueryRefiner) *QueryService {
	s.refiner = refiner
	return s
}

// WithQueryLog enables retrieval logging.
func (s *QueryService) WithQueryLog(logger QueryLoggerInterface) *QueryService {
	s.queryLog = logger
	return s
}

// Retrieve runs search, fusion, hydration and reranking without
// generating an answer. Degraded collaborators shrink the result instead
// of failing it; only an empty query is fatal.
func (s *QueryService) Retrieve(ctx context.Context, input QueryInput) (*QueryResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryService.Retrieve", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "retrieve",
	})
	defer span.End()

	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	started := time.Now()

	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	filters := search.Filters{
		UserID:       input.UserID,
		MemoryIDs:    input.MemoryIDs,
		ContentKinds: input.ContentKinds,
		Tags:         input.Tags,
	}

	refined := s.refineQuery(ctx, input.Query)

	channels, err := s.searcher.Search(ctx, input.Query, refined, filters, topK)
	if err != nil {
		return nil, err
	}

	fused := search.Fuse(channels.Lists(), s.fusionCfg)
	kept := search.Threshold(fused, s.fusionCfg.RelativeThreshold)

	candidates, err := s.hydrate(ctx, input.UserID, kept)
	if err != nil {
		return nil, err
	}

	webResults := s.searchWeb(ctx, input.Query, topK)

	chunks, web := s.reranker.Rerank(ctx, input.Query, candidates, webResults)

	result := &QueryResult{
		Chunks:    chunks,
		Web:       web,
		Citations: buildCitations(chunks, web),
	}

	s.logQuery(ctx, QueryLogEntry{
		UserID:         input.UserID,
		Query:          input.Query,
		RefinedQuery:   refined,
		Filters:        filters,
		Results:        kept,
		WebResultCount: len(web),
		DurationMs:     time.Since(started).Milliseconds(),
	})

	return result, nil
}

// Answer runs Retrieve, assembles the prompt and streams the answer into
// the sink. The returned citations describe what the answer drew on.
func (s *QueryService) Answer(ctx context.Context, input QueryInput, sink search.StreamSink) (*QueryResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryService.Answer", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "answer",
	})
	defer span.End()

	result, err := s.Retrieve(ctx, input)
	if err != nil {
		return nil, err
	}

	chatContext := s.chatContext(ctx, input.UserID)
	memoryContext := search.BuildMemoryContext(input.Query, result.Chunks)
	webContext, stats := s.formatter.Format(input.Query, result.Web)
	if stats.Dropped > 0 {
		log.Printf("query: web formatter dropped %d of %d results for budget", stats.Dropped, stats.Considered)
	}

	prompt := s.orch.Assemble(chatContext, memoryContext, webContext, input.Query)

	err = s.orch.Stream(ctx, search.AnswerRequest{
		UserID:    input.UserID,
		Query:     input.Query,
		Prompt:    prompt,
		Citations: result.Citations,
	}, sink)
	if err != nil {
		span.SetError(err)
		return result, err
	}
	return result, nil
}

func (s *QueryService) refineQuery(ctx context.Context, query string) string {
	if s.refiner == nil {
		return query
	}
	refined, err := s.refiner.Refine(ctx, query)
	if err != nil || strings.TrimSpace(refined) == "" {
		log.Printf("WARN: query refinement failed, using original: %v", err)
		return query
	}
	return refined
}

func (s *QueryService) hydrate(ctx context.Context, userID string, fused []domain.FusedResult) ([]search.MemoryCandidate, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	chunkIDs := make([]string, len(fused))
	for i, f := range fused {
		chunkIDs[i] = f.ChunkID
	}

	byID, err := s.chunks.GetByChunkIDs(ctx, userID, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate chunks: %w", err)
	}

	candidates := make([]search.MemoryCandidate, 0, len(fused))
	for _, f := range fused {
		rec, ok := byID[f.ChunkID]
		if !ok {
			// Index and store can drift; a missing chunk is skipped.
			log.Printf("WARN: fused chunk %s missing from store", f.ChunkID)
			continue
		}
		candidates = append(candidates, search.MemoryCandidate{
			MemoryID: f.MemoryID,
			ChunkID:  f.ChunkID,
			Content:  rec.Content,
		})
	}
	return candidates, nil
}

func (s *QueryService) searchWeb(ctx context.Context, query string, limit int) []domain.WebResult {
	if s.web == nil {
		return nil
	}
	results, err := s.web.Search(ctx, query, limit)
	if err != nil {
		log.Printf("WARN: web search failed, continuing memory-only: %v", err)
		return nil
	}
	return results
}

// chatContext formats the user's recent exchanges the way the model
// expects: oldest first, answers capped so history stays small.
func (s *QueryService) chatContext(ctx context.Context, userID string) string {
	exchanges, err := s.messages.GetRecentExchanges(ctx, userID, chatContextTurns)
	if err != nil {
		log.Printf("WARN: chat context load failed, continuing without: %v", err)
		return ""
	}
	if len(exchanges) == 0 {
		return ""
	}

	var b strings.Builder
	for i := len(exchanges) - 1; i >= 0; i-- {
		e := exchanges[i]
		answer := e.Answer
		if len(answer) > chatAnswerCap {
			answer = answer[:chatAnswerCap] + "..."
		}
		fmt.Fprintf(&b, "User: %s\nAI: %s\n", e.Query, answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *QueryService) logQuery(ctx context.Context, entry QueryLogEntry) {
	if s.queryLog == nil {
		return
	}
	if _, err := s.queryLog.CreateQueryLog(ctx, entry); err != nil {
		log.Printf("WARN: query log write failed: %v", err)
	}
}

func buildCitations(chunks []domain.RerankedChunk, web []domain.RerankedWebResult) []domain.Citation {
	citations := make([]domain.Citation, 0, len(chunks)+len(web))
	seen := map[string]bool{}
	for _, c := range chunks {
		key := c.MemoryID + ":" + c.ChunkID
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, domain.Citation{MemoryID: c.MemoryID, ChunkID: c.ChunkID})
	}
	for _, w := range web {
		if w.URL == "" || seen[w.URL] {
			continue
		}
		seen[w.URL] = true
		citations = append(citations, domain.Citation{URL: w.URL, Title: w.Title})
	}
	return citations
}
