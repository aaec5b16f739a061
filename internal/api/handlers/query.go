package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/api/middleware"
	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/search"
	"github.com/mementolabs/memento/internal/service"
)

type QueryRunner interface {
	Retrieve(ctx context.Context, input service.QueryInput) (*service.QueryResult, error)
	Answer(ctx context.Context, input service.QueryInput, sink search.StreamSink) (*service.QueryResult, error)
}

type QueryHandler struct {
	svc QueryRunner
}

func NewQueryHandler(svc QueryRunner) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query        string   `json:"query"`
	MemoryIDs    []string `json:"memory_ids"`
	ContentKinds []string `json:"content_kinds"`
	Tags         []string `json:"tags"`
	TopK         int      `json:"top_k"`
	RetrieveOnly bool     `json:"retrieve_only"`
}

type SourceResponse struct {
	MemoryID  string  `json:"memory_id"`
	ChunkID   string  `json:"chunk_id"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}

type QueryResponse struct {
	Answer    string            `json:"answer,omitempty"`
	Sources   []SourceResponse  `json:"sources"`
	Citations []domain.Citation `json:"citations"`
}

func sourcesFromResult(result *service.QueryResult) []SourceResponse {
	sources := make([]SourceResponse, len(result.Chunks))
	for i, c := range result.Chunks {
		sources[i] = SourceResponse{
			MemoryID:  c.MemoryID,
			ChunkID:   c.ChunkID,
			Content:   c.Content,
			Relevance: c.Relevance,
		}
	}
	return sources
}

// bufferSink collects streamed deltas into one answer string.
type bufferSink struct {
	buf strings.Builder
}

func (s *bufferSink) Delta(text string) error {
	s.buf.WriteString(text)
	return nil
}

func (s *bufferSink) Error(error) {}

// Query answers a question in one JSON response. With retrieve_only set
// the language model is skipped and only the ranked sources come back.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input, ok := h.buildInput(w, userID, &req)
	if !ok {
		return
	}

	if req.RetrieveOnly {
		result, err := h.svc.Retrieve(r.Context(), input)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusOK, QueryResponse{
			Sources:   sourcesFromResult(result),
			Citations: result.Citations,
		})
		return
	}

	sink := &bufferSink{}
	result, err := h.svc.Answer(r.Context(), input, sink)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, QueryResponse{
		Answer:    sink.buf.String(),
		Sources:   sourcesFromResult(result),
		Citations: result.Citations,
	})
}

func (h *QueryHandler) buildInput(w http.ResponseWriter, userID string, req *QueryRequest) (service.QueryInput, bool) {
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return service.QueryInput{}, false
	}

	kinds := make([]domain.ContentKind, 0, len(req.ContentKinds))
	for _, k := range req.ContentKinds {
		kind := domain.ContentKind(k)
		if !domain.IsValidContentKind(kind) {
			api.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid content kind: %s", k))
			return service.QueryInput{}, false
		}
		kinds = append(kinds, kind)
	}

	return service.QueryInput{
		UserID:       userID,
		Query:        req.Query,
		MemoryIDs:    req.MemoryIDs,
		ContentKinds: kinds,
		Tags:         req.Tags,
		TopK:         req.TopK,
	}, true
}

type sseDelta struct {
	Delta string `json:"delta"`
}

type sseError struct {
	Error string `json:"error"`
}

type sseDone struct {
	Citations []domain.Citation `json:"citations"`
}

// sseSink streams answer deltas as server-sent events.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Delta(text string) error {
	payload, err := json.Marshal(sseDelta{Delta: text})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Error(streamErr error) {
	payload, err := json.Marshal(sseError{Error: streamErr.Error()})
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", payload)
	s.flusher.Flush()
}

// QueryStream answers a question over SSE. Deltas arrive as data events;
// a terminal done event carries the citations, or an error event reports
// an upstream failure. Retrieval failures before any token streams still
// map to plain HTTP errors.
func (h *QueryHandler) QueryStream(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input, ok := h.buildInput(w, userID, &req)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	result, err := h.svc.Answer(r.Context(), input, sink)
	if err != nil {
		if result == nil {
			// Retrieval failed before streaming started; the sink never
			// saw the error, so report it as an SSE error event.
			sink.Error(err)
		}
		return
	}

	payload, err := json.Marshal(sseDone{Citations: result.Citations})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", payload)
	flusher.Flush()
}
