package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the default embedding model name.
	DefaultEmbeddingModel = "jina-embeddings-v3"
	// DefaultEmbeddingDimensions is the vector size of the default model.
	DefaultEmbeddingDimensions = 1024
	// DefaultEmbeddingBatchSize bounds one embedding request.
	DefaultEmbeddingBatchSize = 128
	// DefaultEmbeddingRetries bounds the retry loop per batch.
	DefaultEmbeddingRetries = 5
)

var (
	// ErrEmptyText is returned when no text is provided
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI is the OpenAI-compatible embeddings endpoint.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// EmbedderConfig configures an Embedder.
type EmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
	MaxRetries int
}

// Embedder generates fixed-dimensionality embeddings through any
// OpenAI-compatible endpoint; a custom base URL points it at the
// Jina-family embedding API. Batches retry with a bounded loop and
// backoff, never recursion.
type Embedder struct {
	api        EmbeddingAPI
	model      string
	dimensions int
	batchSize  int
	maxRetries int
	backoff    time.Duration
}

// NewEmbedder creates an Embedder from config, filling defaults.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewEmbedderWithAPI(openai.NewClientWithConfig(clientCfg), cfg)
}

// NewEmbedderWithAPI creates an Embedder over an explicit API, used by
// tests to substitute the backend.
func NewEmbedderWithAPI(api EmbeddingAPI, cfg EmbedderConfig) *Embedder {
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultEmbeddingRetries
	}
	return &Embedder{
		api:        api,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
	}
}

// Embed returns one embedding per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}

	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      texts,
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.dimensions,
		})
		if err == nil {
			return e.collect(resp, len(texts))
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < e.maxRetries {
			log.Printf("WARN: embedding attempt %d/%d failed: %v", attempt, e.maxRetries, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.backoff * time.Duration(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("embed batch after %d attempts: %w", e.maxRetries, lastErr)
}

func (e *Embedder) collect(resp openai.EmbeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(resp.Data))
	}

	out := make([][]float32, want)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= want {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, e.dimensions, len(d.Embedding))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
