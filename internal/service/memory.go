package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/ingest"
	"github.com/mementolabs/memento/internal/pagination"
	"github.com/mementolabs/memento/internal/telemetry"
)

// MemoryService handles read and update operations on stored memories.
type MemoryService struct {
	memories      MemoryRepositoryInterface
	chunks        ChunkRepositoryInterface
	vectors       VectorRepositoryInterface
	embedder      EmbedderInterface
	contextWindow int
}

func NewMemoryService(
	memories MemoryRepositoryInterface,
	chunks ChunkRepositoryInterface,
	vectors VectorRepositoryInterface,
	embedder EmbedderInterface,
) *MemoryService {
	return &MemoryService{
		memories:      memories,
		chunks:        chunks,
		vectors:       vectors,
		embedder:      embedder,
		contextWindow: ingest.DefaultContextWindow,
	}
}

func (s *MemoryService) Get(ctx context.Context, userID, memoryID string) (*domain.Memory, error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.Get", telemetry.SpanAttributes{
		UserID:    userID,
		MemoryID:  memoryID,
		Operation: "get",
	})
	defer span.End()

	return s.memories.GetByID(ctx, userID, memoryID)
}

type ListMemoriesInput struct {
	UserID string
	Cursor string
	Limit  int
}

func (s *MemoryService) List(ctx context.Context, input ListMemoriesInput) (*pagination.PageResult[*domain.Memory], error) {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.List", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, err
	}

	return s.memories.ListByUser(ctx, input.UserID, cursor, input.Limit)
}

func (s *MemoryService) GetChunks(ctx context.Context, userID, memoryID string) ([]domain.ChunkRecord, error) {
	if _, err := s.memories.GetByID(ctx, userID, memoryID); err != nil {
		return nil, err
	}
	return s.chunks.GetByMemoryID(ctx, userID, memoryID)
}

// Delete removes a memory with its chunks and vectors.
func (s *MemoryService) Delete(ctx context.Context, userID, memoryID string) error {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.Delete", telemetry.SpanAttributes{
		UserID:    userID,
		MemoryID:  memoryID,
		Operation: "delete",
	})
	defer span.End()

	if err := s.vectors.DeleteByMemoryID(ctx, userID, memoryID); err != nil {
		return err
	}
	if err := s.chunks.DeleteByMemoryID(ctx, userID, memoryID); err != nil {
		return err
	}
	return s.memories.Delete(ctx, userID, memoryID)
}

// UpdateChunk rewrites one chunk's content, then re-embeds and updates
// the vector index for that chunk only. The memory ID and chunk ID never
// change on edit.
func (s *MemoryService) UpdateChunk(ctx context.Context, userID, memoryID, chunkID, content string) error {
	ctx, span := telemetry.StartSpan(ctx, "MemoryService.UpdateChunk", telemetry.SpanAttributes{
		UserID:    userID,
		MemoryID:  memoryID,
		ChunkID:   chunkID,
		Operation: "update_chunk",
	})
	defer span.End()

	if content == "" {
		return domain.ErrMissingRequiredField
	}

	memory, err := s.memories.GetByID(ctx, userID, memoryID)
	if err != nil {
		return err
	}

	if err := s.chunks.UpdateContent(ctx, userID, chunkID, content); err != nil {
		return err
	}

	all, err := s.chunks.GetByMemoryID(ctx, userID, memoryID)
	if err != nil {
		return err
	}

	index := -1
	texts := make([]string, len(all))
	for i, c := range all {
		texts[i] = c.Content
		if c.ChunkID == chunkID {
			index = i
		}
	}
	if index < 0 {
		return domain.ErrChunkNotFound
	}

	// Re-embed with the same neighbor context the original ingestion used.
	combined := ingest.Combine(texts, s.contextWindow)

	vectors, err := s.embedder.Embed(ctx, []string{embedText(memory.Title, memory.Description, combined[index])})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	base := domain.Metadata{
		UserID:      memory.UserID,
		MemoryID:    memory.ID,
		Title:       memory.Title,
		Description: memory.Description,
		CreatedAt:   memory.CreatedAt,
		LastUpdated: time.Now().UTC(),
		Tags:        memory.Tags,
		Source:      memory.Source,
		Language:    memory.Language,
		ContentKind: memory.ContentKind,
		ContentHash: memory.ContentHash,
	}

	metas, err := ingest.Propagate(base, texts, describeFor(memory.ContentKind, texts))
	if err != nil {
		return err
	}

	flat, err := metas[index].Flatten()
	if err != nil {
		return err
	}

	return s.vectors.Upsert(ctx, userID, []domain.VectorRecord{{
		ID:       chunkID,
		Values:   vectors[0],
		Metadata: flat,
	}})
}
