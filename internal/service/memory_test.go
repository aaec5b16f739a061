package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
)

type memoryFixture struct {
	service  *MemoryService
	memories *MockMemoryRepository
	chunks   *MockChunkRepository
	vectors  *MockVectorRepository
	embedder *mockEmbedder
}

func newMemoryFixture() *memoryFixture {
	f := &memoryFixture{
		memories: new(MockMemoryRepository),
		chunks:   new(MockChunkRepository),
		vectors:  new(MockVectorRepository),
		embedder: new(mockEmbedder),
	}
	f.service = NewMemoryService(f.memories, f.chunks, f.vectors, f.embedder)
	return f
}

func chunkRecord(memoryID string, index int, content string) domain.ChunkRecord {
	now := time.Now().UTC()
	return domain.ChunkRecord{
		ChunkID:   domain.ChunkID(memoryID, index),
		MemoryID:  memoryID,
		UserID:    "user-1",
		Index:     index,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryService_Get(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	memory := testMemoryForIngest("mem-1")
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)

	got, err := f.service.Get(ctx, "user-1", "mem-1")

	require.NoError(t, err)
	assert.Equal(t, "mem-1", got.ID)
}

func TestMemoryService_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	f.memories.On("GetByID", mock.Anything, "user-1", "nope").Return(nil, domain.ErrMemoryNotFound)

	_, err := f.service.Get(ctx, "user-1", "nope")

	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)
}

func TestMemoryService_List_DecodesCursor(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	encoded := pagination.EncodeCursor("mem-5", createdAt)

	page := &pagination.PageResult[*domain.Memory]{
		Items: []*domain.Memory{testMemoryForIngest("mem-6")},
	}
	f.memories.On("ListByUser", mock.Anything, "user-1", mock.MatchedBy(func(c *pagination.Cursor) bool {
		return c != nil && c.LastID == "mem-5" && c.Timestamp.Equal(createdAt)
	}), 20).Return(page, nil)

	result, err := f.service.List(ctx, ListMemoriesInput{UserID: "user-1", Cursor: encoded, Limit: 20})

	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	f.memories.AssertExpectations(t)
}

func TestMemoryService_List_InvalidCursor(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	_, err := f.service.List(ctx, ListMemoriesInput{UserID: "user-1", Cursor: "not-base64!!", Limit: 20})

	assert.Error(t, err)
	f.memories.AssertNotCalled(t, "ListByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMemoryService_GetChunks_ChecksMemoryFirst(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(nil, domain.ErrMemoryNotFound)

	_, err := f.service.GetChunks(ctx, "user-1", "mem-1")

	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)
	f.chunks.AssertNotCalled(t, "GetByMemoryID", mock.Anything, mock.Anything, mock.Anything)
}

func TestMemoryService_Delete_RemovesVectorsChunksThenMemory(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	f.vectors.On("DeleteByMemoryID", mock.Anything, "user-1", "mem-1").Return(nil)
	f.chunks.On("DeleteByMemoryID", mock.Anything, "user-1", "mem-1").Return(nil)
	f.memories.On("Delete", mock.Anything, "user-1", "mem-1").Return(nil)

	err := f.service.Delete(ctx, "user-1", "mem-1")

	require.NoError(t, err)
	f.vectors.AssertExpectations(t)
	f.chunks.AssertExpectations(t)
	f.memories.AssertExpectations(t)
}

func TestMemoryService_Delete_StopsOnVectorFailure(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	f.vectors.On("DeleteByMemoryID", mock.Anything, "user-1", "mem-1").Return(errors.New("index down"))

	err := f.service.Delete(ctx, "user-1", "mem-1")

	require.Error(t, err)
	f.memories.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestMemoryService_UpdateChunk_ReembedsEditedChunk(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	memory := testMemoryForIngest("mem-1")
	all := []domain.ChunkRecord{
		chunkRecord("mem-1", 0, "first chunk"),
		chunkRecord("mem-1", 1, "edited content"),
		chunkRecord("mem-1", 2, "third chunk"),
	}

	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)
	f.chunks.On("UpdateContent", mock.Anything, "user-1", "mem-1_1", "edited content").Return(nil)
	f.chunks.On("GetByMemoryID", mock.Anything, "user-1", "mem-1").Return(all, nil)
	f.embedder.On("Embed", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 1
	})).Return([][]float32{{0.5, 0.6}}, nil)
	f.vectors.On("Upsert", mock.Anything, "user-1", mock.MatchedBy(func(recs []domain.VectorRecord) bool {
		return len(recs) == 1 && recs[0].ID == "mem-1_1" &&
			recs[0].Metadata["memory_id"] == "mem-1"
	})).Return(nil)

	err := f.service.UpdateChunk(ctx, "user-1", "mem-1", "mem-1_1", "edited content")

	require.NoError(t, err)
	f.vectors.AssertExpectations(t)
}

func TestMemoryService_UpdateChunk_EmptyContent(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	err := f.service.UpdateChunk(ctx, "user-1", "mem-1", "mem-1_0", "")

	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	f.chunks.AssertNotCalled(t, "UpdateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMemoryService_UpdateChunk_ChunkNotInMemory(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	memory := testMemoryForIngest("mem-1")
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)
	f.chunks.On("UpdateContent", mock.Anything, "user-1", "other_9", "new").Return(nil)
	f.chunks.On("GetByMemoryID", mock.Anything, "user-1", "mem-1").Return([]domain.ChunkRecord{
		chunkRecord("mem-1", 0, "first chunk"),
	}, nil)

	err := f.service.UpdateChunk(ctx, "user-1", "mem-1", "other_9", "new")

	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
	f.embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestMemoryService_UpdateChunk_EmbedderFailure(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture()

	memory := testMemoryForIngest("mem-1")
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)
	f.chunks.On("UpdateContent", mock.Anything, "user-1", "mem-1_0", "new").Return(nil)
	f.chunks.On("GetByMemoryID", mock.Anything, "user-1", "mem-1").Return([]domain.ChunkRecord{
		chunkRecord("mem-1", 0, "new"),
	}, nil)
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))

	err := f.service.UpdateChunk(ctx, "user-1", "mem-1", "mem-1_0", "new")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	f.vectors.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}
