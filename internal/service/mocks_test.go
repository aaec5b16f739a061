package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
)

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	mock.Mock
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

type MockMemoryRepository struct {
	mock.Mock
}

func (m *MockMemoryRepository) Create(ctx context.Context, mem *domain.Memory) error {
	args := m.Called(ctx, mem)
	return args.Error(0)
}

func (m *MockMemoryRepository) GetByID(ctx context.Context, userID, id string) (*domain.Memory, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Memory), args.Error(1)
}

func (m *MockMemoryRepository) ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Memory], error) {
	args := m.Called(ctx, userID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Memory]), args.Error(1)
}

func (m *MockMemoryRepository) UpdateAIFields(ctx context.Context, userID, id, summary, insights string) error {
	args := m.Called(ctx, userID, id, summary, insights)
	return args.Error(0)
}

func (m *MockMemoryRepository) Delete(ctx context.Context, userID, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) InsertMany(ctx context.Context, chunks []domain.ChunkRecord) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) GetByChunkIDs(ctx context.Context, userID string, chunkIDs []string) (map[string]domain.ChunkRecord, error) {
	args := m.Called(ctx, userID, chunkIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.ChunkRecord), args.Error(1)
}

func (m *MockChunkRepository) GetByMemoryID(ctx context.Context, userID, memoryID string) ([]domain.ChunkRecord, error) {
	args := m.Called(ctx, userID, memoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChunkRecord), args.Error(1)
}

func (m *MockChunkRepository) UpdateContent(ctx context.Context, userID, chunkID, content string) error {
	args := m.Called(ctx, userID, chunkID, content)
	return args.Error(0)
}

func (m *MockChunkRepository) DeleteByMemoryID(ctx context.Context, userID, memoryID string) error {
	args := m.Called(ctx, userID, memoryID)
	return args.Error(0)
}

type MockVectorRepository struct {
	mock.Mock
}

func (m *MockVectorRepository) Upsert(ctx context.Context, userID string, records []domain.VectorRecord) error {
	args := m.Called(ctx, userID, records)
	return args.Error(0)
}

func (m *MockVectorRepository) DeleteByMemoryID(ctx context.Context, userID, memoryID string) error {
	args := m.Called(ctx, userID, memoryID)
	return args.Error(0)
}

type MockIngestJobRepository struct {
	mock.Mock
}

func (m *MockIngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// fakeTxRunner passes the same repositories through without a real
// transaction; the services only care about the call sequence.
type fakeTxRunner struct {
	memories MemoryRepositoryInterface
	chunks   ChunkRepositoryInterface
	vectors  VectorRepositoryInterface
	jobs     IngestJobRepositoryInterface
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(f)
}

func (f *fakeTxRunner) Memories() MemoryRepositoryInterface { return f.memories }

func (f *fakeTxRunner) Chunks() ChunkRepositoryInterface { return f.chunks }

func (f *fakeTxRunner) Vectors() VectorRepositoryInterface { return f.vectors }

func (f *fakeTxRunner) IngestJobs() IngestJobRepositoryInterface { return f.jobs }

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) Create(ctx context.Context, userID, documentID, title string) error {
	args := m.Called(ctx, userID, documentID, title)
	return args.Error(0)
}

func (m *mockTracker) Update(ctx context.Context, userID, documentID string, status domain.ProcessingStatus, errMsg string) error {
	args := m.Called(ctx, userID, documentID, status, errMsg)
	return args.Error(0)
}

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockSegmentClient struct {
	mock.Mock
}

func (m *mockSegmentClient) Segment(ctx context.Context, text string) ([]string, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
