package service

import (
	"context"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
)

// MemoryRepositoryInterface defines the repository interface for memory persistence
type MemoryRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Memory) error
	GetByID(ctx context.Context, userID, id string) (*domain.Memory, error)
	ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Memory], error)
	UpdateAIFields(ctx context.Context, userID, id, summary, insights string) error
	Delete(ctx context.Context, userID, id string) error
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	InsertMany(ctx context.Context, chunks []domain.ChunkRecord) error
	GetByChunkIDs(ctx context.Context, userID string, chunkIDs []string) (map[string]domain.ChunkRecord, error)
	GetByMemoryID(ctx context.Context, userID, memoryID string) ([]domain.ChunkRecord, error)
	UpdateContent(ctx context.Context, userID, chunkID, content string) error
	DeleteByMemoryID(ctx context.Context, userID, memoryID string) error
}

// VectorRepositoryInterface defines the repository interface for vector persistence
type VectorRepositoryInterface interface {
	Upsert(ctx context.Context, userID string, records []domain.VectorRecord) error
	DeleteByMemoryID(ctx context.Context, userID, memoryID string) error
}

// IngestJobRepositoryInterface defines the repository interface for ingest job persistence
type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Memories() MemoryRepositoryInterface
	Chunks() ChunkRepositoryInterface
	Vectors() VectorRepositoryInterface
	IngestJobs() IngestJobRepositoryInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
