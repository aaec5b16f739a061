package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/search"
)

const vectorUpsertBatchSize = 100

// VectorRepository stores chunk embeddings and their flattened metadata,
// and serves the semantic retrieval channel.
type VectorRepository struct {
	db dbtx
}

func NewVectorRepository(pool *pgxpool.Pool) *VectorRepository {
	return &VectorRepository{db: pool}
}

func NewVectorRepositoryWithTx(tx dbtx) *VectorRepository {
	return &VectorRepository{db: tx}
}

// Upsert writes vector records in batches. The chunk ID is the primary
// key, so replaying an ingestion overwrites instead of duplicating.
func (r *VectorRepository) Upsert(ctx context.Context, userID string, records []domain.VectorRecord) error {
	for start := 0; start < len(records); start += vectorUpsertBatchSize {
		end := start + vectorUpsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		batch := &pgx.Batch{}
		for _, rec := range records[start:end] {
			if err := rec.Validate(); err != nil {
				return err
			}
			memoryID, _ := rec.Metadata["memory_id"].(string)
			kind, _ := rec.Metadata["content_type"].(string)
			batch.Queue(
				`INSERT INTO memory_vectors (chunk_id, memory_id, user_id, content_kind, embedding, metadata, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (chunk_id) DO UPDATE
				 SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at`,
				rec.ID, memoryID, userID, kind, pgvector.NewVector(rec.Values), rec.Metadata, time.Now().UTC(),
			)
		}

		if err := r.sendBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *VectorRepository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	sender, ok := r.db.(interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		return errors.New("repository: db does not support batching")
	}
	results := sender.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByMemoryID removes all vectors of one memory.
func (r *VectorRepository) DeleteByMemoryID(ctx context.Context, userID, memoryID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM memory_vectors WHERE user_id = $1 AND memory_id = $2`,
		userID, memoryID,
	)
	return err
}

// Query implements the semantic retrieval channel over the HNSW index.
func (r *VectorRepository) Query(ctx context.Context, vector []float32, filters search.Filters, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	vec := pgvector.NewVector(vector)

	sql := `SELECT v.chunk_id, v.memory_id,
	        1.0 / (1.0 + (v.embedding <=> $1)) AS score
	        FROM memory_vectors v`
	args := []any{vec, filters.UserID}

	if len(filters.Tags) > 0 {
		sql += ` JOIN memories m ON m.id = v.memory_id`
	}

	sql += ` WHERE v.user_id = $2`

	if len(filters.MemoryIDs) > 0 {
		args = append(args, filters.MemoryIDs)
		sql += ` AND v.memory_id = ANY($3)`
	}
	if len(filters.ContentKinds) > 0 {
		kinds := make([]string, len(filters.ContentKinds))
		for i, k := range filters.ContentKinds {
			kinds[i] = string(k)
		}
		args = append(args, kinds)
		sql += ` AND v.content_kind = ANY($` + paramIndex(len(args)) + `)`
	}
	if len(filters.Tags) > 0 {
		args = append(args, filters.Tags)
		sql += ` AND m.tags && $` + paramIndex(len(args))
	}

	args = append(args, topK)
	sql += ` ORDER BY v.embedding <=> $1 LIMIT $` + paramIndex(len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		if err := rows.Scan(&res.ChunkID, &res.MemoryID, &res.Score); err != nil {
			return nil, err
		}
		res.Channel = domain.ChannelSemantic
		results = append(results, res)
	}
	return results, rows.Err()
}
