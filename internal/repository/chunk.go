package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/search"
)

const chunkInsertBatchSize = 100

// ChunkRepository handles persistence of memory chunks. It also serves
// the lexical retrieval channel over the generated tsvector column.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// InsertMany writes chunks in batches. Chunk IDs are primary keys, so a
// replayed ingestion overwrites rather than duplicates.
func (r *ChunkRepository) InsertMany(ctx context.Context, chunks []domain.ChunkRecord) error {
	for start := 0; start < len(chunks); start += chunkInsertBatchSize {
		end := start + chunkInsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := &pgx.Batch{}
		for _, c := range chunks[start:end] {
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			updatedAt := c.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = createdAt
			}
			batch.Queue(
				`INSERT INTO memory_chunks (chunk_id, memory_id, user_id, chunk_index, content, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (chunk_id) DO UPDATE
				 SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
				c.ChunkID, c.MemoryID, c.UserID, c.Index, c.Content, createdAt, updatedAt,
			)
		}

		if err := r.sendBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
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

// GetByChunkIDs hydrates chunk contents for a user. Missing IDs are
// skipped rather than treated as an error; the caller decides whether a
// gap matters.
func (r *ChunkRepository) GetByChunkIDs(ctx context.Context, userID string, chunkIDs []string) (map[string]domain.ChunkRecord, error) {
	if len(chunkIDs) == 0 {
		return map[string]domain.ChunkRecord{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT chunk_id, memory_id, user_id, chunk_index, content, created_at, updated_at
		 FROM memory_chunks
		 WHERE user_id = $1 AND chunk_id = ANY($2)`,
		userID, chunkIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.ChunkRecord, len(chunkIDs))
	for rows.Next() {
		var c domain.ChunkRecord
		if err := rows.Scan(&c.ChunkID, &c.MemoryID, &c.UserID, &c.Index, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out[c.ChunkID] = c
	}
	return out, rows.Err()
}

// GetByMemoryID returns all chunks of one memory in index order.
func (r *ChunkRepository) GetByMemoryID(ctx context.Context, userID, memoryID string) ([]domain.ChunkRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT chunk_id, memory_id, user_id, chunk_index, content, created_at, updated_at
		 FROM memory_chunks
		 WHERE user_id = $1 AND memory_id = $2
		 ORDER BY chunk_index ASC`,
		userID, memoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChunkRecord
	for rows.Next() {
		var c domain.ChunkRecord
		if err := rows.Scan(&c.ChunkID, &c.MemoryID, &c.UserID, &c.Index, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateContent rewrites a single chunk's text in place.
func (r *ChunkRepository) UpdateContent(ctx context.Context, userID, chunkID, content string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE memory_chunks SET content = $1, updated_at = $2 WHERE chunk_id = $3 AND user_id = $4`,
		content, time.Now().UTC(), chunkID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// DeleteByMemoryID removes all chunks of one memory.
func (r *ChunkRepository) DeleteByMemoryID(ctx context.Context, userID, memoryID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM memory_chunks WHERE user_id = $1 AND memory_id = $2`,
		userID, memoryID,
	)
	return err
}

// Query implements the lexical retrieval channel with websearch syntax
// over the generated tsvector column. The incoming query is already
// normalized by the caller.
func (r *ChunkRepository) Query(ctx context.Context, query string, filters search.Filters, topK int) ([]domain.SearchResult, error) {
	if query == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 10
	}

	sql := `SELECT c.chunk_id, c.memory_id,
	        ts_rank(c.content_tsv, websearch_to_tsquery('english', $2)) AS rank
	        FROM memory_chunks c`
	args := []any{filters.UserID, query}

	joinMemories := len(filters.ContentKinds) > 0 || len(filters.Tags) > 0
	if joinMemories {
		sql += ` JOIN memories m ON m.id = c.memory_id`
	}

	sql += ` WHERE c.user_id = $1 AND c.content_tsv @@ websearch_to_tsquery('english', $2)`

	if len(filters.MemoryIDs) > 0 {
		args = append(args, filters.MemoryIDs)
		sql += ` AND c.memory_id = ANY($3)`
	}
	if len(filters.ContentKinds) > 0 {
		kinds := make([]string, len(filters.ContentKinds))
		for i, k := range filters.ContentKinds {
			kinds[i] = string(k)
		}
		args = append(args, kinds)
		sql += ` AND m.content_kind = ANY($` + paramIndex(len(args)) + `)`
	}
	if len(filters.Tags) > 0 {
		args = append(args, filters.Tags)
		sql += ` AND m.tags && $` + paramIndex(len(args))
	}

	args = append(args, topK)
	sql += ` ORDER BY rank DESC LIMIT $` + paramIndex(len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		var rank float32
		if err := rows.Scan(&res.ChunkID, &res.MemoryID, &rank); err != nil {
			return nil, err
		}
		res.Score = float64(rank)
		res.Channel = domain.ChannelFullText
		results = append(results, res)
	}
	return results, rows.Err()
}
