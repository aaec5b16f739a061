package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
)

// MemoryRepository handles persistence of memories (ingested documents).
type MemoryRepository struct {
	db dbtx
}

func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{db: pool}
}

func NewMemoryRepositoryWithTx(tx pgx.Tx) *MemoryRepository {
	return &MemoryRepository{db: tx}
}

func (r *MemoryRepository) Create(ctx context.Context, m *domain.Memory) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO memories (id, user_id, title, description, tags, source, language, content_kind, content_hash, ai_summary, ai_insights, related_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.UserID, m.Title, m.Description, m.Tags, nullableString(m.Source), nullableString(m.Language),
		m.ContentKind, nullableString(m.ContentHash), nullableString(m.AISummary), nullableString(m.AIInsights),
		m.RelatedIDs, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *MemoryRepository) GetByID(ctx context.Context, userID, id string) (*domain.Memory, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, title, description, tags, source, language, content_kind, content_hash, ai_summary, ai_insights, related_ids, created_at, updated_at
		 FROM memories WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	m, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemoryNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListByUser returns memories for a user ordered by creation time
// descending, using (created_at, id) keyset pagination.
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Memory], error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, title, description, tags, source, language, content_kind, content_hash, ai_summary, ai_insights, related_ids, created_at, updated_at
			 FROM memories
			 WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			userID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, title, description, tags, source, language, content_kind, content_hash, ai_summary, ai_insights, related_ids, created_at, updated_at
			 FROM memories
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanMemoryRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &pagination.PageResult[*domain.Memory]{
		Items:   items,
		Cursor:  nextCursor,
		HasMore: hasMore,
	}, nil
}

func scanMemoryRows(rows pgx.Rows) ([]*domain.Memory, error) {
	var results []*domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (r *MemoryRepository) UpdateAIFields(ctx context.Context, userID, id, summary, insights string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE memories SET ai_summary = $1, ai_insights = $2, updated_at = $3 WHERE id = $4 AND user_id = $5`,
		nullableString(summary), nullableString(insights), time.Now().UTC(), id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemoryNotFound
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM memories WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMemoryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*domain.Memory, error) {
	var m domain.Memory
	var source, language, contentHash, aiSummary, aiInsights *string
	err := row.Scan(
		&m.ID, &m.UserID, &m.Title, &m.Description, &m.Tags, &source, &language,
		&m.ContentKind, &contentHash, &aiSummary, &aiInsights, &m.RelatedIDs,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if source != nil {
		m.Source = *source
	}
	if language != nil {
		m.Language = *language
	}
	if contentHash != nil {
		m.ContentHash = *contentHash
	}
	if aiSummary != nil {
		m.AISummary = *aiSummary
	}
	if aiInsights != nil {
		m.AIInsights = *aiInsights
	}
	return &m, nil
}
