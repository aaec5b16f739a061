package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/service"
)

// MessageRepository persists question/answer exchanges and the citations
// each answer drew on.
type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func NewMessageRepositoryWithTx(tx dbtx) *MessageRepository {
	return &MessageRepository{db: tx}
}

// SaveAnswer stores a completed exchange with its citations.
func (r *MessageRepository) SaveAnswer(ctx context.Context, userID, query, answer string, citations []domain.Citation) error {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.Exec(ctx,
		`INSERT INTO messages (id, user_id, query, answer, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, userID, query, answer, now,
	)
	if err != nil {
		return err
	}

	for _, c := range citations {
		_, err := r.db.Exec(ctx,
			`INSERT INTO web_citations (id, message_id, memory_id, chunk_id, url, title, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), id, nullableString(c.MemoryID), nullableString(c.ChunkID),
			nullableString(c.URL), nullableString(c.Title), now,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetRecentExchanges returns the user's most recent turns, newest first.
func (r *MessageRepository) GetRecentExchanges(ctx context.Context, userID string, limit int) ([]service.Exchange, error) {
	if limit <= 0 {
		limit = 2
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, query, answer, created_at
		 FROM messages
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []service.Exchange
	for rows.Next() {
		var e service.Exchange
		if err := rows.Scan(&e.ID, &e.UserID, &e.Query, &e.Answer, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetCitations returns the citations stored for one message.
func (r *MessageRepository) GetCitations(ctx context.Context, messageID string) ([]domain.Citation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT memory_id, chunk_id, url, title
		 FROM web_citations
		 WHERE message_id = $1
		 ORDER BY created_at ASC, id ASC`,
		messageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Citation
	for rows.Next() {
		var memoryID, chunkID, url, title *string
		if err := rows.Scan(&memoryID, &chunkID, &url, &title); err != nil {
			return nil, err
		}
		var c domain.Citation
		if memoryID != nil {
			c.MemoryID = *memoryID
		}
		if chunkID != nil {
			c.ChunkID = *chunkID
		}
		if url != nil {
			c.URL = *url
		}
		if title != nil {
			c.Title = *title
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
