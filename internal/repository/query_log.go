package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mementolabs/memento/internal/service"
)

// QueryLogRepository stores query logs for evaluation/feedback loops.
type QueryLogRepository struct {
	pool *pgxpool.Pool
}

func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{pool: pool}
}

func (r *QueryLogRepository) CreateQueryLog(ctx context.Context, entry service.QueryLogEntry) (string, error) {
	filters := map[string]any{}
	filters["query_length"] = len(entry.Query)
	if len(entry.Filters.MemoryIDs) > 0 {
		filters["memory_ids"] = entry.Filters.MemoryIDs
	}
	if len(entry.Filters.ContentKinds) > 0 {
		filters["content_kinds"] = entry.Filters.ContentKinds
	}
	if len(entry.Filters.Tags) > 0 {
		filters["tags"] = entry.Filters.Tags
	}

	filtersJSON, _ := json.Marshal(filters)
	resultsJSON, _ := json.Marshal(entry.Results)

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO query_logs (user_id, query, refined_query, filters, results, result_count, web_result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		entry.UserID,
		entry.Query,
		nullableString(entry.RefinedQuery),
		filtersJSON,
		resultsJSON,
		len(entry.Results),
		entry.WebResultCount,
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
