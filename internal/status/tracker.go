package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mementolabs/memento/internal/domain"
)

const (
	keyPrefix    = "doc_status"
	completedTTL = 10 * time.Minute
	failedTTL    = time.Hour
)

// Tracker stores per-document processing status in Redis, keyed by
// (user, document). Records expire a bounded time after reaching a
// terminal state so the store cannot grow without bound.
type Tracker struct {
	rdb *redis.Client
}

// NewTracker creates a Tracker over an existing Redis client.
func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb}
}

func key(userID, documentID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, userID, documentID)
}

// Create writes the initial QUEUED record for a document.
func (t *Tracker) Create(ctx context.Context, userID, documentID, title string) error {
	now := time.Now().UTC()
	rec := domain.StatusRecord{
		UserID:      userID,
		DocumentID:  documentID,
		Title:       title,
		Status:      domain.StatusQueued,
		Progress:    domain.StatusQueued.Progress(),
		StartTime:   now,
		LastUpdated: now,
	}
	return t.write(ctx, rec)
}

// Update moves a document to the given lifecycle step. An empty errMsg
// is ignored; FAILED updates should carry one.
func (t *Tracker) Update(ctx context.Context, userID, documentID string, status domain.ProcessingStatus, errMsg string) error {
	rec, err := t.Get(ctx, userID, documentID)
	if err != nil {
		if !errors.Is(err, domain.ErrStatusNotFound) {
			return err
		}
		rec = &domain.StatusRecord{
			UserID:     userID,
			DocumentID: documentID,
			StartTime:  time.Now().UTC(),
		}
	}

	rec.Status = status
	rec.Progress = status.Progress()
	rec.LastUpdated = time.Now().UTC()
	if errMsg != "" {
		rec.Error = errMsg
	}

	return t.write(ctx, *rec)
}

// Get returns the status record for one document.
func (t *Tracker) Get(ctx context.Context, userID, documentID string) (*domain.StatusRecord, error) {
	raw, err := t.rdb.Get(ctx, key(userID, documentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status %s/%s: %w", userID, documentID, err)
	}

	var rec domain.StatusRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode status %s/%s: %w", userID, documentID, err)
	}
	return &rec, nil
}

// GetAllForUser returns every live status record for a user.
func (t *Tracker) GetAllForUser(ctx context.Context, userID string) ([]domain.StatusRecord, error) {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, userID)

	var records []domain.StatusRecord
	iter := t.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		raw, err := t.rdb.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan status for user %s: %w", userID, err)
		}

		var rec domain.StatusRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan status keys for user %s: %w", userID, err)
	}

	return records, nil
}

func (t *Tracker) write(ctx context.Context, rec domain.StatusRecord) error {
	if err := domain.ValidateStatusRecord(&rec); err != nil {
		return err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode status %s/%s: %w", rec.UserID, rec.DocumentID, err)
	}

	ttl := time.Duration(0)
	switch rec.Status {
	case domain.StatusCompleted:
		ttl = completedTTL
	case domain.StatusFailed:
		ttl = failedTTL
	}

	if err := t.rdb.Set(ctx, key(rec.UserID, rec.DocumentID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("write status %s/%s: %w", rec.UserID, rec.DocumentID, err)
	}
	return nil
}
