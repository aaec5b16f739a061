package service

import (
	"context"
	"log"

	"github.com/mementolabs/memento/internal/domain"
)

const upsertBatchSize = 100

// UpsertBatcher pushes vector records to the index in fixed-size batches.
// Invalid records are dropped with a warning and a failed batch does not
// stop the remaining batches; ingestion prefers partial coverage over
// aborting a whole document.
type UpsertBatcher struct {
	vectors   VectorRepositoryInterface
	batchSize int
}

func NewUpsertBatcher(vectors VectorRepositoryInterface) *UpsertBatcher {
	return &UpsertBatcher{vectors: vectors, batchSize: upsertBatchSize}
}

// UpsertAll validates, batches and submits records. It returns the number
// of records that were part of a successfully submitted batch.
func (b *UpsertBatcher) UpsertAll(ctx context.Context, userID string, records []domain.VectorRecord) int {
	valid := records[:0:0]
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			log.Printf("upsert: dropping invalid vector record %q: %v", rec.ID, err)
			continue
		}
		valid = append(valid, rec)
	}

	stored := 0
	for start := 0; start < len(valid); start += b.batchSize {
		end := start + b.batchSize
		if end > len(valid) {
			end = len(valid)
		}
		if err := b.vectors.Upsert(ctx, userID, valid[start:end]); err != nil {
			log.Printf("upsert: batch %d-%d failed: %v", start, end, err)
			continue
		}
		stored += end - start
	}
	return stored
}
