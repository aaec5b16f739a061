package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus represents the status of an ingestion job
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IngestJob represents an async ingestion job queued for a memory.
// Payload carries the extraction input (raw text or a storage key),
// interpreted according to the memory's content kind.
type IngestJob struct {
	ID          string
	MemoryID    string
	UserID      string
	Kind        ContentKind
	Payload     string
	Status      IngestJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewIngestJob creates a new IngestJob instance
func NewIngestJob(
	id, memoryID, userID string,
	kind ContentKind,
	payload string,
	status IngestJobStatus,
	createdAt time.Time,
) *IngestJob {
	return &IngestJob{
		ID:        id,
		MemoryID:  memoryID,
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
		Status:    status,
		Retries:   0,
		CreatedAt: createdAt,
	}
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return fmt.Errorf("ingest job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("ingest job ID is required")
	}

	if j.MemoryID == "" {
		return fmt.Errorf("ingest job MemoryID is required")
	}

	if j.UserID == "" {
		return fmt.Errorf("ingest job UserID is required")
	}

	if !isValidIngestJobStatus(j.Status) {
		return fmt.Errorf("ingest job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("ingest job Retries cannot be negative")
	}

	return nil
}

func isValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing,
		IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
