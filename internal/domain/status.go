package domain

import (
	"fmt"
	"time"
)

// ProcessingStatus is one step of the ingestion lifecycle.
type ProcessingStatus string

const (
	StatusQueued             ProcessingStatus = "QUEUED"
	StatusProcessing         ProcessingStatus = "PROCESSING"
	StatusContextualizing    ProcessingStatus = "CONTEXTUALIZING"
	StatusCreatingEmbeddings ProcessingStatus = "CREATING_EMBEDDINGS"
	StatusStoringVectors     ProcessingStatus = "STORING_VECTORS"
	StatusStoringDocument    ProcessingStatus = "STORING_DOCUMENT"
	StatusCompleted          ProcessingStatus = "COMPLETED"
	StatusFailed             ProcessingStatus = "FAILED"
)

// IsTerminal reports whether the status ends the lifecycle.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress maps a lifecycle step to its nominal completion percent.
func (s ProcessingStatus) Progress() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 15
	case StatusContextualizing:
		return 35
	case StatusCreatingEmbeddings:
		return 55
	case StatusStoringVectors:
		return 75
	case StatusStoringDocument:
		return 90
	case StatusCompleted:
		return 100
	case StatusFailed:
		return 100
	}
	return 0
}

// StatusRecord tracks the processing state of one document for one user.
type StatusRecord struct {
	UserID      string           `json:"user_id"`
	DocumentID  string           `json:"document_id"`
	Title       string           `json:"title"`
	Status      ProcessingStatus `json:"status"`
	Progress    int              `json:"progress"`
	StartTime   time.Time        `json:"start_time"`
	LastUpdated time.Time        `json:"last_updated"`
	Error       string           `json:"error,omitempty"`
}

// ValidateStatusRecord validates a StatusRecord instance
func ValidateStatusRecord(r *StatusRecord) error {
	if r == nil {
		return fmt.Errorf("status record cannot be nil")
	}

	if r.UserID == "" {
		return fmt.Errorf("status record UserID is required")
	}

	if r.DocumentID == "" {
		return fmt.Errorf("status record DocumentID is required")
	}

	if !isValidProcessingStatus(r.Status) {
		return fmt.Errorf("status record Status is invalid: %s", r.Status)
	}

	return nil
}

func isValidProcessingStatus(s ProcessingStatus) bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusContextualizing,
		StatusCreatingEmbeddings, StatusStoringVectors,
		StatusStoringDocument, StatusCompleted, StatusFailed:
		return true
	}
	return false
}
