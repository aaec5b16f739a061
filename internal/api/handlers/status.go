package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/api/middleware"
	"github.com/mementolabs/memento/internal/domain"
)

type StatusReader interface {
	Get(ctx context.Context, userID, documentID string) (*domain.StatusRecord, error)
	GetAllForUser(ctx context.Context, userID string) ([]domain.StatusRecord, error)
}

type StatusHandler struct {
	tracker StatusReader
}

func NewStatusHandler(tracker StatusReader) *StatusHandler {
	return &StatusHandler{tracker: tracker}
}

type StatusResponse struct {
	DocumentID  string `json:"document_id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	StartTime   string `json:"start_time"`
	LastUpdated string `json:"last_updated"`
	Error       string `json:"error,omitempty"`
}

func statusToResponse(rec *domain.StatusRecord) *StatusResponse {
	return &StatusResponse{
		DocumentID:  rec.DocumentID,
		Title:       rec.Title,
		Status:      string(rec.Status),
		Progress:    rec.Progress,
		StartTime:   rec.StartTime.Format("2006-01-02T15:04:05Z"),
		LastUpdated: rec.LastUpdated.Format("2006-01-02T15:04:05Z"),
		Error:       rec.Error,
	}
}

func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID := chi.URLParam(r, "documentID")
	if documentID == "" {
		api.Error(w, http.StatusBadRequest, "document id is required")
		return
	}

	rec, err := h.tracker.Get(r.Context(), userID, documentID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, statusToResponse(rec))
}

func (h *StatusHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	records, err := h.tracker.GetAllForUser(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*StatusResponse, len(records))
	for i := range records {
		responses[i] = statusToResponse(&records[i])
	}

	api.Success(w, http.StatusOK, responses)
}
