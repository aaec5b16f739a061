package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mementolabs/memento/internal/api"
	"github.com/mementolabs/memento/internal/api/middleware"
	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
	"github.com/mementolabs/memento/internal/service"
)

type IngestEnqueuer interface {
	Enqueue(ctx context.Context, input service.EnqueueInput) (string, error)
}

type MemoryReader interface {
	Get(ctx context.Context, userID, memoryID string) (*domain.Memory, error)
	List(ctx context.Context, input service.ListMemoriesInput) (*pagination.PageResult[*domain.Memory], error)
	GetChunks(ctx context.Context, userID, memoryID string) ([]domain.ChunkRecord, error)
	Delete(ctx context.Context, userID, memoryID string) error
	UpdateChunk(ctx context.Context, userID, memoryID, chunkID, content string) error
}

// UploadURLSigner mints presigned upload URLs for media sources. Nil
// when object storage is not configured.
type UploadURLSigner interface {
	GenerateUploadURL(ctx context.Context, key, contentType string) (string, error)
}

type MemoryHandler struct {
	ingest   IngestEnqueuer
	memories MemoryReader
	signer   UploadURLSigner
}

func NewMemoryHandler(ingest IngestEnqueuer, memories MemoryReader) *MemoryHandler {
	return &MemoryHandler{ingest: ingest, memories: memories}
}

// WithUploader enables the presigned media upload endpoint.
func (h *MemoryHandler) WithUploader(signer UploadURLSigner) *MemoryHandler {
	h.signer = signer
	return h
}

type IngestRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Kind        string   `json:"kind"`
	Content     string   `json:"content"`
	Key         string   `json:"key"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	Source      string   `json:"source"`
	Language    string   `json:"language"`
}

type IngestResponse struct {
	MemoryID string `json:"memory_id"`
}

type MemoryResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Kind        string   `json:"kind"`
	Tags        []string `json:"tags"`
	Source      string   `json:"source"`
	Language    string   `json:"language"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func memoryToResponse(m *domain.Memory) *MemoryResponse {
	return &MemoryResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Kind:        string(m.ContentKind),
		Tags:        m.Tags,
		Source:      m.Source,
		Language:    m.Language,
		CreatedAt:   m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   m.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

type ChunkResponse struct {
	ChunkID  string `json:"chunk_id"`
	MemoryID string `json:"memory_id"`
	Index    int    `json:"index"`
	Content  string `json:"content"`
}

// Ingest accepts inline text or note content. The payload travels to the
// ingest queue as-is.
func (h *MemoryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, func(req *IngestRequest) (domain.ContentKind, string, bool) {
		kind := domain.ContentKind(req.Kind)
		if kind == "" {
			kind = domain.ContentKindNote
		}
		if kind != domain.ContentKindNote && kind != domain.ContentKindText && kind != domain.ContentKindMindMap {
			return "", "", false
		}
		return kind, req.Content, req.Content != ""
	})
}

// IngestMedia accepts an object storage key pointing at a pre-extracted
// transcript or document.
func (h *MemoryHandler) IngestMedia(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, func(req *IngestRequest) (domain.ContentKind, string, bool) {
		kind := domain.ContentKind(req.Kind)
		switch kind {
		case domain.ContentKindVideo, domain.ContentKindAudio, domain.ContentKindImage,
			domain.ContentKindDrive:
			return kind, req.Key, req.Key != ""
		}
		return "", "", false
	})
}

// IngestLink accepts an external URL source.
func (h *MemoryHandler) IngestLink(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, func(req *IngestRequest) (domain.ContentKind, string, bool) {
		kind := domain.ContentKind(req.Kind)
		switch kind {
		case domain.ContentKindYouTube, domain.ContentKindNotion, domain.ContentKindGit:
			return kind, req.URL, req.URL != ""
		}
		return "", "", false
	})
}

type UploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type UploadURLResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
}

// UploadURL mints a presigned URL for a media source upload. The
// returned key is what the client passes to IngestMedia afterwards.
func (h *MemoryHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.signer == nil {
		api.Error(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}

	var req UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	key := fmt.Sprintf("media/%s/%s-%s", userID, uuid.NewString(), path.Base(req.Filename))
	url, err := h.signer.GenerateUploadURL(r.Context(), key, req.ContentType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, UploadURLResponse{Key: key, UploadURL: url})
}

func (h *MemoryHandler) enqueue(w http.ResponseWriter, r *http.Request, payload func(*IngestRequest) (domain.ContentKind, string, bool)) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}

	kind, body, ok := payload(&req)
	if !ok {
		api.Error(w, http.StatusBadRequest, "invalid content kind or missing payload")
		return
	}

	memoryID, err := h.ingest.Enqueue(r.Context(), service.EnqueueInput{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Kind:        kind,
		Payload:     body,
		Tags:        req.Tags,
		Source:      req.Source,
		Language:    req.Language,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, IngestResponse{MemoryID: memoryID})
}

func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	memory, err := h.memories.Get(r.Context(), userID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, memoryToResponse(memory))
}

type MemoryListResponse struct {
	Items   []*MemoryResponse `json:"items"`
	Cursor  string            `json:"cursor,omitempty"`
	HasMore bool              `json:"has_more"`
}

func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.memories.List(r.Context(), service.ListMemoriesInput{
		UserID: userID,
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*MemoryResponse, len(page.Items))
	for i, m := range page.Items {
		responses[i] = memoryToResponse(m)
	}

	api.Success(w, http.StatusOK, MemoryListResponse{
		Items:   responses,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *MemoryHandler) GetChunks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	chunks, err := h.memories.GetChunks(r.Context(), userID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]ChunkResponse, len(chunks))
	for i, c := range chunks {
		responses[i] = ChunkResponse{
			ChunkID:  c.ChunkID,
			MemoryID: c.MemoryID,
			Index:    c.Index,
			Content:  c.Content,
		}
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.memories.Delete(r.Context(), userID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type UpdateChunkRequest struct {
	Content string `json:"content"`
}

func (h *MemoryHandler) UpdateChunk(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chunkID := chi.URLParam(r, "chunkID")
	if chunkID == "" {
		api.Error(w, http.StatusBadRequest, "chunk id is required")
		return
	}

	memoryID, _, err := domain.ParseChunkID(chunkID)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "malformed chunk id")
		return
	}

	var req UpdateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	if err := h.memories.UpdateChunk(r.Context(), userID, memoryID, chunkID, req.Content); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"chunk_id": chunkID})
}
