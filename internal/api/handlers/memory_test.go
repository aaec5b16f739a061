package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mementolabs/memento/internal/api/middleware"
	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/pagination"
	"github.com/mementolabs/memento/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIngestEnqueuer struct {
	mock.Mock
}

func (m *MockIngestEnqueuer) Enqueue(ctx context.Context, input service.EnqueueInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

type MockMemoryReader struct {
	mock.Mock
}

func (m *MockMemoryReader) Get(ctx context.Context, userID, memoryID string) (*domain.Memory, error) {
	args := m.Called(ctx, userID, memoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Memory), args.Error(1)
}

func (m *MockMemoryReader) List(ctx context.Context, input service.ListMemoriesInput) (*pagination.PageResult[*domain.Memory], error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Memory]), args.Error(1)
}

func (m *MockMemoryReader) GetChunks(ctx context.Context, userID, memoryID string) ([]domain.ChunkRecord, error) {
	args := m.Called(ctx, userID, memoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChunkRecord), args.Error(1)
}

func (m *MockMemoryReader) Delete(ctx context.Context, userID, memoryID string) error {
	args := m.Called(ctx, userID, memoryID)
	return args.Error(0)
}

func (m *MockMemoryReader) UpdateChunk(ctx context.Context, userID, memoryID, chunkID, content string) error {
	args := m.Called(ctx, userID, memoryID, chunkID, content)
	return args.Error(0)
}

func newTestMemory() *domain.Memory {
	now := time.Now().UTC()
	return &domain.Memory{
		ID:          "mem-123",
		UserID:      "user-456",
		Title:       "Trip notes",
		Description: "Notes from the Paris trip",
		Tags:        []string{"travel"},
		ContentKind: domain.ContentKindNote,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func requestWithUserID(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-456")
	return req.WithContext(ctx)
}

func TestMemoryHandler_Ingest_Success(t *testing.T) {
	mockIngest := new(MockIngestEnqueuer)
	mockMemories := new(MockMemoryReader)
	handler := NewMemoryHandler(mockIngest, mockMemories)

	mockIngest.On("Enqueue", mock.Anything, mock.MatchedBy(func(input service.EnqueueInput) bool {
		return input.UserID == "user-456" &&
			input.Title == "Trip notes" &&
			input.Kind == domain.ContentKindNote &&
			input.Payload == "We visited the Eiffel Tower."
	})).Return("mem-123", nil)

	body := `{"title":"Trip notes","content":"We visited the Eiffel Tower.","tags":["travel"]}`
	req := requestWithUserID(http.MethodPost, "/memories", []byte(body))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "mem-123")
	mockIngest.AssertExpectations(t)
}

func TestMemoryHandler_Ingest_ExplicitTextKind(t *testing.T) {
	mockIngest := new(MockIngestEnqueuer)
	handler := NewMemoryHandler(mockIngest, new(MockMemoryReader))

	mockIngest.On("Enqueue", mock.Anything, mock.MatchedBy(func(input service.EnqueueInput) bool {
		return input.Kind == domain.ContentKindText
	})).Return("mem-123", nil)

	body := `{"title":"Doc","kind":"text","content":"plain text"}`
	req := requestWithUserID(http.MethodPost, "/memories", []byte(body))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockIngest.AssertExpectations(t)
}

func TestMemoryHandler_Ingest_MissingTitle(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"content":"no title here"}`
	req := requestWithUserID(http.MethodPost, "/memories", []byte(body))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title is required")
}

func TestMemoryHandler_Ingest_MissingContent(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"title":"Untitled"}`
	req := requestWithUserID(http.MethodPost, "/memories", []byte(body))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryHandler_Ingest_MediaKindRejected(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"title":"Video","kind":"video","content":"inline"}`
	req := requestWithUserID(http.MethodPost, "/memories", []byte(body))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid content kind")
}

func TestMemoryHandler_Ingest_Unauthorized(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"title":"Trip notes","content":"text"}`
	req := httptest.NewRequest(http.MethodPost, "/memories", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMemoryHandler_IngestMedia_Success(t *testing.T) {
	mockIngest := new(MockIngestEnqueuer)
	handler := NewMemoryHandler(mockIngest, new(MockMemoryReader))

	mockIngest.On("Enqueue", mock.Anything, mock.MatchedBy(func(input service.EnqueueInput) bool {
		return input.Kind == domain.ContentKindVideo && input.Payload == "transcripts/lecture.txt"
	})).Return("mem-124", nil)

	body := `{"title":"Lecture","kind":"video","key":"transcripts/lecture.txt"}`
	req := requestWithUserID(http.MethodPost, "/memories/media", []byte(body))
	w := httptest.NewRecorder()

	handler.IngestMedia(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockIngest.AssertExpectations(t)
}

func TestMemoryHandler_IngestMedia_TextKindRejected(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"title":"Doc","kind":"note","key":"some/key"}`
	req := requestWithUserID(http.MethodPost, "/memories/media", []byte(body))
	w := httptest.NewRecorder()

	handler.IngestMedia(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryHandler_IngestLink_Success(t *testing.T) {
	mockIngest := new(MockIngestEnqueuer)
	handler := NewMemoryHandler(mockIngest, new(MockMemoryReader))

	mockIngest.On("Enqueue", mock.Anything, mock.MatchedBy(func(input service.EnqueueInput) bool {
		return input.Kind == domain.ContentKindYouTube && input.Payload == "https://youtube.com/watch?v=abc"
	})).Return("mem-125", nil)

	body := `{"title":"Talk","kind":"youtube","url":"https://youtube.com/watch?v=abc"}`
	req := requestWithUserID(http.MethodPost, "/memories/link", []byte(body))
	w := httptest.NewRecorder()

	handler.IngestLink(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockIngest.AssertExpectations(t)
}

func TestMemoryHandler_IngestLink_MissingURL(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"title":"Talk","kind":"youtube"}`
	req := requestWithUserID(http.MethodPost, "/memories/link", []byte(body))
	w := httptest.NewRecorder()

	handler.IngestLink(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryHandler_Get_Success(t *testing.T) {
	mockMemories := new(MockMemoryReader)
	handler := NewMemoryHandler(new(MockIngestEnqueuer), mockMemories)

	mockMemories.On("Get", mock.Anything, "user-456", "mem-123").Return(newTestMemory(), nil)

	req := requestWithUserID(http.MethodGet, "/memories/mem-123", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "mem-123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Trip notes")
	mockMemories.AssertExpectations(t)
}

func TestMemoryHandler_Get_NotFound(t *testing.T) {
	mockMemories := new(MockMemoryReader)
	handler := NewMemoryHandler(new(MockIngestEnqueuer), mockMemories)

	mockMemories.On("Get", mock.Anything, "user-456", "mem-999").Return(nil, domain.ErrMemoryNotFound)

	req := requestWithUserID(http.MethodGet, "/memories/mem-999", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "mem-999")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockMemories.AssertExpectations(t)
}

func TestMemoryHandler_List_Success(t *testing.T) {
	mockMemories := new(MockMemoryReader)
	handler := NewMemoryHandler(new(MockIngestEnqueuer), mockMemories)

	page := &pagination.PageResult[*domain.Memory]{
		Items:   []*domain.Memory{newTestMemory()},
		Cursor:  "next-cursor",
		HasMore: true,
	}
	mockMemories.On("List", mock.Anything, service.ListMemoriesInput{
		UserID: "user-456",
		Cursor: "prev-cursor",
		Limit:  5,
	}).Return(page, nil)

	req := requestWithUserID(http.MethodGet, "/memories?cursor=prev-cursor&limit=5", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data MemoryListResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "next-cursor", resp.Data.Cursor)
	assert.True(t, resp.Data.HasMore)
	mockMemories.AssertExpectations(t)
}

func TestMemoryHandler_List_DefaultLimit(t *testing.T) {
	mockMemories := new(MockMemoryReader)
	handler := NewMemoryHandler(new(MockIngestEnqueuer), mockMemories)

	mockMemories.On("List", mock.Anything, mock.MatchedBy(func(input service.ListMemoriesInput) bool {
		return input.Limit == 20 && input.Cursor == ""
	})).Return(&pagination.PageResult[*domain.Memory]{}, nil)

	req := requestWithUserID(http.MethodGet, "/memories", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockMemories.AssertExpectations(t)
}

func TestMemoryHandler_GetChunks_Success(t *testing.T) {
	mockMemories := new(MockMemoryReader)
	handler := NewMemoryHandler(new(MockIngestEnqueuer), mockMemories)

	chunks := []domain.ChunkRecord{
		{ChunkID: "mem-123_0", MemoryID: "mem-123", Index: 0, Content: "first"},
		{ChunkID: "mem-123_1", MemoryID: "mem-123", Index: 1, Content: "second"},
	}
	mockMemories.On("GetChunks", mock.Anything, "user-456", "mem-123").Return(chunks, nil)

	req := requestWithUserID(http.MethodGet, "/memories/mem-123/chunks", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "mem-123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.GetChunks(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mem-123_0")
	assert.Contains(t, w.Body.String(), "second")
	mockMemories.AssertExpectations(t)
}

func TestMemoryHandler_Delete_Success(t *testing.T) {
	mockMemories := new(MockMemoryReader)
	handler := NewMemoryHandler(new(MockIngestEnqueuer), mockMemories)

	mockMemories.On("Delete", mock.Anything, "user-456", "mem-123").Return(nil)

	req := requestWithUserID(http.MethodDelete, "/memories/mem-123", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "mem-123")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockMemories.AssertExpectations(t)
}

func TestMemoryHandler_UpdateChunk_Success(t *testing.T) {
	mockMemories := new(MockMemoryReader)
	handler := NewMemoryHandler(new(MockIngestEnqueuer), mockMemories)

	mockMemories.On("UpdateChunk", mock.Anything, "user-456", "mem-123", "mem-123_1", "corrected text").Return(nil)

	body := `{"content":"corrected text"}`
	req := requestWithUserID(http.MethodPut, "/memories/chunks/mem-123_1", []byte(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("chunkID", "mem-123_1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.UpdateChunk(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mem-123_1")
	mockMemories.AssertExpectations(t)
}

func TestMemoryHandler_UpdateChunk_MalformedChunkID(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"content":"text"}`
	req := requestWithUserID(http.MethodPut, "/memories/chunks/not-a-chunk-id", []byte(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("chunkID", "not-a-chunk-id")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.UpdateChunk(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "malformed chunk id")
}

func TestMemoryHandler_UpdateChunk_EmptyContent(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"content":""}`
	req := requestWithUserID(http.MethodPut, "/memories/chunks/mem-123_1", []byte(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("chunkID", "mem-123_1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	handler.UpdateChunk(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "content is required")
}

type MockUploadSigner struct {
	mock.Mock
}

func (m *MockUploadSigner) GenerateUploadURL(ctx context.Context, key, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func TestMemoryHandler_UploadURL_Success(t *testing.T) {
	mockSigner := new(MockUploadSigner)
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader)).WithUploader(mockSigner)

	mockSigner.On("GenerateUploadURL", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "media/user-456/") && strings.HasSuffix(key, "-interview.mp3")
	}), "audio/mpeg").Return("https://storage.example/upload?sig=abc", nil)

	body := `{"filename":"interview.mp3","content_type":"audio/mpeg"}`
	req := requestWithUserID(http.MethodPost, "/memories/media/upload-url", []byte(body))
	w := httptest.NewRecorder()

	handler.UploadURL(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data UploadURLResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://storage.example/upload?sig=abc", resp.Data.UploadURL)
	assert.True(t, strings.HasPrefix(resp.Data.Key, "media/user-456/"))
	mockSigner.AssertExpectations(t)
}

func TestMemoryHandler_UploadURL_NotConfigured(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader))

	body := `{"filename":"interview.mp3"}`
	req := requestWithUserID(http.MethodPost, "/memories/media/upload-url", []byte(body))
	w := httptest.NewRecorder()

	handler.UploadURL(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "object storage is not configured")
}

func TestMemoryHandler_UploadURL_MissingFilename(t *testing.T) {
	handler := NewMemoryHandler(new(MockIngestEnqueuer), new(MockMemoryReader)).WithUploader(new(MockUploadSigner))

	body := `{"content_type":"audio/mpeg"}`
	req := requestWithUserID(http.MethodPost, "/memories/media/upload-url", []byte(body))
	w := httptest.NewRecorder()

	handler.UploadURL(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "filename is required")
}
