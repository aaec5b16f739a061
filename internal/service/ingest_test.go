package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/ingest"
)

type ingestFixture struct {
	service  *IngestService
	memories *MockMemoryRepository
	chunks   *MockChunkRepository
	vectors  *MockVectorRepository
	jobs     *MockIngestJobRepository
	tracker  *mockTracker
	embedder *mockEmbedder
	segments *mockSegmentClient
	store    *mockObjectStore
}

func newIngestFixture(uuids ...string) *ingestFixture {
	f := &ingestFixture{
		memories: new(MockMemoryRepository),
		chunks:   new(MockChunkRepository),
		vectors:  new(MockVectorRepository),
		jobs:     new(MockIngestJobRepository),
		tracker:  new(mockTracker),
		embedder: new(mockEmbedder),
		segments: new(mockSegmentClient),
		store:    new(mockObjectStore),
	}
	txRunner := &fakeTxRunner{
		memories: f.memories,
		chunks:   f.chunks,
		vectors:  f.vectors,
		jobs:     f.jobs,
	}
	f.service = NewIngestService(
		txRunner,
		f.memories,
		f.chunks,
		ingest.NewSegmenter(f.segments, 0),
		f.embedder,
		NewUpsertBatcher(f.vectors),
		f.tracker,
		DefaultExtractors(f.store),
	).WithUUIDGen(NewMockUUIDGenerator(uuids...))
	return f
}

// trackedStatuses lists the status values the fixture's tracker saw, in
// call order.
func (f *ingestFixture) trackedStatuses() []domain.ProcessingStatus {
	var statuses []domain.ProcessingStatus
	for _, call := range f.tracker.Calls {
		if call.Method == "Update" {
			statuses = append(statuses, call.Arguments.Get(3).(domain.ProcessingStatus))
		}
	}
	return statuses
}

func testMemoryForIngest(id string) *domain.Memory {
	return domain.NewMemory(
		id, "user-1", "Trip notes", "Notes from a trip to France",
		domain.ContentKindNote, "mobile", "en", []string{"travel"},
		time.Now().UTC(),
	)
}

func TestIngestService_Enqueue_CreatesMemoryAndJob(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture("mem-1", "job-1")

	f.memories.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Memory) bool {
		return m.ID == "mem-1" && m.UserID == "user-1" && m.Title == "Trip notes"
	})).Return(nil)
	f.jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IngestJob) bool {
		return j.ID == "job-1" && j.MemoryID == "mem-1" &&
			j.Status == domain.IngestJobStatusPending && j.Payload == "some text"
	})).Return(nil)
	f.tracker.On("Create", mock.Anything, "user-1", "mem-1", "Trip notes").Return(nil)

	memoryID, err := f.service.Enqueue(ctx, EnqueueInput{
		UserID:  "user-1",
		Title:   "Trip notes",
		Kind:    domain.ContentKindNote,
		Payload: "some text",
	})

	require.NoError(t, err)
	assert.Equal(t, "mem-1", memoryID)
	f.memories.AssertExpectations(t)
	f.jobs.AssertExpectations(t)
	f.tracker.AssertExpectations(t)
}

func TestIngestService_Enqueue_InvalidKind(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture()

	_, err := f.service.Enqueue(ctx, EnqueueInput{
		UserID:  "user-1",
		Title:   "Bad",
		Kind:    domain.ContentKind("hologram"),
		Payload: "x",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidContentKind)
	f.memories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestService_Enqueue_TxFailureSkipsTracker(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture("mem-1", "job-1")

	f.memories.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := f.service.Enqueue(ctx, EnqueueInput{
		UserID:  "user-1",
		Title:   "Trip notes",
		Kind:    domain.ContentKindNote,
		Payload: "some text",
	})

	require.Error(t, err)
	f.tracker.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_Enqueue_TrackerFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture("mem-1", "job-1")

	f.memories.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.jobs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.tracker.On("Create", mock.Anything, "user-1", "mem-1", "Trip notes").Return(errors.New("status store down"))

	memoryID, err := f.service.Enqueue(ctx, EnqueueInput{
		UserID:  "user-1",
		Title:   "Trip notes",
		Kind:    domain.ContentKindNote,
		Payload: "some text",
	})

	require.NoError(t, err)
	assert.Equal(t, "mem-1", memoryID)
}

func TestIngestService_ProcessJob_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture()

	memory := testMemoryForIngest("mem-1")
	job := domain.NewIngestJob("job-1", "mem-1", "user-1", domain.ContentKindNote, "alpha beta text", domain.IngestJobStatusPending, time.Now().UTC())

	f.tracker.On("Update", mock.Anything, "user-1", "mem-1", mock.Anything, mock.Anything).Return(nil)
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)
	f.segments.On("Segment", mock.Anything, "alpha beta text").Return([]string{"alpha", "beta"}, nil)
	f.embedder.On("Embed", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 2
	})).Return([][]float32{{0.1, 0.2}, {0.3, 0.4}}, nil)
	f.vectors.On("Upsert", mock.Anything, "user-1", mock.MatchedBy(func(recs []domain.VectorRecord) bool {
		return len(recs) == 2 && recs[0].ID == "mem-1_0" && recs[1].ID == "mem-1_1"
	})).Return(nil)
	f.chunks.On("InsertMany", mock.Anything, mock.MatchedBy(func(recs []domain.ChunkRecord) bool {
		return len(recs) == 2 &&
			recs[0].ChunkID == "mem-1_0" && recs[0].Content == "alpha" && recs[0].Index == 0 &&
			recs[1].ChunkID == "mem-1_1" && recs[1].Content == "beta" && recs[1].Index == 1
	})).Return(nil)

	err := f.service.ProcessJob(ctx, job)

	require.NoError(t, err)
	assert.Equal(t, []domain.ProcessingStatus{
		domain.StatusProcessing,
		domain.StatusContextualizing,
		domain.StatusCreatingEmbeddings,
		domain.StatusStoringVectors,
		domain.StatusStoringDocument,
		domain.StatusCompleted,
	}, f.trackedStatuses())
	f.chunks.AssertExpectations(t)
	f.vectors.AssertExpectations(t)
}

func TestIngestService_ProcessJob_SegmentationFallback(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture()

	memory := testMemoryForIngest("mem-1")
	job := domain.NewIngestJob("job-1", "mem-1", "user-1", domain.ContentKindNote, "whole document", domain.IngestJobStatusPending, time.Now().UTC())

	f.tracker.On("Update", mock.Anything, "user-1", "mem-1", mock.Anything, mock.Anything).Return(nil)
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)
	f.segments.On("Segment", mock.Anything, "whole document").Return(nil, errors.New("backend down"))
	f.embedder.On("Embed", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 1
	})).Return([][]float32{{0.1, 0.2}}, nil)
	f.vectors.On("Upsert", mock.Anything, "user-1", mock.Anything).Return(nil)
	f.chunks.On("InsertMany", mock.Anything, mock.MatchedBy(func(recs []domain.ChunkRecord) bool {
		return len(recs) == 1 && recs[0].Content == "whole document"
	})).Return(nil)

	err := f.service.ProcessJob(ctx, job)

	require.NoError(t, err)
	f.chunks.AssertExpectations(t)
}

func TestIngestService_ProcessJob_EmbedderFailure(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture()

	memory := testMemoryForIngest("mem-1")
	job := domain.NewIngestJob("job-1", "mem-1", "user-1", domain.ContentKindNote, "some text", domain.IngestJobStatusPending, time.Now().UTC())

	f.tracker.On("Update", mock.Anything, "user-1", "mem-1", mock.Anything, mock.Anything).Return(nil)
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)
	f.segments.On("Segment", mock.Anything, "some text").Return([]string{"some text"}, nil)
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

	err := f.service.ProcessJob(ctx, job)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	statuses := f.trackedStatuses()
	assert.Equal(t, domain.StatusFailed, statuses[len(statuses)-1])
	f.vectors.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_ProcessJob_AllVectorBatchesFail(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture()

	memory := testMemoryForIngest("mem-1")
	job := domain.NewIngestJob("job-1", "mem-1", "user-1", domain.ContentKindNote, "some text", domain.IngestJobStatusPending, time.Now().UTC())

	f.tracker.On("Update", mock.Anything, "user-1", "mem-1", mock.Anything, mock.Anything).Return(nil)
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)
	f.segments.On("Segment", mock.Anything, "some text").Return([]string{"some text"}, nil)
	f.embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	f.vectors.On("Upsert", mock.Anything, "user-1", mock.Anything).Return(errors.New("index unreachable"))

	err := f.service.ProcessJob(ctx, job)

	require.Error(t, err)
	f.chunks.AssertNotCalled(t, "InsertMany", mock.Anything, mock.Anything)

	statuses := f.trackedStatuses()
	assert.Equal(t, domain.StatusFailed, statuses[len(statuses)-1])
}

func TestIngestService_ProcessJob_MemoryNotFound(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture()

	job := domain.NewIngestJob("job-1", "mem-missing", "user-1", domain.ContentKindNote, "text", domain.IngestJobStatusPending, time.Now().UTC())

	f.tracker.On("Update", mock.Anything, "user-1", "mem-missing", mock.Anything, mock.Anything).Return(nil)
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-missing").Return(nil, domain.ErrMemoryNotFound)

	err := f.service.ProcessJob(ctx, job)

	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)
}

func TestIngestService_ProcessJob_EmptyContent(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture()

	memory := testMemoryForIngest("mem-1")
	job := domain.NewIngestJob("job-1", "mem-1", "user-1", domain.ContentKindNote, "", domain.IngestJobStatusPending, time.Now().UTC())

	f.tracker.On("Update", mock.Anything, "user-1", "mem-1", mock.Anything, mock.Anything).Return(nil)
	f.memories.On("GetByID", mock.Anything, "user-1", "mem-1").Return(memory, nil)

	err := f.service.ProcessJob(ctx, job)

	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	f.embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestEmbedText(t *testing.T) {
	withDesc := embedText("Title", "Desc", "body")
	assert.Equal(t, "Title\nDesc\n\nbody", withDesc)

	noDesc := embedText("Title", "", "body")
	assert.Equal(t, "Title\n\nbody", noDesc)
}
