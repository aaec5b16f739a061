package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mementolabs/memento/internal/domain"
	"github.com/mementolabs/memento/internal/ingest"
	"github.com/mementolabs/memento/internal/telemetry"
)

// EmbedderInterface turns chunk text into embedding vectors.
type EmbedderInterface interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// StatusTrackerInterface reports ingestion progress to the status store.
type StatusTrackerInterface interface {
	Create(ctx context.Context, userID, documentID, title string) error
	Update(ctx context.Context, userID, documentID string, status domain.ProcessingStatus, errMsg string) error
}

// IngestJobQueue is the job operations the ingestion service needs.
type IngestJobQueue interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// EnqueueInput describes a document to ingest.
type EnqueueInput struct {
	UserID      string
	Title       string
	Description string
	Kind        domain.ContentKind
	Payload     string
	Tags        []string
	Source      string
	Language    string
	ContentHash string
}

// IngestService owns the document ingestion pipeline: extraction,
// segmentation, metadata propagation, embedding and storage.
type IngestService struct {
	txRunner      TxRunner
	memories      MemoryRepositoryInterface
	chunks        ChunkRepositoryInterface
	segmenter     *ingest.Segmenter
	embedder      EmbedderInterface
	batcher       *UpsertBatcher
	tracker       StatusTrackerInterface
	extractors    map[domain.ContentKind]Extractor
	uuidGen       UUIDGenerator
	contextWindow int
}

func NewIngestService(
	txRunner TxRunner,
	memories MemoryRepositoryInterface,
	chunks ChunkRepositoryInterface,
	segmenter *ingest.Segmenter,
	embedder EmbedderInterface,
	batcher *UpsertBatcher,
	tracker StatusTrackerInterface,
	extractors map[domain.ContentKind]Extractor,
) *IngestService {
	return &IngestService{
		txRunner:      txRunner,
		memories:      memories,
		chunks:        chunks,
		segmenter:     segmenter,
		embedder:      embedder,
		batcher:       batcher,
		tracker:       tracker,
		extractors:    extractors,
		uuidGen:       &DefaultUUIDGenerator{},
		contextWindow: ingest.DefaultContextWindow,
	}
}

// WithUUIDGen overrides ID minting, for tests.
func (s *IngestService) WithUUIDGen(gen UUIDGenerator) *IngestService {
	s.uuidGen = gen
	return s
}

// Enqueue records the memory and queues an ingestion job. The memory ID
// is returned immediately; processing happens in the background worker.
func (s *IngestService) Enqueue(ctx context.Context, input EnqueueInput) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Enqueue", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "enqueue",
	})
	defer span.End()

	if !domain.IsValidContentKind(input.Kind) {
		return "", domain.ErrInvalidContentKind
	}

	now := time.Now().UTC()
	memoryID := s.uuidGen.NewString()
	jobID := s.uuidGen.NewString()

	memory := domain.NewMemory(
		memoryID, input.UserID, input.Title, input.Description,
		input.Kind, input.Source, input.Language, input.Tags, now,
	)
	memory.ContentHash = input.ContentHash

	if err := domain.ValidateMemory(memory); err != nil {
		return "", err
	}

	job := domain.NewIngestJob(jobID, memoryID, input.UserID, input.Kind, input.Payload, domain.IngestJobStatusPending, now)

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Memories().Create(ctx, memory); err != nil {
			return err
		}
		return repos.IngestJobs().Create(ctx, job)
	})
	if err != nil {
		return "", err
	}

	if err := s.tracker.Create(ctx, input.UserID, memoryID, input.Title); err != nil {
		log.Printf("ingest: status create failed for %s: %v", memoryID, err)
	}

	return memoryID, nil
}

// ProcessJob runs the full pipeline for one claimed job. A returned
// error means the attempt failed; the worker decides on retry.
func (s *IngestService) ProcessJob(ctx context.Context, job *domain.IngestJob) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.ProcessJob", telemetry.SpanAttributes{
		UserID:    job.UserID,
		MemoryID:  job.MemoryID,
		Operation: "process",
	})
	defer span.End()

	err := s.process(ctx, job)
	if err != nil {
		span.SetError(err)
		s.updateStatus(ctx, job, domain.StatusFailed, err.Error())
	}
	return err
}

func (s *IngestService) process(ctx context.Context, job *domain.IngestJob) error {
	s.updateStatus(ctx, job, domain.StatusProcessing, "")

	memory, err := s.memories.GetByID(ctx, job.UserID, job.MemoryID)
	if err != nil {
		return err
	}

	extractor, ok := s.extractors[job.Kind]
	if !ok {
		return domain.ErrUnknownContentKind
	}

	text, err := extractor.Extract(ctx, job.Payload)
	if err != nil {
		return err
	}

	chunks, err := s.segmenter.Segment(ctx, text)
	if err != nil {
		// Degraded mode: treat the whole document as one chunk rather
		// than lose it.
		log.Printf("ingest: segmentation unavailable for %s, storing as single chunk: %v", job.MemoryID, err)
		chunks = []string{text}
	}
	if len(chunks) == 0 || (len(chunks) == 1 && chunks[0] == "") {
		return domain.ErrMissingRequiredField
	}

	s.updateStatus(ctx, job, domain.StatusContextualizing, "")

	combined := ingest.Combine(chunks, s.contextWindow)

	base := domain.Metadata{
		UserID:      memory.UserID,
		MemoryID:    memory.ID,
		Title:       memory.Title,
		Description: memory.Description,
		CreatedAt:   memory.CreatedAt,
		LastUpdated: time.Now().UTC(),
		Tags:        memory.Tags,
		Source:      memory.Source,
		Language:    memory.Language,
		ContentKind: memory.ContentKind,
		ContentHash: memory.ContentHash,
	}

	metas, err := ingest.Propagate(base, chunks, describeFor(memory.ContentKind, chunks))
	if err != nil {
		return err
	}

	s.updateStatus(ctx, job, domain.StatusCreatingEmbeddings, "")

	embedInputs := make([]string, len(combined))
	for i, block := range combined {
		embedInputs[i] = embedText(memory.Title, memory.Description, block)
	}

	vectors, err := s.embedder.Embed(ctx, embedInputs)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	records := make([]domain.VectorRecord, len(chunks))
	for i := range chunks {
		flat, err := metas[i].Flatten()
		if err != nil {
			return err
		}
		records[i] = domain.VectorRecord{
			ID:       metas[i].Descriptor.ChunkID,
			Values:   vectors[i],
			Metadata: flat,
		}
	}

	s.updateStatus(ctx, job, domain.StatusStoringVectors, "")

	stored := s.batcher.UpsertAll(ctx, job.UserID, records)
	if stored == 0 {
		return fmt.Errorf("vector upsert stored none of %d records", len(records))
	}

	s.updateStatus(ctx, job, domain.StatusStoringDocument, "")

	chunkRecords := make([]domain.ChunkRecord, len(chunks))
	now := time.Now().UTC()
	for i, content := range chunks {
		chunkRecords[i] = domain.ChunkRecord{
			ChunkID:   metas[i].Descriptor.ChunkID,
			MemoryID:  memory.ID,
			UserID:    memory.UserID,
			Index:     i,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if err := s.chunks.InsertMany(ctx, chunkRecords); err != nil {
		return err
	}

	s.updateStatus(ctx, job, domain.StatusCompleted, "")
	return nil
}

func (s *IngestService) updateStatus(ctx context.Context, job *domain.IngestJob, status domain.ProcessingStatus, errMsg string) {
	if err := s.tracker.Update(ctx, job.UserID, job.MemoryID, status, errMsg); err != nil {
		log.Printf("ingest: status update %s -> %s failed: %v", job.MemoryID, status, err)
	}
}

// embedText prefixes title and description so document-level context is
// part of what gets embedded.
func embedText(title, description, block string) string {
	if description == "" {
		return fmt.Sprintf("%s\n\n%s", title, block)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", title, description, block)
}

// describeFor picks the descriptor strategy for a content kind. Temporal
// placement for media uses proportional windows; without probe data the
// duration is unknown and offsets stay zero.
func describeFor(kind domain.ContentKind, chunks []string) ingest.DescribeChunk {
	switch kind {
	case domain.ContentKindVideo, domain.ContentKindAudio:
		return ingest.MediaDescribe(0)
	case domain.ContentKindYouTube:
		return ingest.YouTubeDescribe("", 0)
	case domain.ContentKindDrive:
		return ingest.DriveDescribe("", len(chunks))
	case domain.ContentKindImage:
		return ingest.ImageDescribe(0, 0, "")
	default:
		return ingest.TextDescribe(chunks)
	}
}
