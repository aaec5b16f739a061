package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ContentKind identifies the kind of content a memory was ingested from.
type ContentKind string

const (
	ContentKindNote    ContentKind = "note"
	ContentKindText    ContentKind = "text"
	ContentKindVideo   ContentKind = "video"
	ContentKindAudio   ContentKind = "audio"
	ContentKindImage   ContentKind = "image"
	ContentKindGit     ContentKind = "git"
	ContentKindYouTube ContentKind = "youtube"
	ContentKindNotion  ContentKind = "notion"
	ContentKindDrive   ContentKind = "drive"
	ContentKindMindMap ContentKind = "mindmap"
)

// Memory represents one ingested document. The ID is minted once at
// ingestion and never changes.
type Memory struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Tags        []string
	Source      string
	Language    string
	ContentKind ContentKind
	ContentHash string
	AISummary   string
	AIInsights  string
	RelatedIDs  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChunkRecord is the persisted form of one chunk of a memory. ChunkID is
// "<memory_id>_<index>"; Index is the chunk's position within its document.
type ChunkRecord struct {
	ChunkID   string
	MemoryID  string
	UserID    string
	Index     int
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChunkID builds the canonical chunk identifier for a memory and index.
func ChunkID(memoryID string, index int) string {
	return fmt.Sprintf("%s_%d", memoryID, index)
}

// ParseChunkID splits a chunk identifier back into its memory ID and
// index. Memory IDs never contain underscores, so the last underscore
// always separates the two parts.
func ParseChunkID(chunkID string) (string, int, error) {
	sep := strings.LastIndex(chunkID, "_")
	if sep <= 0 || sep == len(chunkID)-1 {
		return "", 0, fmt.Errorf("malformed chunk id: %q", chunkID)
	}
	index, err := strconv.Atoi(chunkID[sep+1:])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("malformed chunk id: %q", chunkID)
	}
	return chunkID[:sep], index, nil
}

// NewMemory creates a new Memory instance
func NewMemory(
	id, userID, title, description string,
	kind ContentKind,
	source, language string,
	tags []string,
	createdAt time.Time,
) *Memory {
	return &Memory{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: description,
		Tags:        tags,
		Source:      source,
		Language:    language,
		ContentKind: kind,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateMemory validates a Memory instance
func ValidateMemory(m *Memory) error {
	if m == nil {
		return fmt.Errorf("memory cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("memory ID is required")
	}

	if m.UserID == "" {
		return fmt.Errorf("memory UserID is required")
	}

	if m.Title == "" {
		return fmt.Errorf("memory Title is required")
	}

	if !IsValidContentKind(m.ContentKind) {
		return fmt.Errorf("memory ContentKind is invalid: %s", m.ContentKind)
	}

	return nil
}

// IsValidContentKind checks if a ContentKind is one of the known kinds
func IsValidContentKind(k ContentKind) bool {
	switch k {
	case ContentKindNote, ContentKindText, ContentKindVideo, ContentKindAudio,
		ContentKindImage, ContentKindGit, ContentKindYouTube,
		ContentKindNotion, ContentKindDrive, ContentKindMindMap:
		return true
	}
	return false
}
