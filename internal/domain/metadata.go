package domain

import (
	"fmt"
	"strings"
	"time"
)

// Metadata is the per-chunk record stored alongside each vector. One
// Metadata exists per chunk; the descriptor's chunk identifier is unique
// within a memory and is assigned only after segmentation.
type Metadata struct {
	UserID      string
	MemoryID    string
	Title       string
	Description string
	CreatedAt   time.Time
	LastUpdated time.Time
	Tags        []string
	Source      string
	Language    string
	ContentKind ContentKind
	ContentHash string
	Descriptor  Descriptor
	AISummary   string
	AIInsights  string
	RelatedIDs  []string
}

// Flatten coerces the metadata into a scalar map for the vector index.
// Descriptor fields are flattened with their "specific_desc_" prefix;
// optional fields are omitted when empty.
func (m Metadata) Flatten() (map[string]any, error) {
	out := map[string]any{
		"user_id":      m.UserID,
		"memory_id":    m.MemoryID,
		"title":        m.Title,
		"description":  m.Description,
		"created_at":   m.CreatedAt.UTC().Format(time.RFC3339),
		"last_updated": m.LastUpdated.UTC().Format(time.RFC3339),
		"source":       m.Source,
		"language":     m.Language,
		"content_type": string(m.ContentKind),
	}

	if len(m.Tags) > 0 {
		out["tags"] = strings.Join(m.Tags, ",")
	}
	if m.ContentHash != "" {
		out["content_hash"] = m.ContentHash
	}
	if m.AISummary != "" {
		out["ai_summary"] = m.AISummary
	}
	if m.AIInsights != "" {
		out["ai_insights"] = m.AIInsights
	}
	if len(m.RelatedIDs) > 0 {
		out["related_memory_ids"] = strings.Join(m.RelatedIDs, ",")
	}

	desc, err := m.Descriptor.Flatten()
	if err != nil {
		return nil, err
	}
	for k, v := range desc {
		out[k] = v
	}

	return out, nil
}

// ValidateMetadata validates a Metadata instance
func ValidateMetadata(m *Metadata) error {
	if m == nil {
		return fmt.Errorf("metadata cannot be nil")
	}

	if m.UserID == "" {
		return fmt.Errorf("metadata UserID is required")
	}

	if m.MemoryID == "" {
		return fmt.Errorf("metadata MemoryID is required")
	}

	if !IsValidContentKind(m.ContentKind) {
		return fmt.Errorf("metadata ContentKind is invalid: %s", m.ContentKind)
	}

	if m.Descriptor.ChunkID == "" {
		return fmt.Errorf("metadata Descriptor.ChunkID is required")
	}

	return nil
}
