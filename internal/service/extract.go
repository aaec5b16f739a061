package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mementolabs/memento/internal/domain"
)

// Extractor turns an ingest job payload into the raw text to segment.
// What the payload means depends on the content kind: inline text for
// notes, a storage key for media and file sources.
type Extractor interface {
	Extract(ctx context.Context, payload string) (string, error)
}

// ObjectStore is the subset of the storage client extraction needs.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// TextExtractor passes the payload through unchanged.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, payload string) (string, error) {
	return payload, nil
}

// MediaExtractor reads a pre-extracted transcript from object storage.
// The payload is the storage key.
type MediaExtractor struct {
	store ObjectStore
}

func NewMediaExtractor(store ObjectStore) *MediaExtractor {
	return &MediaExtractor{store: store}
}

func (e *MediaExtractor) Extract(ctx context.Context, payload string) (string, error) {
	if e.store == nil {
		return "", domain.NewDomainError(domain.ErrCodeInvalidOperation, "object storage is not configured")
	}
	data, err := e.store.GetObject(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("fetch media transcript %q: %w", payload, err)
	}
	return string(data), nil
}

// DefaultCombinePages is how many document pages are merged into one
// segmentation unit.
const DefaultCombinePages = 5

// DriveExtractor reads a paginated document from object storage. Pages
// arrive form-feed separated; groups of combinePages pages are merged so
// the segmenter sees page runs instead of tiny page fragments.
type DriveExtractor struct {
	store        ObjectStore
	combinePages int
}

func NewDriveExtractor(store ObjectStore) *DriveExtractor {
	return &DriveExtractor{store: store, combinePages: DefaultCombinePages}
}

func (e *DriveExtractor) Extract(ctx context.Context, payload string) (string, error) {
	if e.store == nil {
		return "", domain.NewDomainError(domain.ErrCodeInvalidOperation, "object storage is not configured")
	}
	data, err := e.store.GetObject(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("fetch document %q: %w", payload, err)
	}

	pages := strings.Split(string(data), "\f")
	if len(pages) <= 1 {
		return string(data), nil
	}

	var groups []string
	for start := 0; start < len(pages); start += e.combinePages {
		end := start + e.combinePages
		if end > len(pages) {
			end = len(pages)
		}
		groups = append(groups, strings.Join(pages[start:end], " "))
	}
	return strings.Join(groups, "\n\n"), nil
}

// DefaultExtractors wires the extraction strategy for every content kind.
func DefaultExtractors(store ObjectStore) map[domain.ContentKind]Extractor {
	text := TextExtractor{}
	media := NewMediaExtractor(store)
	drive := NewDriveExtractor(store)
	return map[domain.ContentKind]Extractor{
		domain.ContentKindNote:    text,
		domain.ContentKindText:    text,
		domain.ContentKindMindMap: text,
		domain.ContentKindGit:     text,
		domain.ContentKindNotion:  text,
		domain.ContentKindVideo:   media,
		domain.ContentKindAudio:   media,
		domain.ContentKindImage:   media,
		domain.ContentKindYouTube: media,
		domain.ContentKindDrive:   drive,
	}
}
