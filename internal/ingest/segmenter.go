package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// SegmentClient is the external segmentation backend.
type SegmentClient interface {
	Segment(ctx context.Context, text string) ([]string, error)
}

// DefaultMaxWindowChars bounds the text size of a single backend call.
const DefaultMaxWindowChars = 30000

// Segmenter splits raw text into ordered semantic chunks. Oversized
// input is split into bounded windows, each segmented by the backend in
// order. A failure on any window aborts the whole call; callers must
// treat the error as "segmentation unavailable", not an empty document.
type Segmenter struct {
	client         SegmentClient
	maxWindowChars int
}

// NewSegmenter creates a Segmenter. maxWindowChars <= 0 selects the
// default window size.
func NewSegmenter(client SegmentClient, maxWindowChars int) *Segmenter {
	if maxWindowChars <= 0 {
		maxWindowChars = DefaultMaxWindowChars
	}
	return &Segmenter{
		client:         client,
		maxWindowChars: maxWindowChars,
	}
}

// Segment returns the ordered chunk sequence for text. Empty input
// yields an empty sequence without calling the backend.
func (s *Segmenter) Segment(ctx context.Context, text string) ([]string, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil, nil
	}

	windows := splitWindows(clean, s.maxWindowChars)

	chunks := make([]string, 0, len(windows))
	for i, w := range windows {
		part, err := s.client.Segment(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("segment window %d/%d: %w", i+1, len(windows), err)
		}
		chunks = append(chunks, part...)
	}

	return chunks, nil
}

// splitWindows cuts text into windows of at most maxChars runes,
// preferring to cut at whitespace so a sentence is not split mid-word.
func splitWindows(text string, maxChars int) []string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}

	windows := make([]string, 0, len(runes)/maxChars+1)
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end >= len(runes) {
			windows = append(windows, string(runes[start:]))
			break
		}

		cut := end
		minCut := start + maxChars/2
		for i := end; i > minCut; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}

		windows = append(windows, string(runes[start:cut]))
		start = cut
	}

	return windows
}
