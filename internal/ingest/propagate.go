package ingest

import (
	"fmt"

	"github.com/mementolabs/memento/internal/domain"
)

// DescribeChunk builds the kind-specific descriptor for the chunk at
// the given index. total is the chunk count of the whole document so
// temporal strategies can place a chunk proportionally.
type DescribeChunk func(index, total int) domain.Descriptor

// Propagate produces one metadata record per chunk, in chunk order,
// each with a freshly minted "<memory_id>_<index>" chunk identifier and
// the descriptor returned by describe. The 1:1 ordering correspondence
// between chunks and records is the invariant every downstream consumer
// depends on.
func Propagate(base domain.Metadata, chunks []string, describe DescribeChunk) ([]domain.Metadata, error) {
	if base.MemoryID == "" {
		return nil, fmt.Errorf("propagate metadata: %w", domain.ErrMissingRequiredField)
	}
	if describe == nil {
		describe = func(index, total int) domain.Descriptor {
			return domain.Descriptor{Kind: base.ContentKind}
		}
	}

	records := make([]domain.Metadata, 0, len(chunks))
	for i := range chunks {
		md := base
		md.Descriptor = describe(i, len(chunks))
		md.Descriptor.Kind = base.ContentKind
		md.Descriptor.ChunkID = domain.ChunkID(base.MemoryID, i)
		records = append(records, md)
	}

	return records, nil
}

// MediaDescribe places chunks evenly across a media timeline of the
// given total duration in seconds.
func MediaDescribe(totalDuration float64) DescribeChunk {
	return func(index, total int) domain.Descriptor {
		span := totalDuration
		if total > 0 {
			span = totalDuration / float64(total)
		}
		start := float64(index) * span
		return domain.Descriptor{
			Media: &domain.MediaDescriptor{
				StartTime: start,
				EndTime:   start + span,
				Duration:  span,
			},
		}
	}
}

// YouTubeDescribe places caption chunks evenly across a video timeline.
func YouTubeDescribe(videoID string, totalDuration float64) DescribeChunk {
	return func(index, total int) domain.Descriptor {
		span := totalDuration
		if total > 0 {
			span = totalDuration / float64(total)
		}
		start := float64(index) * span
		return domain.Descriptor{
			YouTube: &domain.YouTubeDescriptor{
				VideoID:   videoID,
				StartTime: start,
				EndTime:   start + span,
			},
		}
	}
}

// TextDescribe records the cumulative character offset of each chunk.
func TextDescribe(chunks []string) DescribeChunk {
	offsets := make([]int, len(chunks))
	total := 0
	for i, c := range chunks {
		offsets[i] = total
		total += len([]rune(c))
	}
	return func(index, _ int) domain.Descriptor {
		offset := 0
		if index < len(offsets) {
			offset = offsets[index]
		}
		return domain.Descriptor{Text: &domain.TextDescriptor{CharOffset: offset}}
	}
}

// GitDescribe describes every chunk as part of one repository file.
func GitDescribe(repoURL, filePath, language string) DescribeChunk {
	return func(index, total int) domain.Descriptor {
		return domain.Descriptor{
			Git: &domain.GitDescriptor{
				RepoURL:  repoURL,
				FilePath: filePath,
				Language: language,
			},
		}
	}
}

// DriveDescribe describes chunks of one Drive file, advancing the page
// counter proportionally through pageCount.
func DriveDescribe(fileID string, pageCount int) DescribeChunk {
	return func(index, total int) domain.Descriptor {
		page := 1
		if total > 0 && pageCount > 0 {
			page = index*pageCount/total + 1
		}
		return domain.Descriptor{
			Drive: &domain.DriveDescriptor{FileID: fileID, Page: page},
		}
	}
}

// NotionDescribe describes every chunk as part of one Notion page.
func NotionDescribe(pageID string) DescribeChunk {
	return func(index, total int) domain.Descriptor {
		return domain.Descriptor{
			Notion: &domain.NotionDescriptor{PageID: pageID},
		}
	}
}

// ImageDescribe describes every chunk of one image's extracted text.
func ImageDescribe(width, height int, format string) DescribeChunk {
	return func(index, total int) domain.Descriptor {
		return domain.Descriptor{
			Image: &domain.ImageDescriptor{Width: width, Height: height, Format: format},
		}
	}
}
