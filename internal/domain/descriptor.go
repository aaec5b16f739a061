package domain

import "fmt"

// Descriptor carries the content-kind-specific placement of one chunk
// inside its memory. Exactly one variant field is set, matching Kind.
// Every variant carries the chunk identifier so a flattened descriptor
// can always be traced back to its chunk.
type Descriptor struct {
	Kind    ContentKind
	ChunkID string

	Media   *MediaDescriptor
	Image   *ImageDescriptor
	Git     *GitDescriptor
	YouTube *YouTubeDescriptor
	Notion  *NotionDescriptor
	Drive   *DriveDescriptor
	Text    *TextDescriptor
}

// MediaDescriptor places a chunk inside a time-ordered transcript
// (video or audio). Times are seconds from the start of the media.
type MediaDescriptor struct {
	StartTime float64
	EndTime   float64
	Duration  float64
}

// ImageDescriptor describes an image-derived chunk.
type ImageDescriptor struct {
	Width  int
	Height int
	Format string
}

// GitDescriptor places a chunk inside a repository file.
type GitDescriptor struct {
	RepoURL  string
	FilePath string
	Language string
}

// YouTubeDescriptor places a chunk inside a caption track.
type YouTubeDescriptor struct {
	VideoID   string
	StartTime float64
	EndTime   float64
}

// NotionDescriptor identifies the source Notion page.
type NotionDescriptor struct {
	PageID string
}

// DriveDescriptor identifies the source Drive file and the page or
// sheet the chunk came from.
type DriveDescriptor struct {
	FileID string
	Page   int
	Sheet  string
}

// TextDescriptor describes a plain-text or note chunk.
type TextDescriptor struct {
	CharOffset int
}

// Flatten converts the descriptor to a scalar map suitable for the
// vector index, with every key prefixed "specific_desc_". Unknown kinds
// return ErrUnknownContentKind so new kinds cannot pass through silently.
func (d Descriptor) Flatten() (map[string]any, error) {
	out := map[string]any{
		"specific_desc_kind":     string(d.Kind),
		"specific_desc_chunk_id": d.ChunkID,
	}

	switch d.Kind {
	case ContentKindVideo, ContentKindAudio:
		if d.Media != nil {
			out["specific_desc_start_time"] = d.Media.StartTime
			out["specific_desc_end_time"] = d.Media.EndTime
			out["specific_desc_duration"] = d.Media.Duration
		}
	case ContentKindImage:
		if d.Image != nil {
			out["specific_desc_width"] = d.Image.Width
			out["specific_desc_height"] = d.Image.Height
			out["specific_desc_format"] = d.Image.Format
		}
	case ContentKindGit:
		if d.Git != nil {
			out["specific_desc_repo_url"] = d.Git.RepoURL
			out["specific_desc_file_path"] = d.Git.FilePath
			out["specific_desc_language"] = d.Git.Language
		}
	case ContentKindYouTube:
		if d.YouTube != nil {
			out["specific_desc_video_id"] = d.YouTube.VideoID
			out["specific_desc_start_time"] = d.YouTube.StartTime
			out["specific_desc_end_time"] = d.YouTube.EndTime
		}
	case ContentKindNotion:
		if d.Notion != nil {
			out["specific_desc_page_id"] = d.Notion.PageID
		}
	case ContentKindDrive:
		if d.Drive != nil {
			out["specific_desc_file_id"] = d.Drive.FileID
			out["specific_desc_page"] = d.Drive.Page
			if d.Drive.Sheet != "" {
				out["specific_desc_sheet"] = d.Drive.Sheet
			}
		}
	case ContentKindNote, ContentKindText, ContentKindMindMap:
		if d.Text != nil {
			out["specific_desc_char_offset"] = d.Text.CharOffset
		}
	default:
		return nil, fmt.Errorf("flatten descriptor for kind %q: %w", d.Kind, ErrUnknownContentKind)
	}

	return out, nil
}
