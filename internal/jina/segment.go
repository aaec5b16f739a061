package jina

import (
	"context"
	"strconv"
	"strings"
)

type segmentRequest struct {
	Content        string `json:"content"`
	MaxChunkLength string `json:"max_chunk_length"`
	ReturnChunks   string `json:"return_chunks"`
}

type segmentResponse struct {
	Chunks []string `json:"chunks"`
}

// Segment splits text into semantic chunks via the segmentation API.
// The caller is responsible for windowing oversized input.
func (c *Client) Segment(ctx context.Context, text string) ([]string, error) {
	var resp segmentResponse
	err := c.postJSON(ctx, strings.TrimRight(c.cfg.SegmentBaseURL, "/")+"/", segmentRequest{
		Content:        text,
		MaxChunkLength: strconv.Itoa(c.cfg.MaxChunkLength),
		ReturnChunks:   "true",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Chunks, nil
}
