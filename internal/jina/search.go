package jina

import (
	"context"

	"github.com/mementolabs/memento/internal/domain"
)

type webSearchRequest struct {
	Query string `json:"q"`
	Count int    `json:"count,omitempty"`
}

type webSearchResponse struct {
	Data []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"data"`
}

// Search runs a web search and returns ranked documents. Result order
// carries the backend's ranking; scores decay linearly by position so
// downstream fusion has a usable relevance signal.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.WebResult, error) {
	if limit <= 0 {
		limit = 5
	}

	var resp webSearchResponse
	err := c.postJSON(ctx, c.cfg.SearchBaseURL+"/", webSearchRequest{Query: query, Count: limit}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) > limit {
		resp.Data = resp.Data[:limit]
	}

	results := make([]domain.WebResult, len(resp.Data))
	for i, d := range resp.Data {
		results[i] = domain.WebResult{
			Title:   d.Title,
			URL:     d.URL,
			Content: d.Content,
			Score:   1.0 - float64(i)/float64(len(resp.Data)),
		}
	}
	return results, nil
}
