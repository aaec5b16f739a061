package jina

import (
	"context"
	"strings"

	"github.com/mementolabs/memento/internal/search"
)

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n,omitempty"`
	ReturnDocuments bool     `json:"return_documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores documents against the query with the cross-encoder
// model. Returned indices point into the submitted documents slice.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]search.RerankScore, error) {
	var resp rerankResponse
	err := c.postJSON(ctx, strings.TrimRight(c.cfg.RerankBaseURL, "/")+"/v1/rerank", rerankRequest{
		Model:           c.cfg.RerankModel,
		Query:           query,
		Documents:       documents,
		TopN:            topK,
		ReturnDocuments: false,
	}, &resp)
	if err != nil {
		return nil, err
	}

	scores := make([]search.RerankScore, 0, len(resp.Results))
	for _, r := range resp.Results {
		scores = append(scores, search.RerankScore{
			Index:     r.Index,
			Relevance: r.RelevanceScore,
		})
	}
	return scores, nil
}
