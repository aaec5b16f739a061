package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const refinePrompt = `Rewrite the following search query to improve retrieval recall.
Expand abbreviations, add likely synonyms, and make implicit entities explicit.
Return only the rewritten query, nothing else.

Query: %s`

// Refiner rewrites queries for a second retrieval pass using a chat
// completion. Callers treat any failure as "use the original query".
type Refiner struct {
	client *openai.Client
	model  string
}

// NewRefiner creates a Refiner from chat config, filling defaults.
func NewRefiner(cfg ChatConfig) *Refiner {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}
	return &Refiner{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (r *Refiner) Refine(ctx context.Context, query string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(refinePrompt, query)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("refine query: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
