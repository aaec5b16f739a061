package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mementolabs/memento/internal/search"
)

// DefaultChatModel is the default model for answer generation.
const DefaultChatModel = "gpt-4o-mini"

// ChatConfig configures a Chat client.
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Chat streams completions from an OpenAI-compatible chat endpoint.
type Chat struct {
	client *openai.Client
	model  string
}

// NewChat creates a Chat client from config, filling defaults.
func NewChat(cfg ChatConfig) *Chat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultChatModel
	}
	return &Chat{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// Stream opens a completion stream for the prompt.
func (c *Chat) Stream(ctx context.Context, prompt string) (search.TokenStream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat completion stream: %w", err)
	}
	return &chatStream{stream: stream}, nil
}

type chatStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next text increment; io.EOF ends the stream.
func (s *chatStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *chatStream) Close() {
	_ = s.stream.Close()
}
