package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/mementolabs/memento/internal/domain"
)

// TokenStream is a finite, non-restartable sequence of text increments
// from the language model. Recv returns io.EOF when the stream ends.
type TokenStream interface {
	Recv() (string, error)
	Close()
}

// ChatClient opens a completion stream for an assembled prompt.
type ChatClient interface {
	Stream(ctx context.Context, prompt string) (TokenStream, error)
}

// AnswerStore persists the final assembled answer.
type AnswerStore interface {
	SaveAnswer(ctx context.Context, userID, query, answer string, citations []domain.Citation) error
}

// StreamSink receives incremental answer output. Error marks the stream
// terminated by an upstream failure; no deltas follow it.
type StreamSink interface {
	Delta(text string) error
	Error(err error)
}

// AnswerRequest carries everything needed to stream and persist one answer.
type AnswerRequest struct {
	UserID    string
	Query     string
	Prompt    string
	Citations []domain.Citation
}

const persistTimeout = 10 * time.Second

// Orchestrator assembles the final prompt and manages incremental token
// delivery with exactly-once persistence of the assembled answer.
type Orchestrator struct {
	chat  ChatClient
	store AnswerStore
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(chat ChatClient, store AnswerStore) *Orchestrator {
	return &Orchestrator{chat: chat, store: store}
}

// Assemble builds the final prompt from the chat history, the memory
// context block, the web context block, and the query. Empty sections
// are omitted.
func (o *Orchestrator) Assemble(chatContext, memoryContext, webContext, query string) string {
	var b strings.Builder

	b.WriteString("You are a helpful assistant answering from the user's stored memories and web results.\n")
	b.WriteString("Answer the question using the provided context. Cite nothing that is not in the context.\n\n")

	if chatContext != "" {
		b.WriteString("<chat_history>\n")
		b.WriteString(chatContext)
		b.WriteString("\n</chat_history>\n\n")
	}
	if memoryContext != "" {
		b.WriteString(memoryContext)
		b.WriteString("\n\n")
	}
	if webContext != "" {
		b.WriteString(webContext)
		b.WriteString("\n\n")
	}

	b.WriteString("<question>")
	b.WriteString(query)
	b.WriteString("</question>")

	return b.String()
}

// BuildMemoryContext formats reranked memory chunks into the context
// block fed to the model.
func BuildMemoryContext(query string, chunks []domain.RerankedChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<memory_data>\n<question>")
	b.WriteString(cleanText(query))
	b.WriteString("</question>\n")
	for _, c := range chunks {
		b.WriteString("<data>")
		b.WriteString(cleanText(c.Content))
		b.WriteString("</data>\n")
		b.WriteString(fmt.Sprintf("<data_score>%.3f</data_score>\n", c.Relevance))
	}
	b.WriteString("</memory_data>")
	return b.String()
}

// Stream opens the model stream for the request and forwards every
// increment to the sink as soon as it is produced. The concatenated
// answer is persisted exactly once, whether the stream completes,
// fails upstream, or the request is cancelled mid-stream; a partial
// answer is still worth keeping. Upstream failure is reported through
// the sink's terminal error marker, not by silent truncation.
func (o *Orchestrator) Stream(ctx context.Context, req AnswerRequest, sink StreamSink) error {
	if o.chat == nil {
		sink.Error(domain.ErrAnswerUnavailable)
		return domain.ErrAnswerUnavailable
	}

	stream, err := o.chat.Stream(ctx, req.Prompt)
	if err != nil {
		sink.Error(err)
		return fmt.Errorf("open answer stream: %w", err)
	}
	defer stream.Close()

	var answer strings.Builder
	persisted := false
	persist := func() {
		if persisted {
			return
		}
		persisted = true
		if answer.Len() == 0 {
			return
		}
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.store.SaveAnswer(pctx, req.UserID, req.Query, answer.String(), req.Citations); err != nil {
			log.Printf("WARN: persist answer for user %s failed: %v", req.UserID, err)
		}
	}
	defer persist()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			sink.Error(err)
			return fmt.Errorf("answer stream interrupted: %w", err)
		}

		if delta == "" {
			continue
		}
		answer.WriteString(delta)
		if err := sink.Delta(delta); err != nil {
			return fmt.Errorf("forward answer delta: %w", err)
		}
	}
}
