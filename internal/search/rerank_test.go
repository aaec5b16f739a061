package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/domain"
)

type mockRerankClient struct {
	mock.Mock
}

func (m *mockRerankClient) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankScore, error) {
	args := m.Called(ctx, query, documents, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]RerankScore), args.Error(1)
}

func memoryCandidates(n int) []MemoryCandidate {
	out := make([]MemoryCandidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, MemoryCandidate{
			MemoryID: fmt.Sprintf("m%d", i),
			ChunkID:  fmt.Sprintf("m%d_0", i),
			Content:  fmt.Sprintf("document %d", i),
		})
	}
	return out
}

func TestRerankerAppliesPerSourceThresholds(t *testing.T) {
	client := new(mockRerankClient)
	client.On("Rerank", mock.Anything, "q", mock.Anything, mock.Anything).Return([]RerankScore{
		{Index: 0, Relevance: 0.9}, // memory, above 0.5
		{Index: 1, Relevance: 0.4}, // memory, below 0.5
		{Index: 2, Relevance: 0.4}, // web, above 0.3
		{Index: 3, Relevance: 0.2}, // web, below 0.3
	}, nil)

	r := NewReranker(client, DefaultRerankConfig())
	memories := memoryCandidates(2)
	web := []domain.WebResult{
		{Title: "w0", URL: "https://w0", Content: "web zero"},
		{Title: "w1", URL: "https://w1", Content: "web one"},
	}

	gotMem, gotWeb := r.Rerank(context.Background(), "q", memories, web)

	require.Len(t, gotMem, 1)
	assert.Equal(t, "m0", gotMem[0].MemoryID)
	assert.InDelta(t, 0.9, gotMem[0].Relevance, 1e-9)

	require.Len(t, gotWeb, 1)
	assert.Equal(t, "w0", gotWeb[0].Title)
}

func TestRerankerBatchSplitting(t *testing.T) {
	client := new(mockRerankClient)
	client.On("Rerank", mock.Anything, "q", mock.MatchedBy(func(docs []string) bool {
		return len(docs) <= 3
	}), mock.Anything).Return([]RerankScore{{Index: 0, Relevance: 0.9}}, nil)

	cfg := DefaultRerankConfig()
	cfg.BatchLimit = 3

	r := NewReranker(client, cfg)
	gotMem, _ := r.Rerank(context.Background(), "q", memoryCandidates(7), nil)

	// ceil(7/3) backend calls.
	client.AssertNumberOfCalls(t, "Rerank", 3)

	// Index 0 of each batch maps back to original positions 0, 3, 6.
	require.Len(t, gotMem, 3)
	ids := []string{gotMem[0].MemoryID, gotMem[1].MemoryID, gotMem[2].MemoryID}
	assert.ElementsMatch(t, []string{"m0", "m3", "m6"}, ids)
}

func TestRerankerTotalBackendFailureReturnsEmptyPair(t *testing.T) {
	client := new(mockRerankClient)
	client.On("Rerank", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("backend down"))

	r := NewReranker(client, DefaultRerankConfig())
	gotMem, gotWeb := r.Rerank(context.Background(), "q", memoryCandidates(2), []domain.WebResult{{Content: "w"}})

	assert.NotNil(t, gotMem)
	assert.NotNil(t, gotWeb)
	assert.Empty(t, gotMem)
	assert.Empty(t, gotWeb)
}

func TestRerankerPartialBatchFailureContinues(t *testing.T) {
	client := new(mockRerankClient)
	calls := 0
	client.On("Rerank", mock.Anything, "q", mock.Anything, mock.Anything).Return(nil, errors.New("flaky")).Once()
	client.On("Rerank", mock.Anything, "q", mock.Anything, mock.Anything).
		Return([]RerankScore{{Index: 0, Relevance: 0.8}}, nil).Run(func(args mock.Arguments) { calls++ })

	cfg := DefaultRerankConfig()
	cfg.BatchLimit = 2

	r := NewReranker(client, cfg)
	gotMem, _ := r.Rerank(context.Background(), "q", memoryCandidates(4), nil)

	// First batch fails, second succeeds; its index 0 is original position 2.
	require.Len(t, gotMem, 1)
	assert.Equal(t, "m2", gotMem[0].MemoryID)
}

func TestRerankerSortsByRelevanceDescending(t *testing.T) {
	client := new(mockRerankClient)
	client.On("Rerank", mock.Anything, "q", mock.Anything, mock.Anything).Return([]RerankScore{
		{Index: 0, Relevance: 0.6},
		{Index: 1, Relevance: 0.95},
		{Index: 2, Relevance: 0.7},
	}, nil)

	r := NewReranker(client, DefaultRerankConfig())
	gotMem, _ := r.Rerank(context.Background(), "q", memoryCandidates(3), nil)

	require.Len(t, gotMem, 3)
	assert.Equal(t, "m1", gotMem[0].MemoryID)
	assert.Equal(t, "m2", gotMem[1].MemoryID)
	assert.Equal(t, "m0", gotMem[2].MemoryID)
}

func TestRerankerEmptyCandidatePool(t *testing.T) {
	client := new(mockRerankClient)

	r := NewReranker(client, DefaultRerankConfig())
	gotMem, gotWeb := r.Rerank(context.Background(), "q", nil, nil)

	assert.Empty(t, gotMem)
	assert.Empty(t, gotWeb)
	client.AssertNotCalled(t, "Rerank")
}
