package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/domain"
)

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type mockVectorIndex struct {
	mock.Mock
}

func (m *mockVectorIndex) Query(ctx context.Context, vector []float32, filters Filters, topK int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, vector, filters, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

type mockFullTextIndex struct {
	mock.Mock
}

func (m *mockFullTextIndex) Query(ctx context.Context, query string, filters Filters, topK int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, query, filters, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func newTestSearcher(floor float64) (*Searcher, *mockEmbedder, *mockVectorIndex, *mockFullTextIndex) {
	embedder := new(mockEmbedder)
	vectors := new(mockVectorIndex)
	fulltext := new(mockFullTextIndex)
	return NewSearcher(embedder, vectors, fulltext, floor), embedder, vectors, fulltext
}

func TestSearchRunsAllFourChannels(t *testing.T) {
	s, embedder, vectors, fulltext := newTestSearcher(0.1)

	embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{0.1, 0.2}}, nil)
	vectors.On("Query", mock.Anything, mock.Anything, mock.Anything, 10).Return([]domain.SearchResult{
		{MemoryID: "m1", ChunkID: "m1_0", Score: 0.8},
	}, nil)
	fulltext.On("Query", mock.Anything, mock.Anything, mock.Anything, 10).Return([]domain.SearchResult{
		{MemoryID: "m2", ChunkID: "m2_0", Score: 0.5},
	}, nil)

	out, err := s.Search(context.Background(), "eiffel tower history", "eiffel tower built 1889", Filters{UserID: "u1"}, 10)
	require.NoError(t, err)

	assert.Len(t, out.SemanticOriginal, 1)
	assert.Len(t, out.SemanticRefined, 1)
	assert.Len(t, out.FullTextOriginal, 1)
	assert.Len(t, out.FullTextRefined, 1)

	assert.Equal(t, domain.ChannelSemantic, out.SemanticOriginal[0].Channel)
	assert.Equal(t, domain.ChannelFullText, out.FullTextOriginal[0].Channel)
}

func TestSearchFailedChannelContributesEmptyList(t *testing.T) {
	s, embedder, vectors, fulltext := newTestSearcher(0.1)

	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("embedder down"))
	fulltext.On("Query", mock.Anything, mock.Anything, mock.Anything, 10).Return([]domain.SearchResult{
		{MemoryID: "m2", ChunkID: "m2_0", Score: 0.5},
	}, nil)

	out, err := s.Search(context.Background(), "eiffel tower", "", Filters{UserID: "u1"}, 10)
	require.NoError(t, err, "a failed channel must not fail the search")

	assert.Empty(t, out.SemanticOriginal)
	assert.Empty(t, out.SemanticRefined)
	assert.Len(t, out.FullTextOriginal, 1)
	vectors.AssertNotCalled(t, "Query")
}

func TestSearchSemanticFloorApplied(t *testing.T) {
	s, embedder, vectors, fulltext := newTestSearcher(0.1)

	embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	vectors.On("Query", mock.Anything, mock.Anything, mock.Anything, 10).Return([]domain.SearchResult{
		{MemoryID: "m1", ChunkID: "m1_0", Score: 0.8},
		{MemoryID: "m2", ChunkID: "m2_0", Score: 0.05},
	}, nil)
	fulltext.On("Query", mock.Anything, mock.Anything, mock.Anything, 10).Return([]domain.SearchResult{}, nil)

	out, err := s.Search(context.Background(), "eiffel tower", "", Filters{UserID: "u1"}, 10)
	require.NoError(t, err)

	require.Len(t, out.SemanticOriginal, 1)
	assert.Equal(t, "m1", out.SemanticOriginal[0].MemoryID)
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	s, _, _, _ := newTestSearcher(0.1)

	_, err := s.Search(context.Background(), "   ", "refined", Filters{UserID: "u1"}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestSearchRefinedDefaultsToOriginal(t *testing.T) {
	s, embedder, vectors, fulltext := newTestSearcher(0.1)

	embedder.On("Embed", mock.Anything, []string{"eiffel tower"}).Return([][]float32{{0.1}}, nil)
	vectors.On("Query", mock.Anything, mock.Anything, mock.Anything, 10).Return([]domain.SearchResult{}, nil)
	fulltext.On("Query", mock.Anything, "eiffel tower", mock.Anything, 10).Return([]domain.SearchResult{}, nil)

	_, err := s.Search(context.Background(), "eiffel tower", "", Filters{UserID: "u1"}, 10)
	require.NoError(t, err)

	embedder.AssertNumberOfCalls(t, "Embed", 2)
	fulltext.AssertNumberOfCalls(t, "Query", 2)
}

func TestSearchNormalizedFullTextQuery(t *testing.T) {
	s, embedder, vectors, fulltext := newTestSearcher(0.1)

	embedder.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{0.1}}, nil)
	vectors.On("Query", mock.Anything, mock.Anything, mock.Anything, 10).Return([]domain.SearchResult{}, nil)
	fulltext.On("Query", mock.Anything, "eiffel tower", mock.Anything, 10).Return([]domain.SearchResult{}, nil)

	_, err := s.Search(context.Background(), "What is the Eiffel Tower?", "", Filters{UserID: "u1"}, 10)
	require.NoError(t, err)

	fulltext.AssertCalled(t, "Query", mock.Anything, "eiffel tower", mock.Anything, 10)
}
