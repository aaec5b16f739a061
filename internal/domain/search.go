package domain

// Channel tags a search result with the retrieval method that produced it.
type Channel string

const (
	ChannelSemantic Channel = "semantic"
	ChannelFullText Channel = "full_text"
)

// SearchResult is one ranked hit from a single retrieval channel. It is
// transient and never persisted.
type SearchResult struct {
	MemoryID string
	ChunkID  string
	Score    float64
	Channel  Channel
}

// FusedResult is one entry of the fused ranking. Ranking order is the
// contract; absolute score values are not.
type FusedResult struct {
	MemoryID string
	ChunkID  string
	Score    float64
}

// RerankedChunk is a memory chunk that survived cross-encoder reranking,
// hydrated with its stored content.
type RerankedChunk struct {
	MemoryID  string
	ChunkID   string
	Content   string
	Relevance float64
}

// WebResult is one ranked document from the web search collaborator.
type WebResult struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// RerankedWebResult is a web document that survived reranking.
type RerankedWebResult struct {
	WebResult
	Relevance float64
}

// Citation identifies one source the answer drew on.
type Citation struct {
	MemoryID string `json:"memory_id,omitempty"`
	ChunkID  string `json:"chunk_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
}
