//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mementolabs/memento/internal/api/handlers"
	"github.com/mementolabs/memento/internal/ingest"
	"github.com/mementolabs/memento/internal/jina"
	"github.com/mementolabs/memento/internal/jobs"
	"github.com/mementolabs/memento/internal/llm"
	"github.com/mementolabs/memento/internal/repository"
	"github.com/mementolabs/memento/internal/search"
	"github.com/mementolabs/memento/internal/server"
	"github.com/mementolabs/memento/internal/service"
	"github.com/mementolabs/memento/internal/status"
	"github.com/mementolabs/memento/internal/testutil"
	"github.com/redis/go-redis/v9"
)

const (
	testUserID       = "e2e-user"
	embeddingDims    = 1024
	workerPoll       = 100 * time.Millisecond
	statusPollBudget = 30 * time.Second
)

// testEnv runs the full service stack in-process: real Postgres and
// Redis containers, everything else wired exactly as the daemon does,
// with httptest fakes standing in for the external model APIs.
type testEnv struct {
	Server *httptest.Server
	Token  string

	pool      interface{ Close() }
	redis     *redis.Client
	worker    *jobs.Worker
	workerCtx context.CancelFunc
	fakes     []*httptest.Server
}

// fakeSegmentServer splits content on blank lines, which keeps chunk
// boundaries predictable for assertions.
func fakeSegmentServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var chunks []string
		for _, part := range strings.Split(req.Content, "\n\n") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				chunks = append(chunks, trimmed)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"chunks": chunks})
	}))
}

// fakeEmbeddingServer answers the OpenAI-compatible embeddings endpoint
// with deterministic unit-ish vectors.
func fakeEmbeddingServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input any    `json:"input"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		count := 1
		if inputs, ok := req.Input.([]any); ok {
			count = len(inputs)
		}
		type entry struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]entry, count)
		for i := range data {
			vec := make([]float32, embeddingDims)
			for j := range vec {
				vec[j] = float32((i+j)%7) / 10.0
			}
			data[i] = entry{Object: "embedding", Index: i, Embedding: vec}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
}

// fakeRerankServer scores every document, earlier documents higher.
func fakeRerankServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type result struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}
		results := make([]result, len(req.Documents))
		for i := range results {
			results[i] = result{Index: i, RelevanceScore: 0.9 - float64(i)*0.05}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
}

func startEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { pc.Terminate(ctx) })
	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)

	rc := testutil.NewRedisContainer(ctx, t)
	t.Cleanup(func() { rc.Terminate(ctx) })
	redisClient := redis.NewClient(&redis.Options{Addr: rc.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	segmentSrv := fakeSegmentServer()
	embedSrv := fakeEmbeddingServer()
	rerankSrv := fakeRerankServer()

	memoryRepo := repository.NewMemoryRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	ingestJobRepo := repository.NewIngestJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	authSvc := service.NewAuthService(apiKeyRepo, &service.DefaultUUIDGenerator{})
	token, err := authSvc.CreateAPIKey(ctx, testUserID, "e2e")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}

	jinaClient, err := jina.New(jina.Config{
		SegmentBaseURL: segmentSrv.URL,
		RerankBaseURL:  rerankSrv.URL,
	}, jina.NewRandomKeys([]string{"jk-e2e"}))
	if err != nil {
		t.Fatalf("create jina client: %v", err)
	}

	embedder := llm.NewEmbedder(llm.EmbedderConfig{
		APIKey:     "test-key",
		BaseURL:    embedSrv.URL,
		Dimensions: embeddingDims,
	})

	tracker := status.NewTracker(redisClient)
	segmenter := ingest.NewSegmenter(jinaClient, 0)
	batcher := service.NewUpsertBatcher(vectorRepo)
	extractors := service.DefaultExtractors(nil)

	ingestSvc := service.NewIngestService(
		txRunner, memoryRepo, chunkRepo, segmenter, embedder, batcher, tracker, extractors,
	)
	memorySvc := service.NewMemoryService(memoryRepo, chunkRepo, vectorRepo, embedder)

	searcher := search.NewSearcher(embedder, vectorRepo, chunkRepo, 0.0)
	fusionCfg := search.FusionConfig{
		K:                 100,
		SemanticWeight:    0.7,
		FullTextWeight:    0.3,
		ScoreScale:        100,
		RelativeThreshold: 0.0,
	}
	reranker := search.NewReranker(jinaClient, search.RerankConfig{
		BatchLimit:      100,
		MemoryThreshold: 0.0,
		WebThreshold:    0.0,
		TopK:            10,
	})
	formatter := search.NewWebFormatter(search.DefaultContentLimits())
	orch := search.NewOrchestrator(nil, messageRepo)

	querySvc := service.NewQueryService(
		searcher, fusionCfg, reranker, formatter, orch, chunkRepo, messageRepo,
	)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	processor := jobs.NewIngestWorker(ingestJobRepo, ingestSvc)
	worker := jobs.NewWorker(processor, workerPoll)
	go worker.Start(workerCtx)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator: authSvc,
		MemoryHandler: handlers.NewMemoryHandler(ingestSvc, memorySvc),
		StatusHandler: handlers.NewStatusHandler(tracker),
		QueryHandler:  handlers.NewQueryHandler(querySvc),
	})
	srv := httptest.NewServer(router)

	env := &testEnv{
		Server:    srv,
		Token:     token,
		pool:      pool,
		redis:     redisClient,
		worker:    worker,
		workerCtx: cancelWorker,
		fakes:     []*httptest.Server{segmentSrv, embedSrv, rerankSrv},
	}
	t.Cleanup(env.shutdown)
	return env
}

func (e *testEnv) shutdown() {
	e.workerCtx()
	e.worker.Stop()
	e.Server.Close()
	for _, f := range e.fakes {
		f.Close()
	}
}

// do issues an authenticated request against the test server and
// decodes the JSON body into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode response %s: %v", string(raw), err)
		}
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp
}

// ingestNote enqueues an inline note and waits until processing lands
// in a terminal state. Returns the memory ID.
func (e *testEnv) ingestNote(t *testing.T, title, content string) string {
	t.Helper()

	var created struct {
		Data struct {
			MemoryID string `json:"memory_id"`
		} `json:"data"`
	}
	resp := e.do(t, http.MethodPost, "/memories", map[string]any{
		"title":   title,
		"content": content,
	}, &created)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest returned status %d", resp.StatusCode)
	}
	if created.Data.MemoryID == "" {
		t.Fatal("ingest returned empty memory_id")
	}

	e.waitForCompletion(t, created.Data.MemoryID)
	return created.Data.MemoryID
}

func (e *testEnv) waitForCompletion(t *testing.T, memoryID string) {
	t.Helper()

	deadline := time.Now().Add(statusPollBudget)
	for time.Now().Before(deadline) {
		var rec struct {
			Data struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			} `json:"data"`
		}
		resp := e.do(t, http.MethodGet, "/status/"+memoryID, nil, &rec)
		if resp.StatusCode == http.StatusOK {
			switch rec.Data.Status {
			case "COMPLETED":
				return
			case "FAILED":
				t.Fatalf("ingestion failed: %s", rec.Data.Error)
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("memory %s did not finish processing within %s", memoryID, statusPollBudget)
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body: %s)", resp.StatusCode, want, string(raw))
	}
}

func unauthenticatedGet(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	resp.Body.Close()
	return resp
}
