package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// KeyPicker selects an API key for one request. Implementations must be
// safe for concurrent use.
type KeyPicker interface {
	Pick() string
}

// RandomKeys picks uniformly among a fixed key set.
type RandomKeys struct {
	keys []string
	mu   sync.Mutex
	rng  *rand.Rand
}

// NewRandomKeys creates a RandomKeys picker.
func NewRandomKeys(keys []string) *RandomKeys {
	return &RandomKeys{
		keys: keys,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Pick returns a random key, or "" when no keys are configured.
func (r *RandomKeys) Pick() string {
	if len(r.keys) == 0 {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[r.rng.Intn(len(r.keys))]
}

// RoundRobinKeys cycles through a fixed key set.
type RoundRobinKeys struct {
	keys []string
	mu   sync.Mutex
	next int
}

// NewRoundRobinKeys creates a RoundRobinKeys picker.
func NewRoundRobinKeys(keys []string) *RoundRobinKeys {
	return &RoundRobinKeys{keys: keys}
}

// Pick returns the next key in rotation, or "" when none are configured.
func (r *RoundRobinKeys) Pick() string {
	if len(r.keys) == 0 {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.keys[r.next%len(r.keys)]
	r.next++
	return key
}

// Config configures the Jina API client.
type Config struct {
	SegmentBaseURL string
	RerankBaseURL  string
	SearchBaseURL  string
	RerankModel    string
	MaxChunkLength int
	Timeout        time.Duration
}

// Client talks to the Jina segmentation and rerank APIs. Keys come from
// an explicit picker instead of a shared mutable pool so selection stays
// testable.
type Client struct {
	cfg  Config
	keys KeyPicker
	http *http.Client
}

// New creates a Client, filling config defaults.
func New(cfg Config, keys KeyPicker) (*Client, error) {
	if keys == nil || keys.Pick() == "" {
		return nil, fmt.Errorf("jina client requires at least one API key")
	}
	if strings.TrimSpace(cfg.SegmentBaseURL) == "" {
		cfg.SegmentBaseURL = "https://segment.jina.ai"
	}
	if strings.TrimSpace(cfg.RerankBaseURL) == "" {
		cfg.RerankBaseURL = "https://api.jina.ai"
	}
	if strings.TrimSpace(cfg.SearchBaseURL) == "" {
		cfg.SearchBaseURL = "https://s.jina.ai"
	}
	if strings.TrimSpace(cfg.RerankModel) == "" {
		cfg.RerankModel = "jina-reranker-v2-base-multilingual"
	}
	if cfg.MaxChunkLength <= 0 {
		cfg.MaxChunkLength = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		keys: keys,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jina encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.keys.Pick())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("jina http %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("jina decode response: %w", err)
	}
	return nil
}
