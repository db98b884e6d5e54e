// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package enrich generates docstrings and embeddings for a project's graph
// nodes and answers natural-language questions against the stored vectors.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kraklabs/quarry/pkg/graphstore"
	"github.com/kraklabs/quarry/pkg/llm"
)

// GraphAccess is the slice of the graph store the engine needs.
type GraphAccess interface {
	NodesForProject(ctx context.Context, projectID string) ([]graphstore.Node, error)
	SetDocstring(ctx context.Context, projectID, nodeID, docstring string) error
	SetEmbedding(ctx context.Context, projectID, nodeID string, vector []float32) error
	EmbeddingRows(ctx context.Context, projectID string, nodeIDs []string) ([]graphstore.EmbeddingRow, error)
	Stats(ctx context.Context, projectID string) (*graphstore.Stats, error)
}

// RetryConfig controls retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Engine enriches project graphs and serves vector-index queries.
type Engine struct {
	graph    GraphAccess
	provider llm.Provider
	embedder EmbeddingProvider
	workers  int
	topK     int
	retry    RetryConfig
	logger   *slog.Logger

	// queryCache memoizes question embeddings so repeated questions in a
	// batch don't re-hit the embedding provider.
	queryCache *lru.Cache[string, []float32]
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the enrichment worker count.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithTopK sets how many matches a vector query returns.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithRetryConfig overrides the provider retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(e *Engine) {
		if cfg.MaxRetries <= 0 {
			cfg.MaxRetries = 3
		}
		if cfg.InitialBackoff <= 0 {
			cfg.InitialBackoff = 200 * time.Millisecond
		}
		if cfg.MaxBackoff <= 0 {
			cfg.MaxBackoff = 2 * time.Second
		}
		if cfg.Multiplier <= 1.0 {
			cfg.Multiplier = 2.0
		}
		e.retry = cfg
	}
}

// NewEngine creates an enrichment engine over the given graph access and
// providers. A nil logger falls back to slog.Default().
func NewEngine(graph GraphAccess, provider llm.Provider, embedder EmbeddingProvider, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, []float32](512)
	e := &Engine{
		graph:      graph,
		provider:   provider,
		embedder:   embedder,
		workers:    4,
		topK:       10,
		retry:      RetryConfig{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second, Multiplier: 2.0},
		logger:     logger,
		queryCache: cache,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnrichProject generates a docstring and an embedding for every node of the
// project. Nodes are processed by a worker pool; per-node provider failures
// are retried with backoff, and a node that still fails after retries fails
// the whole enrichment.
func (e *Engine) EnrichProject(ctx context.Context, projectID string) error {
	nodes, err := e.graph.NodesForProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load nodes for enrichment: %w", err)
	}
	if len(nodes) == 0 {
		e.logger.Info("enrich.project.empty", "project_id", projectID)
		return nil
	}

	start := time.Now()
	e.logger.Info("enrich.project.start",
		"project_id", projectID,
		"nodes", len(nodes),
		"workers", e.workers,
	)

	jobs := make(chan graphstore.Node)
	var wg sync.WaitGroup
	var enriched atomic.Int64
	errCh := make(chan error, e.workers)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for node := range jobs {
				if err := e.enrichNode(workerCtx, node); err != nil {
					select {
					case errCh <- err:
						cancel()
					default:
					}
					return
				}
				enriched.Add(1)
			}
		}()
	}

feed:
	for _, node := range nodes {
		select {
		case jobs <- node:
		case <-workerCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		e.logger.Error("enrich.project.failed",
			"project_id", projectID,
			"enriched", enriched.Load(),
			"error", err,
		)
		return err
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.logger.Info("enrich.project.done",
		"project_id", projectID,
		"enriched", enriched.Load(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// enrichNode produces and stores a docstring plus embedding for one node.
func (e *Engine) enrichNode(ctx context.Context, node graphstore.Node) error {
	doc, err := e.generateDocstring(ctx, node)
	if err != nil {
		return fmt.Errorf("docstring for node %s: %w", node.ID, err)
	}
	if err := e.graph.SetDocstring(ctx, node.ProjectID, node.ID, doc); err != nil {
		return err
	}

	vector, err := e.embedWithRetry(ctx, embedText(node, doc))
	if err != nil {
		return fmt.Errorf("embedding for node %s: %w", node.ID, err)
	}
	return e.graph.SetEmbedding(ctx, node.ProjectID, node.ID, vector)
}

// embedText is what gets embedded: the docstring carries the semantics, the
// source text anchors identifiers.
func embedText(node graphstore.Node, doc string) string {
	text := doc + "\n" + node.Text
	// Embedding models have token limits and code tokenizes poorly;
	// 2000 chars is a conservative cap.
	const maxChars = 2000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}

func (e *Engine) generateDocstring(ctx context.Context, node graphstore.Node) (string, error) {
	prompt := fmt.Sprintf(
		"Write a one-paragraph docstring for the following %s named %q from %s. Describe what it does and how it is used. Respond with the docstring only.\n\n%s",
		node.Kind, node.Name, node.FilePath, capText(node.Text, 4000),
	)

	var resp *llm.GenerateResponse
	var err error
	maxRetries := e.retry.MaxRetries
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err = e.provider.Generate(ctx, llm.GenerateRequest{Prompt: prompt, MaxTokens: 256})
		if err == nil {
			return strings.TrimSpace(resp.Text), nil
		}
		if !isRetryableProviderError(err) || attempt == maxRetries-1 {
			break
		}
		sleep := computeBackoffWithJitter(e.retry.InitialBackoff, attempt, e.retry.Multiplier, e.retry.MaxBackoff)
		e.logger.Warn("enrich.docstring.retry", "node_id", node.ID, "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(sleep):
		}
	}
	return "", err
}

func (e *Engine) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	var err error
	maxRetries := e.retry.MaxRetries
	for attempt := 0; attempt < maxRetries; attempt++ {
		vector, err = e.embedder.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		if !isRetryableProviderError(err) || attempt == maxRetries-1 {
			break
		}
		sleep := computeBackoffWithJitter(e.retry.InitialBackoff, attempt, e.retry.Multiplier, e.retry.MaxBackoff)
		e.logger.Warn("enrich.embedding.retry", "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, err
}

func capText(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// QueryVectorIndex embeds the question, ranks the project's stored
// embeddings by cosine similarity and returns the top matches as raw maps.
// nodeIDs, when non-empty, restricts the candidate set.
func (e *Engine) QueryVectorIndex(ctx context.Context, projectID, question string, nodeIDs []string) ([]map[string]any, error) {
	queryVec, err := e.questionEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	rows, err := e.graph.EmbeddingRows(ctx, projectID, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	type scored struct {
		row graphstore.EmbeddingRow
		sim float64
	}
	ranked := make([]scored, 0, len(rows))
	for _, row := range rows {
		if len(row.Vector) == 0 {
			continue
		}
		ranked = append(ranked, scored{row: row, sim: cosineSimilarity(queryVec, row.Vector)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })
	if len(ranked) > e.topK {
		ranked = ranked[:e.topK]
	}

	matches := make([]map[string]any, 0, len(ranked))
	for _, s := range ranked {
		matches = append(matches, map[string]any{
			"node_id":    s.row.NodeID,
			"docstring":  s.row.Docstring,
			"file_path":  s.row.FilePath,
			"start_line": s.row.StartLine,
			"end_line":   s.row.EndLine,
			"similarity": s.sim,
		})
	}
	e.logger.Debug("enrich.query.done",
		"project_id", projectID,
		"candidates", len(rows),
		"matches", len(matches),
	)
	return matches, nil
}

func (e *Engine) questionEmbedding(ctx context.Context, question string) ([]float32, error) {
	if vec, ok := e.queryCache.Get(question); ok {
		return vec, nil
	}
	vec, err := e.embedWithRetry(ctx, question)
	if err != nil {
		return nil, err
	}
	e.queryCache.Add(question, vec)
	return vec, nil
}

// LogGraphStats logs node/edge/embedding counts for a project. Best effort:
// a stats failure is logged, never returned.
func (e *Engine) LogGraphStats(ctx context.Context, projectID string) {
	stats, err := e.graph.Stats(ctx, projectID)
	if err != nil {
		e.logger.Warn("enrich.stats.failed", "project_id", projectID, "error", err)
		return
	}
	e.logger.Info("enrich.stats",
		"project_id", projectID,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"embeddings", stats.Embeddings,
	)
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// isRetryableProviderError classifies provider errors: network/timeout and
// HTTP 5xx/429 are retryable.
func isRetryableProviderError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "temporarily unavailable", "connection refused", "connection reset", "deadline exceeded", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, s := range []string{"status 429", "status 500", "status 502", "status 503", "status 504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// computeBackoffWithJitter returns exponential backoff with full jitter.
func computeBackoffWithJitter(base time.Duration, attempt int, mult float64, capDur time.Duration) time.Duration {
	exp := float64(base)
	for i := 0; i < attempt; i++ {
		exp *= mult
	}
	d := time.Duration(exp)
	if d > capDur {
		d = capDur
	}
	if d <= 0 {
		return base
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
