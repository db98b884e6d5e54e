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

// Package tools answers batches of natural-language questions against a
// project's knowledge graph. A batch resolves its project once, fans the
// questions out concurrently and always returns a value: failures are
// delivered as a structured payload, never as a raised error.
package tools

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	qerrors "github.com/kraklabs/quarry/internal/errors"
	"github.com/kraklabs/quarry/pkg/projects"
)

// ProjectResolver turns a project reference (id or name) into a project.
type ProjectResolver interface {
	GetProjectByRefForUser(ctx context.Context, ref, userID string) (*projects.Project, error)
}

// VectorQuerier answers one question against a project's vector index.
type VectorQuerier interface {
	QueryVectorIndex(ctx context.Context, projectID, question string, nodeIDs []string) ([]map[string]any, error)
}

// QueryRequest is one question scoped to a resolved project.
type QueryRequest struct {
	ProjectID string   `json:"project_id"`
	Question  string   `json:"question"`
	NodeIDs   []string `json:"node_ids,omitempty"`
}

// QueryResult is one ranked match for a question. Numeric fields default to
// zero when the underlying match omits them; text fields pass through as-is.
type QueryResult struct {
	NodeID     string  `json:"node_id"`
	Docstring  string  `json:"docstring"`
	FilePath   string  `json:"file_path"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Similarity float64 `json:"similarity"`
}

// BatchResult is the outcome of a batch. Exactly one of Answers or Err is
// set; Answers[i] answers questions[i].
type BatchResult struct {
	Answers [][]QueryResult    `json:"answers,omitempty"`
	Err     *qerrors.ErrorJSON `json:"error,omitempty"`
}

// Fanout dispatches question batches.
type Fanout struct {
	resolver ProjectResolver
	querier  VectorQuerier
	logger   *slog.Logger
}

// NewFanout creates a fan-out over the given resolver and querier. A nil
// logger falls back to slog.Default().
func NewFanout(resolver ProjectResolver, querier VectorQuerier, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{resolver: resolver, querier: querier, logger: logger}
}

// Run answers a batch of questions about one project. The project reference
// is resolved exactly once per batch; every question then runs concurrently
// against the resolved id with the same node filter. Results preserve input
// order. A failing question fails the whole batch, and the failure comes
// back inside the result.
func (f *Fanout) Run(ctx context.Context, questions []string, projectRef, userID string, nodeIDs []string) *BatchResult {
	start := time.Now()
	recordBatch(len(questions))
	f.logger.Info("fanout.batch.start",
		"project_ref", projectRef,
		"questions", len(questions),
		"node_filter", len(nodeIDs),
	)

	project, err := f.resolver.GetProjectByRefForUser(ctx, projectRef, userID)
	if err != nil {
		recordBatchFailed()
		f.logger.Warn("fanout.resolve.failed", "project_ref", projectRef, "error", err)
		if stderrors.Is(err, projects.ErrNotFound) {
			return &BatchResult{Err: qerrors.AsJSON(qerrors.NewNotFoundError(
				"Project not found: "+projectRef,
				"no project with this id or name belongs to the user",
				"list projects to find the right reference",
			))}
		}
		return &BatchResult{Err: qerrors.AsJSON(err)}
	}

	requests := make([]QueryRequest, len(questions))
	for i, q := range questions {
		requests[i] = QueryRequest{ProjectID: project.ID, Question: q, NodeIDs: nodeIDs}
	}

	answers := make([][]QueryResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			matches, err := f.querier.QueryVectorIndex(gctx, req.ProjectID, req.Question, req.NodeIDs)
			if err != nil {
				return err
			}
			answers[i] = mapMatches(matches)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		recordBatchFailed()
		f.logger.Error("fanout.batch.failed", "project_id", project.ID, "error", err)
		return &BatchResult{Err: qerrors.AsJSON(err)}
	}

	observeBatchDuration(time.Since(start))
	f.logger.Info("fanout.batch.complete",
		"project_id", project.ID,
		"questions", len(questions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &BatchResult{Answers: answers}
}

// RunSync is Run for callers without a context. It owns a fresh background
// context, so it must not be used from code that already holds a
// cancellable context it cares about.
func (f *Fanout) RunSync(questions []string, projectRef, userID string, nodeIDs []string) *BatchResult {
	return f.Run(context.Background(), questions, projectRef, userID, nodeIDs)
}

// mapMatches converts raw index matches into typed results, defaulting
// missing numerics to zero.
func mapMatches(matches []map[string]any) []QueryResult {
	results := make([]QueryResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, QueryResult{
			NodeID:     asString(m["node_id"]),
			Docstring:  asString(m["docstring"]),
			FilePath:   asString(m["file_path"]),
			StartLine:  asInt(m["start_line"]),
			EndLine:    asInt(m["end_line"]),
			Similarity: asFloat(m["similarity"]),
		})
	}
	return results
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
