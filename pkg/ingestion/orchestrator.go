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

// Package ingestion runs the repository ingestion pipeline: acquire a
// working tree, build its code graph, persist it, enrich it, and drive the
// project through parsed and ready. Every exit leaves the project in a
// terminal status and disposes the working tree.
package ingestion

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	qerrors "github.com/kraklabs/quarry/internal/errors"
	"github.com/kraklabs/quarry/pkg/graphstore"
	"github.com/kraklabs/quarry/pkg/languages"
	"github.com/kraklabs/quarry/pkg/projects"
)

// SuccessMessage is returned on a fully ingested repository.
const SuccessMessage = "The repository has been parsed successfully"

// Acquisition is a repository checked out onto local disk.
type Acquisition struct {
	// Path is the working tree root.
	Path string

	// Breakdown is bytes of source per language, when the acquirer computed
	// one during checkout. Nil means the orchestrator detects statically.
	Breakdown map[string]int64
}

// Acquirer checks repositories out into working trees.
type Acquirer interface {
	Acquire(ctx context.Context, repoRef, branch string) (*Acquisition, error)
}

// GraphBuilder builds a code graph from a working tree without storing it.
type GraphBuilder interface {
	BuildGraph(ctx context.Context, projectID, dir, language string) ([]graphstore.Node, []graphstore.Edge, error)
}

// GenericGraphService builds and stores a graph in a single call. It is the
// delegate path for supported languages outside the graph-native set.
type GenericGraphService interface {
	CreateAndStoreGraph(ctx context.Context, projectID, dir, language string) error
}

// GraphWriter is the slice of the graph store the orchestrator writes.
type GraphWriter interface {
	DeleteProjectSubgraph(ctx context.Context, projectID string) error
	CreateIndices() error
	BulkInsertNodes(ctx context.Context, nodes []graphstore.Node) error
	BulkInsertEdges(ctx context.Context, edges []graphstore.Edge) error
}

// StatusStore records project lifecycle transitions.
type StatusStore interface {
	SetStatus(ctx context.Context, id string, status projects.Status) error
	SetLanguage(ctx context.Context, id, language string) error
}

// Enricher generates docstrings and embeddings for a stored graph.
type Enricher interface {
	EnrichProject(ctx context.Context, projectID string) error
	LogGraphStats(ctx context.Context, projectID string)
}

// Request describes one ingestion run.
type Request struct {
	ProjectID    string
	RepoRef      string
	Branch       string
	UserID       string
	UserEmail    string
	CleanupGraph bool
}

// Result is the success payload of a run.
type Result struct {
	Message   string `json:"message"`
	ProjectID string `json:"project_id"`
}

// Orchestrator wires the ingestion capabilities together.
type Orchestrator struct {
	acquirer Acquirer
	builder  GraphBuilder
	generic  GenericGraphService
	graph    GraphWriter
	status   StatusStore
	enricher Enricher
	events   EventSink

	// storageRoot bounds working-tree disposal: paths outside it are never
	// removed, whatever the acquirer returned.
	storageRoot string

	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil events sink falls back to
// logging; a nil logger falls back to slog.Default().
func NewOrchestrator(
	acquirer Acquirer,
	builder GraphBuilder,
	generic GenericGraphService,
	graph GraphWriter,
	status StatusStore,
	enricher Enricher,
	events EventSink,
	storageRoot string,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = NewLogEventSink(logger)
	}
	return &Orchestrator{
		acquirer:    acquirer,
		builder:     builder,
		generic:     generic,
		graph:       graph,
		status:      status,
		enricher:    enricher,
		events:      events,
		storageRoot: storageRoot,
		logger:      logger,
	}
}

// Run executes the full pipeline for one repository. On success the project
// is ready and the returned result carries the success message; on any
// failure the project is left in the error status and the returned error is
// a typed *errors.UserError.
func (o *Orchestrator) Run(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	recordRunStarted()
	logger := o.logger.With("project_id", req.ProjectID)
	logger.Info("ingest.run.start",
		"repo_ref", req.RepoRef,
		"branch", req.Branch,
		"cleanup_graph", req.CleanupGraph,
	)

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = o.fail(ctx, req, qerrors.NewInternalError(
				fmt.Sprintf("ingestion panicked: %v", r),
				string(debug.Stack()),
				nil,
			))
		}
	}()

	if req.CleanupGraph {
		logger.Info("ingest.step.cleanup_graph")
		if cleanupErr := o.graph.DeleteProjectSubgraph(ctx, req.ProjectID); cleanupErr != nil {
			return nil, o.fail(ctx, req, qerrors.NewCleanupGraphError(req.ProjectID, cleanupErr))
		}
	}

	logger.Info("ingest.step.acquire")
	stepStart := time.Now()
	acq, acquireErr := o.acquirer.Acquire(ctx, req.RepoRef, req.Branch)
	if acquireErr != nil {
		return nil, o.fail(ctx, req, qerrors.NewAcquisitionError(req.RepoRef, acquireErr))
	}
	observeStepDuration("acquire", time.Since(stepStart))
	defer o.disposeWorkingTree(acq.Path, logger)

	var language string
	if len(acq.Breakdown) > 0 {
		language = languages.Dominant(acq.Breakdown)
	} else {
		var detectErr error
		language, detectErr = languages.DetectDirectory(acq.Path)
		if detectErr != nil {
			return nil, o.fail(ctx, req, internalize(detectErr))
		}
	}
	logger.Info("ingest.language.detected", "language", language)
	if setErr := o.status.SetLanguage(ctx, req.ProjectID, language); setErr != nil {
		return nil, o.fail(ctx, req, internalize(setErr))
	}

	stepStart = time.Now()
	switch languages.Classify(language) {
	case languages.ClassGraphNative:
		logger.Info("ingest.step.build", "language", language)
		if buildErr := o.buildAndPersist(ctx, req.ProjectID, acq.Path, language, logger); buildErr != nil {
			return nil, o.fail(ctx, req, buildErr)
		}
	case languages.ClassGeneric:
		logger.Info("ingest.step.generic_graph", "language", language)
		if genErr := o.generic.CreateAndStoreGraph(ctx, req.ProjectID, acq.Path, language); genErr != nil {
			return nil, o.fail(ctx, req, internalize(genErr))
		}
	default:
		return nil, o.fail(ctx, req, qerrors.NewUnsupportedLanguageError(language))
	}
	observeStepDuration("build", time.Since(stepStart))

	if statusErr := o.status.SetStatus(ctx, req.ProjectID, projects.StatusParsed); statusErr != nil {
		return nil, o.fail(ctx, req, internalize(statusErr))
	}
	o.events.ProjectParsed(ctx, req.ProjectID, req.UserEmail)

	logger.Info("ingest.step.enrich")
	stepStart = time.Now()
	if enrichErr := o.enricher.EnrichProject(ctx, req.ProjectID); enrichErr != nil {
		return nil, o.fail(ctx, req, qerrors.NewEnrichmentError(req.ProjectID, enrichErr))
	}
	observeStepDuration("enrich", time.Since(stepStart))

	if statusErr := o.status.SetStatus(ctx, req.ProjectID, projects.StatusReady); statusErr != nil {
		return nil, o.fail(ctx, req, internalize(statusErr))
	}
	o.events.ProjectReady(ctx, req.ProjectID, req.UserEmail)
	o.enricher.LogGraphStats(ctx, req.ProjectID)

	recordRunSucceeded()
	observeStepDuration("total", time.Since(start))
	logger.Info("ingest.run.complete", "duration_ms", time.Since(start).Milliseconds())
	return &Result{Message: SuccessMessage, ProjectID: req.ProjectID}, nil
}

// buildAndPersist runs the graph-native build path. An empty node set gets
// exactly one rebuild before the run is declared failed; edges are inserted
// only after their nodes.
func (o *Orchestrator) buildAndPersist(ctx context.Context, projectID, dir, language string, logger *slog.Logger) error {
	nodes, edges, err := o.builder.BuildGraph(ctx, projectID, dir, language)
	if err != nil {
		return internalize(err)
	}
	if len(nodes) == 0 {
		logger.Warn("ingest.build.empty_rebuild")
		recordBuildRetry()
		nodes, edges, err = o.builder.BuildGraph(ctx, projectID, dir, language)
		if err != nil {
			return internalize(err)
		}
		if len(nodes) == 0 {
			return qerrors.NewBuildFailedError(projectID)
		}
	}

	if err := o.graph.CreateIndices(); err != nil {
		return internalize(err)
	}
	if err := o.graph.BulkInsertNodes(ctx, nodes); err != nil {
		return internalize(err)
	}
	if err := o.graph.BulkInsertEdges(ctx, edges); err != nil {
		return internalize(err)
	}
	recordGraphWritten(len(nodes), len(edges))
	logger.Info("ingest.build.complete", "nodes", len(nodes), "edges", len(edges))
	return nil
}

// fail drives the project to the error status, emits the error event and
// returns err unchanged. The status write uses an uncancelable context so a
// canceled run still lands on a terminal status.
func (o *Orchestrator) fail(ctx context.Context, req Request, err error) error {
	writeCtx := context.WithoutCancel(ctx)
	if statusErr := o.status.SetStatus(writeCtx, req.ProjectID, projects.StatusError); statusErr != nil {
		o.logger.Error("ingest.status.write_failed",
			"project_id", req.ProjectID,
			"status", projects.StatusError,
			"error", statusErr,
		)
	}
	o.events.ProjectError(writeCtx, req.ProjectID, req.UserEmail, err)
	recordRunFailed()
	o.logger.Error("ingest.run.failed", "project_id", req.ProjectID, "error", err)
	return err
}

// disposeWorkingTree removes the checked-out tree, but only when it lives
// under the storage root. Containment is checked with filepath.Rel, not a
// string prefix, so "/data-evil" can never pass for "/data".
func (o *Orchestrator) disposeWorkingTree(path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	absRoot, err := filepath.Abs(o.storageRoot)
	if err != nil {
		logger.Warn("ingest.worktree.dispose_skipped", "path", path, "error", err)
		return
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		logger.Warn("ingest.worktree.dispose_skipped", "path", path, "error", err)
		return
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		logger.Warn("ingest.worktree.dispose_skipped", "path", absPath, "root", absRoot)
		return
	}
	if err := os.RemoveAll(absPath); err != nil {
		logger.Warn("ingest.worktree.dispose_failed", "path", absPath, "error", err)
		return
	}
	logger.Info("ingest.worktree.disposed", "path", absPath)
}

// internalize passes typed errors through and wraps everything else as an
// internal error carrying the current stack.
func internalize(err error) error {
	var uerr *qerrors.UserError
	if stderrors.As(err, &uerr) {
		return err
	}
	return qerrors.NewInternalError(err.Error(), string(debug.Stack()), err)
}
