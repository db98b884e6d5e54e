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

package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/quarry/internal/bootstrap"
	"github.com/kraklabs/quarry/internal/errors"
	"github.com/kraklabs/quarry/internal/output"
	"github.com/kraklabs/quarry/internal/ui"
	"github.com/kraklabs/quarry/pkg/enrich"
	"github.com/kraklabs/quarry/pkg/ingestion"
	"github.com/kraklabs/quarry/pkg/llm"
	"github.com/kraklabs/quarry/pkg/projects"
)

// runIngest executes the 'ingest' CLI command: it acquires the configured
// repository, builds its code graph, and enriches every node with a
// docstring and an embedding.
//
// Flags:
//   - --json: Output the result as JSON (default: false)
//   - --branch: Override the configured branch
//   - --cleanup-graph: Delete stale graph entities before building (default: true)
//   - --timeout: Total pipeline timeout (default: 30m)
//   - --metrics-addr: Serve Prometheus metrics on this address while running
//
// Examples:
//
//	quarry ingest
//	quarry ingest --branch develop
//	quarry ingest --json --metrics-addr :9095
func runIngest(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	branch := fs.String("branch", "", "Override the configured branch")
	cleanupGraph := fs.Bool("cleanup-graph", true, "Delete stale graph entities before building")
	timeout := fs.Duration("timeout", 30*time.Minute, "Total pipeline timeout")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry ingest [options]

Ingests the configured repository: clone or copy, detect the dominant
language, parse definitions and calls into the graph, then generate a
docstring and an embedding for every node. On success the project is
ready for querying.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  quarry ingest
  quarry ingest --branch develop
  quarry ingest --cleanup-graph=false
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	globals.JSON = *jsonOutput
	if globals.JSON {
		globals.Quiet = true
	}

	logger := newLogger(globals)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	root, err := bootstrap.DefaultStorageRoot()
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot resolve the storage root", err.Error(),
			"Set QUARRY_HOME to a writable directory", err), globals.JSON)
	}
	ws, err := bootstrap.Open(bootstrap.Config{StorageRoot: root}, logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open the local stores", err.Error(),
			"Check that the storage root is writable and not locked", err), globals.JSON)
	}
	defer func() { _ = ws.Close() }()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("ingest.metrics.serve_failed", "addr", *metricsAddr, "error", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	project, err := findOrCreateProject(ctx, ws.Projects, cfg, *branch)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot record the project", err.Error(),
			"Check the project store and re-run the ingestion", err), globals.JSON)
	}

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Type:         cfg.Provider.Type,
		BaseURL:      cfg.Provider.BaseURL,
		DefaultModel: cfg.Provider.Model,
		Timeout:      cfg.Provider.Timeout(),
	})
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot create the docstring provider", err.Error(),
			"Check the provider section of .quarry/project.yaml", err), globals.JSON)
	}
	embedder, err := enrich.NewEmbeddingProvider(cfg.Provider.Embedder, logger)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot create the embedding provider", err.Error(),
			"Check the embedder field of .quarry/project.yaml", err), globals.JSON)
	}

	var engineOpts []enrich.Option
	if cfg.Workers > 0 {
		engineOpts = append(engineOpts, enrich.WithWorkers(cfg.Workers))
	}
	if cfg.TopK > 0 {
		engineOpts = append(engineOpts, enrich.WithTopK(cfg.TopK))
	}
	engine := enrich.NewEngine(ws.Graph, provider, embedder, logger, engineOpts...)

	acquirer := ingestion.NewGitAcquirer(ws.StorageRoot, logger)
	defer func() { _ = acquirer.Close() }()

	orch := ingestion.NewOrchestrator(
		acquirer,
		ingestion.NewTreeSitterBuilder(logger),
		ingestion.NewFileGraphService(ws.Graph, logger),
		ws.Graph,
		ws.Projects,
		engine,
		nil,
		ws.StorageRoot,
		logger,
	)

	progress := NewProgressConfig(globals)
	spinner := NewSpinner(progress, fmt.Sprintf("Ingesting %s", cfg.Repo))

	result, runErr := orch.Run(ctx, ingestion.Request{
		ProjectID:    project.ID,
		RepoRef:      cfg.Repo,
		Branch:       project.Branch,
		UserID:       cfg.UserID,
		UserEmail:    cfg.UserEmail,
		CleanupGraph: *cleanupGraph,
	})
	if spinner != nil {
		_ = spinner.Finish()
	}
	if runErr != nil {
		errors.FatalError(runErr, globals.JSON)
	}

	if globals.JSON {
		if err := output.JSON(result); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	ui.Success(result.Message)
	if stats, err := ws.Graph.Stats(ctx, project.ID); err == nil {
		fmt.Printf("Graph: %d nodes, %d edges, %d embeddings\n",
			stats.Nodes, stats.Edges, stats.Embeddings)
	}
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  quarry status                       Inspect the graph")
	fmt.Println("  quarry query --question \"...\"       Ask about the code")
}

// findOrCreateProject resolves the configured project or registers it on
// first ingestion. A branch override updates the request only, not the
// stored record.
func findOrCreateProject(ctx context.Context, store *projects.Store, cfg *Config, branchOverride string) (*projects.Project, error) {
	branch := cfg.Branch
	if branchOverride != "" {
		branch = branchOverride
	}

	project, err := store.GetProjectByRefForUser(ctx, cfg.Name, cfg.UserID)
	if err == nil {
		if branchOverride != "" {
			project.Branch = branchOverride
		}
		return project, nil
	}
	if !stderrors.Is(err, projects.ErrNotFound) {
		return nil, err
	}

	project = &projects.Project{
		UserID:  cfg.UserID,
		Name:    cfg.Name,
		RepoRef: cfg.Repo,
		Branch:  branch,
	}
	if err := store.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}
