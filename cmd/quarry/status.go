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
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kraklabs/quarry/internal/bootstrap"
	"github.com/kraklabs/quarry/internal/errors"
	"github.com/kraklabs/quarry/internal/output"
	"github.com/kraklabs/quarry/internal/ui"
)

// StatusResult represents the project status for JSON output.
type StatusResult struct {
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name"`
	RepoRef    string    `json:"repo_ref"`
	Branch     string    `json:"branch,omitempty"`
	Language   string    `json:"language,omitempty"`
	Status     string    `json:"status"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	Embeddings int       `json:"embeddings"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// runStatus executes the 'status' CLI command, displaying the project's
// lifecycle status and graph statistics.
//
// Flags:
//   - --json: Output results as JSON (default: false)
//
// Examples:
//
//	quarry status           Display formatted status
//	quarry status --json    Output as JSON for programmatic use
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry status [options]

Shows the project's lifecycle status and graph statistics.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	globals.JSON = *jsonOutput

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
			"Run 'quarry ingest' first to create them", err), globals.JSON)
	}
	defer func() { _ = ws.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	project, err := ws.Projects.GetProjectByRefForUser(ctx, cfg.Name, cfg.UserID)
	if err != nil {
		errors.FatalError(errors.NewNotFoundError(
			fmt.Sprintf("Project not found: %s", cfg.Name),
			"The project has not been ingested yet",
			"Run 'quarry ingest' first",
		), globals.JSON)
	}

	result := &StatusResult{
		ProjectID: project.ID,
		Name:      project.Name,
		RepoRef:   project.RepoRef,
		Branch:    project.Branch,
		Language:  project.Language,
		Status:    string(project.Status),
		Timestamp: time.Now(),
	}
	if stats, err := ws.Graph.Stats(ctx, project.ID); err == nil {
		result.Nodes = stats.Nodes
		result.Edges = stats.Edges
		result.Embeddings = stats.Embeddings
	} else {
		result.Error = err.Error()
	}

	if globals.JSON {
		if err := output.JSON(result); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	printStatus(result)
}

// printStatus renders the formatted status table.
func printStatus(r *StatusResult) {
	ui.Header("Quarry Project Status")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", ui.Label("Project:"), r.Name)
	fmt.Fprintf(w, "%s\t%s\n", ui.Label("ID:"), ui.DimText(r.ProjectID))
	fmt.Fprintf(w, "%s\t%s\n", ui.Label("Repository:"), r.RepoRef)
	if r.Branch != "" {
		fmt.Fprintf(w, "%s\t%s\n", ui.Label("Branch:"), r.Branch)
	}
	if r.Language != "" {
		fmt.Fprintf(w, "%s\t%s\n", ui.Label("Language:"), r.Language)
	}
	fmt.Fprintf(w, "%s\t%s\n", ui.Label("Status:"), r.Status)
	_ = w.Flush()

	fmt.Println()
	ui.SubHeader("Graph")
	w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%d\n", ui.Label("Nodes:"), r.Nodes)
	fmt.Fprintf(w, "%s\t%d\n", ui.Label("Edges:"), r.Edges)
	fmt.Fprintf(w, "%s\t%d\n", ui.Label("Embeddings:"), r.Embeddings)
	_ = w.Flush()

	if r.Error != "" {
		fmt.Println()
		ui.Warningf("Graph statistics unavailable: %s", r.Error)
	}
}
