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
	"time"

	"github.com/kraklabs/quarry/internal/bootstrap"
	"github.com/kraklabs/quarry/internal/errors"
	"github.com/kraklabs/quarry/pkg/projects"
)

// runReset executes the 'reset' CLI command, deleting the project's graph
// entities and returning it to the submitted state so the next ingestion
// starts from a clean slate.
func runReset(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry reset [options]

Deletes the project's graph nodes, edges and embeddings, and returns
the project to the submitted state. Useful before a full re-ingestion.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		fmt.Fprintf(os.Stderr, "Error: you must pass --yes to confirm the reset\n")
		fmt.Fprintf(os.Stderr, "This will delete all graph data for the project.\n")
		os.Exit(1)
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	project, err := ws.Projects.GetProjectByRefForUser(ctx, cfg.Name, cfg.UserID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No project found for %s, nothing to reset\n", cfg.Name)
		os.Exit(0)
	}

	fmt.Printf("Resetting project %s (deleting its graph)...\n", project.Name)

	if err := ws.Graph.DeleteProjectSubgraph(ctx, project.ID); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Failed to delete the project's graph", err.Error(),
			"Check the graph store and retry", err), globals.JSON)
	}
	if err := ws.Projects.SetStatus(ctx, project.ID, projects.StatusSubmitted); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Failed to reset the project status", err.Error(),
			"Check the project store and retry", err), globals.JSON)
	}

	fmt.Println("Reset complete. All graph data has been deleted.")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  quarry ingest    Re-ingest the repository")
}
