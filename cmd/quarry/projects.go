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
)

// runProjects executes the 'projects' CLI command, listing every project
// registered for the configured user.
//
// Flags:
//   - --json: Output results as JSON (default: false)
func runProjects(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("projects", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry projects [options]

Lists the user's projects with their lifecycle status.

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

	list, err := ws.Projects.List(ctx, cfg.UserID)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot list projects", err.Error(),
			"Check the project store", err), globals.JSON)
	}

	if globals.JSON {
		if err := output.JSON(list); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if len(list) == 0 {
		fmt.Println("No projects yet. Run 'quarry ingest' to create one.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tLANGUAGE\tREPOSITORY\tUPDATED")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Name, p.Status, p.Language, p.RepoRef, p.UpdatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
