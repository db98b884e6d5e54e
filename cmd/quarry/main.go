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

// Package main implements the Quarry CLI for ingesting repositories into a
// code knowledge graph and querying it with natural-language questions.
//
// Usage:
//
//	quarry init                    Create .quarry/project.yaml configuration
//	quarry ingest                  Ingest the configured repository
//	quarry query --question "..."  Fan a batch of questions out over the graph
//	quarry status [--json]         Show project status and graph statistics
//	quarry projects                List the user's projects
//	quarry reset --yes             Drop the project's graph (destructive!)
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kraklabs/quarry/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags carries the options every command respects.
type GlobalFlags struct {
	// JSON switches command output to machine-readable JSON.
	JSON bool

	// Quiet suppresses progress output. Implied by JSON.
	Quiet bool

	// NoColor disables colored terminal output.
	NoColor bool

	// Verbose raises the log level: 0 warn, 1 info, 2+ debug.
	Verbose int
}

// newLogger builds the process logger honoring the verbosity flags.
func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// main is the entry point for the Quarry CLI.
//
// It parses global flags and dispatches to command handlers.
//
// Global flags:
//   - --version: Display version information and exit
//   - --config: Path to .quarry/project.yaml configuration file
//   - --no-color: Disable colored output
//   - -q: Suppress progress output
//   - -v: Increase log verbosity (repeatable via -v=2)
//
// Commands:
//   - init: Create .quarry/project.yaml configuration
//   - ingest: Clone, parse, persist and enrich the configured repository
//   - query: Fan a batch of questions out over the vector index
//   - status: Show project status and graph statistics
//   - projects: List the user's projects
//   - reset: Drop the project's graph data (destructive!)
func main() {
	// Global flags
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .quarry/project.yaml (default: ./.quarry/project.yaml)")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		quiet       = flag.Bool("q", false, "Suppress progress output")
		verbose     = flag.Int("v", 0, "Log verbosity (0 warn, 1 info, 2 debug)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Quarry - Code Knowledge Graph

Quarry ingests source repositories into a queryable code knowledge
graph: it clones, detects the dominant language, parses definitions
and call relationships, and enriches every node with a generated
docstring and an embedding. Batches of natural-language questions
are answered concurrently against the resulting vector index.

Usage:
  quarry <command> [options]

Commands:
  init      Create .quarry/project.yaml configuration
  ingest    Ingest the configured repository into the graph
  query     Answer a batch of questions against the graph
  status    Show project status and graph statistics
  projects  List the user's projects
  reset     Drop the project's graph data (destructive!)

Global Options:
  --config      Path to .quarry/project.yaml
  --no-color    Disable colored output
  --version     Show version and exit
  -q            Suppress progress output
  -v            Log verbosity (0 warn, 1 info, 2 debug)

Examples:
  quarry init                                Create configuration interactively
  quarry ingest                              Ingest the configured repository
  quarry ingest --branch develop             Ingest a specific branch
  quarry query --question "Where is auth?"   Ask one question
  quarry query --question q1 --question q2   Ask a batch concurrently
  quarry status --json                       Output status as JSON
  quarry reset --yes                         Drop the project's graph

Getting Started:
  1. Initialize configuration:  quarry init
  2. Ingest your repository:    quarry ingest
  3. Check ingestion status:    quarry status
  4. Query the graph:           quarry query --question "..."

Data Storage:
  Data is stored locally in ~/.quarry (override with QUARRY_HOME).

Environment Variables:
  QUARRY_HOME                Storage root (default: ~/.quarry)
  QUARRY_MAX_BATCH_QUESTIONS Per-batch question cap (default: 64)
  OLLAMA_HOST                Ollama URL (default: http://localhost:11434)
  OLLAMA_EMBED_MODEL         Embedding model (default: nomic-embed-text)

For detailed command help: quarry <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("quarry version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	globals := GlobalFlags{
		Quiet:   *quiet,
		NoColor: *noColor,
		Verbose: *verbose,
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "ingest":
		runIngest(cmdArgs, *configPath, globals)
	case "query":
		runQuery(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "projects":
		runProjects(cmdArgs, *configPath, globals)
	case "reset":
		runReset(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
