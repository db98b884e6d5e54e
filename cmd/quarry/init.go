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
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// initFlags holds the parsed flags for the init command.
type initFlags struct {
	name     string
	repo     string
	branch   string
	userID   string
	email    string
	provider string
	embedder string
	force    bool
}

// parseInitFlags parses the init command's flags.
func parseInitFlags(args []string) *initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	f := &initFlags{}

	fs.StringVar(&f.name, "name", "", "Project name (default: current directory name)")
	fs.StringVar(&f.repo, "repo", "", "Repository URL or local path (default: current directory)")
	fs.StringVar(&f.branch, "branch", "", "Branch to ingest (default: remote default)")
	fs.StringVar(&f.userID, "user", "local", "User ID owning the project")
	fs.StringVar(&f.email, "email", "", "Email for lifecycle notifications")
	fs.StringVar(&f.provider, "provider", "ollama", "Docstring provider: ollama, openai, mock")
	fs.StringVar(&f.embedder, "embedder", "ollama", "Embedding provider: ollama, mock")
	fs.BoolVar(&f.force, "force", false, "Overwrite an existing configuration")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry init [options]

Creates .quarry/project.yaml configuration file.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  quarry init
  quarry init --name payments --repo https://github.com/acme/payments
  quarry init --provider mock --embedder mock
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

// runInit executes the 'init' CLI command, creating a .quarry/project.yaml
// configuration file.
func runInit(args []string) {
	f := parseInitFlags(args)

	if _, err := os.Stat(DefaultConfigPath); err == nil && !f.force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", DefaultConfigPath)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(1)
	}

	name := f.name
	if name == "" {
		name = filepath.Base(cwd)
	}
	repo := f.repo
	if repo == "" {
		repo = cwd
	}

	cfg := &Config{
		Name:      name,
		Repo:      repo,
		Branch:    f.branch,
		UserID:    f.userID,
		UserEmail: f.email,
		Provider: ProviderSettings{
			Type:     f.provider,
			Embedder: f.embedder,
		},
	}

	if err := cfg.Save(DefaultConfigPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot write configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s for project %q\n", DefaultConfigPath, name)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .quarry/project.yaml if needed")
	fmt.Println("  2. Run 'quarry ingest' to build the knowledge graph")
	fmt.Println("  3. Run 'quarry query --question \"...\"' to ask about the code")
}
