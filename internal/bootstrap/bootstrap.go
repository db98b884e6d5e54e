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

package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/quarry/pkg/graphstore"
	"github.com/kraklabs/quarry/pkg/projects"
)

// Config holds configuration for opening a workspace.
type Config struct {
	// StorageRoot is the directory holding all Quarry data: the graph
	// database, the project database and transient working trees.
	// Defaults to ~/.quarry, overridable with QUARRY_HOME.
	StorageRoot string
}

// Workspace bundles the open stores over one storage root.
type Workspace struct {
	StorageRoot string
	Graph       *graphstore.Store
	Projects    *projects.Store
}

// DefaultStorageRoot resolves the storage root: QUARRY_HOME when set,
// otherwise ~/.quarry.
func DefaultStorageRoot() (string, error) {
	if root := os.Getenv("QUARRY_HOME"); root != "" {
		return root, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".quarry"), nil
}

// Open opens (and on first use initializes) the workspace under the storage
// root. Idempotent: the schema migrations are no-ops once applied.
//
// Layout under the root:
//
//	graph.db      SQLite property graph (nodes, edges, embeddings)
//	projects.db   SQLite project records
//	worktrees/    transient repository checkouts
func Open(config Config, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}

	root := config.StorageRoot
	if root == "" {
		var err error
		root, err = DefaultStorageRoot()
		if err != nil {
			return nil, err
		}
	}

	logger.Info("bootstrap.workspace.open", "storage_root", root)

	if err := os.MkdirAll(filepath.Join(root, "worktrees"), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	graph, err := graphstore.Open(filepath.Join(root, "graph.db"))
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	if err := graph.Migrate(); err != nil {
		_ = graph.Close()
		return nil, fmt.Errorf("migrate graph store: %w", err)
	}

	projectStore, err := projects.Open(filepath.Join(root, "projects.db"))
	if err != nil {
		_ = graph.Close()
		return nil, fmt.Errorf("open project store: %w", err)
	}
	if err := projectStore.Migrate(); err != nil {
		_ = graph.Close()
		_ = projectStore.Close()
		return nil, fmt.Errorf("migrate project store: %w", err)
	}

	logger.Info("bootstrap.workspace.ready", "storage_root", root)
	return &Workspace{StorageRoot: root, Graph: graph, Projects: projectStore}, nil
}

// Close closes both stores, returning the first error.
func (w *Workspace) Close() error {
	var firstErr error
	if err := w.Graph.Close(); err != nil {
		firstErr = err
	}
	if err := w.Projects.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
