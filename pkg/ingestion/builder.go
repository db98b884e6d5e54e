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

package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/quarry/pkg/graphstore"
	"github.com/kraklabs/quarry/pkg/languages"
)

// FileGraphService is the delegate build path for generic supported
// languages: a file-level graph (file and directory nodes, containment
// edges) built and stored in one call. It has no per-symbol structure, so
// there is no empty-graph rebuild on this path.
type FileGraphService struct {
	graph       GraphWriter
	maxFileSize int64
	logger      *slog.Logger
}

// NewFileGraphService creates the generic graph service writing through the
// given graph writer.
func NewFileGraphService(graph GraphWriter, logger *slog.Logger) *FileGraphService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileGraphService{graph: graph, maxFileSize: 1 << 20, logger: logger}
}

// CreateAndStoreGraph builds the file-level graph for dir and persists it.
func (s *FileGraphService) CreateAndStoreGraph(ctx context.Context, projectID, dir, language string) error {
	var nodes []graphstore.Node
	var edges []graphstore.Edge
	dirIDs := make(map[string]string)

	rootID := nodeID(projectID, ".", "directory", ".", 1)
	nodes = append(nodes, graphstore.Node{
		ProjectID: projectID,
		ID:        rootID,
		Name:      ".",
		Kind:      "directory",
		FilePath:  ".",
	})
	dirIDs["."] = rootID

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__" {
				return filepath.SkipDir
			}
			id := nodeID(projectID, rel, "directory", name, 1)
			nodes = append(nodes, graphstore.Node{
				ProjectID: projectID,
				ID:        id,
				Name:      name,
				Kind:      "directory",
				FilePath:  rel,
			})
			dirIDs[rel] = id
			edges = append(edges, containsEdge(projectID, dirIDs, rel, id))
			return nil
		}
		if languages.ForExtension(path) != language {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > s.maxFileSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("build.file.unreadable", "path", rel, "error", err)
			return nil
		}
		id := nodeID(projectID, rel, "file", name, 1)
		nodes = append(nodes, graphstore.Node{
			ProjectID: projectID,
			ID:        id,
			Name:      name,
			Kind:      "file",
			FilePath:  rel,
			StartLine: 1,
			EndLine:   strings.Count(string(content), "\n") + 1,
			Text:      capText(string(content), 4000),
		})
		edges = append(edges, containsEdge(projectID, dirIDs, rel, id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk repository: %w", err)
	}

	if err := s.graph.CreateIndices(); err != nil {
		return err
	}
	if err := s.graph.BulkInsertNodes(ctx, nodes); err != nil {
		return err
	}
	if err := s.graph.BulkInsertEdges(ctx, edges); err != nil {
		return err
	}
	recordGraphWritten(len(nodes), len(edges))
	s.logger.Info("build.generic.complete",
		"project_id", projectID,
		"language", language,
		"nodes", len(nodes),
		"edges", len(edges),
	)
	return nil
}

// containsEdge links an entry to its parent directory node.
func containsEdge(projectID string, dirIDs map[string]string, rel, id string) graphstore.Edge {
	parent := filepath.Dir(rel)
	parentID, ok := dirIDs[parent]
	if !ok {
		parentID = dirIDs["."]
	}
	return graphstore.Edge{
		ProjectID: projectID,
		ID:        edgeID(parentID, id, "contains"),
		SrcID:     parentID,
		DstID:     id,
		Kind:      "contains",
	}
}

func capText(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
