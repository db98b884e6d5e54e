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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/quarry/pkg/graphstore"
	"github.com/kraklabs/quarry/pkg/languages"
)

// TreeSitterBuilder builds a structural code graph for the graph-native
// language set using Tree-sitter grammars.
//
// Extracted per file:
//   - one file node
//   - function and class nodes with line spans and source text
//   - contains edges (file -> definition, class -> method)
//   - calls edges between functions defined in the same file
type TreeSitterBuilder struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewTreeSitterBuilder creates a builder. Files above 1 MiB are skipped;
// generated bundles that large drown the graph in noise.
func NewTreeSitterBuilder(logger *slog.Logger) *TreeSitterBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TreeSitterBuilder{maxFileSize: 1 << 20, logger: logger}
}

// grammarFor maps a language name to its Tree-sitter grammar and the AST
// node types that become graph nodes.
func grammarFor(language string) (*sitter.Language, map[string]string, string, error) {
	switch language {
	case "python":
		return python.GetLanguage(), map[string]string{
			"function_definition": "function",
			"class_definition":    "class",
		}, "call", nil
	case "javascript":
		return javascript.GetLanguage(), map[string]string{
			"function_declaration": "function",
			"method_definition":    "function",
			"class_declaration":    "class",
		}, "call_expression", nil
	case "typescript":
		return typescript.GetLanguage(), map[string]string{
			"function_declaration": "function",
			"method_definition":    "function",
			"class_declaration":    "class",
		}, "call_expression", nil
	default:
		return nil, nil, "", fmt.Errorf("no grammar for language %q", language)
	}
}

// BuildGraph parses every source file of the language under dir and returns
// the resulting nodes and edges. It never stores anything.
func (b *TreeSitterBuilder) BuildGraph(ctx context.Context, projectID, dir, language string) ([]graphstore.Node, []graphstore.Edge, error) {
	grammar, defKinds, callType, err := grammarFor(language)
	if err != nil {
		return nil, nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	var nodes []graphstore.Node
	var edges []graphstore.Edge
	fileCount := 0

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__") {
				return filepath.SkipDir
			}
			return nil
		}
		if languages.ForExtension(path) != language {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > b.maxFileSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			b.logger.Warn("build.file.unreadable", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}

		fileNodes, fileEdges, err := b.parseFile(ctx, parser, projectID, rel, content, defKinds, callType)
		if err != nil {
			b.logger.Warn("build.file.parse_failed", "path", rel, "error", err)
			return nil
		}
		nodes = append(nodes, fileNodes...)
		edges = append(edges, fileEdges...)
		fileCount++
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	b.logger.Info("build.graph.extracted",
		"project_id", projectID,
		"language", language,
		"files", fileCount,
		"nodes", len(nodes),
		"edges", len(edges),
	)
	return nodes, edges, nil
}

// parseFile extracts the graph slice of one source file.
func (b *TreeSitterBuilder) parseFile(ctx context.Context, parser *sitter.Parser, projectID, relPath string, content []byte, defKinds map[string]string, callType string) ([]graphstore.Node, []graphstore.Edge, error) {
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	lineCount := strings.Count(string(content), "\n") + 1

	fileNode := graphstore.Node{
		ProjectID: projectID,
		ID:        nodeID(projectID, relPath, "file", relPath, 1),
		Name:      filepath.Base(relPath),
		Kind:      "file",
		FilePath:  relPath,
		StartLine: 1,
		EndLine:   lineCount,
	}
	nodes := []graphstore.Node{fileNode}
	var edges []graphstore.Edge

	// name -> node id for same-file call resolution
	funcIDs := make(map[string]string)

	var walk func(n *sitter.Node, parentID string)
	walk = func(n *sitter.Node, parentID string) {
		if n == nil {
			return
		}
		ownerID := parentID

		if kind, ok := defKinds[n.Type()]; ok {
			name := definitionName(n, content)
			if name != "" {
				startLine := int(n.StartPoint().Row) + 1
				endLine := int(n.EndPoint().Row) + 1
				id := nodeID(projectID, relPath, kind, name, startLine)
				nodes = append(nodes, graphstore.Node{
					ProjectID: projectID,
					ID:        id,
					Name:      name,
					Kind:      kind,
					FilePath:  relPath,
					StartLine: startLine,
					EndLine:   endLine,
					Text:      string(content[n.StartByte():n.EndByte()]),
				})
				edgeKind := "contains"
				if kind == "function" && parentID != fileNode.ID {
					edgeKind = "defines"
				}
				edges = append(edges, graphstore.Edge{
					ProjectID: projectID,
					ID:        edgeID(parentID, id, edgeKind),
					SrcID:     parentID,
					DstID:     id,
					Kind:      edgeKind,
				})
				if kind == "function" {
					funcIDs[name] = id
				}
				ownerID = id
			}
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), ownerID)
		}
	}
	walk(root, fileNode.ID)

	edges = append(edges, b.extractCalls(root, content, projectID, relPath, fileNode.ID, callType, defKinds, funcIDs)...)
	return nodes, edges, nil
}

// extractCalls emits a calls edge for every call expression whose callee
// resolves to a function defined in the same file.
func (b *TreeSitterBuilder) extractCalls(root *sitter.Node, content []byte, projectID, relPath, fileID, callType string, defKinds map[string]string, funcIDs map[string]string) []graphstore.Edge {
	var edges []graphstore.Edge
	seen := make(map[string]bool)

	var walk func(n *sitter.Node, callerID string)
	walk = func(n *sitter.Node, callerID string) {
		if n == nil {
			return
		}
		ownerID := callerID

		if kind, ok := defKinds[n.Type()]; ok && kind == "function" {
			if name := definitionName(n, content); name != "" {
				if id, ok := funcIDs[name]; ok {
					ownerID = id
				}
			}
		}

		if n.Type() == callType {
			if callee := calleeName(n, content); callee != "" {
				if calleeID, ok := funcIDs[callee]; ok && calleeID != ownerID {
					id := edgeID(ownerID, calleeID, "calls")
					if !seen[id] {
						seen[id] = true
						edges = append(edges, graphstore.Edge{
							ProjectID: projectID,
							ID:        id,
							SrcID:     ownerID,
							DstID:     calleeID,
							Kind:      "calls",
						})
					}
				}
			}
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), ownerID)
		}
	}
	walk(root, fileID)
	return edges
}

// definitionName returns the identifier of a definition node.
func definitionName(n *sitter.Node, content []byte) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return string(content[nameNode.StartByte():nameNode.EndByte()])
}

// calleeName returns the called identifier of a call node. Attribute and
// member calls resolve to their last path segment.
func calleeName(n *sitter.Node, content []byte) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	name := string(content[fn.StartByte():fn.EndByte()])
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

func nodeID(projectID, path, kind, name string, line int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s:%d", projectID, path, kind, name, line)))
	return hex.EncodeToString(sum[:16])
}

func edgeID(src, dst, kind string) string {
	sum := sha256.Sum256([]byte(src + ":" + dst + ":" + kind))
	return hex.EncodeToString(sum[:16])
}
