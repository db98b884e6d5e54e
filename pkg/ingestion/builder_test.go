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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/quarry/pkg/graphstore"
)

// capturingGraphWriter records what the generic service stores.
type capturingGraphWriter struct {
	fakeGraphWriter
	nodes []graphstore.Node
	edges []graphstore.Edge
}

func (c *capturingGraphWriter) BulkInsertNodes(ctx context.Context, nodes []graphstore.Node) error {
	c.nodes = append(c.nodes, nodes...)
	return c.fakeGraphWriter.BulkInsertNodes(ctx, nodes)
}

func (c *capturingGraphWriter) BulkInsertEdges(ctx context.Context, edges []graphstore.Edge) error {
	c.edges = append(c.edges, edges...)
	return c.fakeGraphWriter.BulkInsertEdges(ctx, edges)
}

func TestCreateAndStoreGraph(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.go":        "package main\n\nfunc main() {}\n",
		"pkg/util.go":    "package pkg\n",
		"pkg/util_test.go": "package pkg\n",
		"README.md":      "# readme\n",
	})
	writer := &capturingGraphWriter{}
	svc := NewFileGraphService(writer, nil)

	require.NoError(t, svc.CreateAndStoreGraph(context.Background(), "p1", dir, "go"))

	byKind := nodesByKind(writer.nodes)
	fileNames := make([]string, 0)
	for _, n := range byKind["file"] {
		fileNames = append(fileNames, n.Name)
	}
	assert.ElementsMatch(t, []string{"main.go", "util.go", "util_test.go"}, fileNames, "only files of the project language become nodes")
	assert.NotEmpty(t, byKind["directory"])

	// every file hangs off a directory via contains
	targets := make(map[string]bool)
	for _, e := range writer.edges {
		assert.Equal(t, "contains", e.Kind)
		targets[e.DstID] = true
	}
	for _, n := range byKind["file"] {
		assert.True(t, targets[n.ID], "file %s has no contains edge", n.Name)
	}

	assert.Equal(t, []string{"indices", "nodes", "edges"}, writer.ops, "nodes are stored before edges")
}

func TestCreateAndStoreGraphEmptyLanguageMatch(t *testing.T) {
	dir := writeTree(t, map[string]string{"README.md": "# readme\n"})
	writer := &capturingGraphWriter{}
	svc := NewFileGraphService(writer, nil)

	require.NoError(t, svc.CreateAndStoreGraph(context.Background(), "p1", dir, "go"))
	byKind := nodesByKind(writer.nodes)
	assert.Empty(t, byKind["file"])
}
