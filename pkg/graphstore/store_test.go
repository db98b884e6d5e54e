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

package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.CreateIndices())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBulkInsertAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	nodes := []Node{
		{ProjectID: "p1", ID: "n1", Name: "main.py", Kind: "file", FilePath: "main.py"},
		{ProjectID: "p1", ID: "n2", Name: "handler", Kind: "function", FilePath: "main.py", StartLine: 3, EndLine: 9},
	}
	edges := []Edge{
		{ProjectID: "p1", ID: "e1", SrcID: "n1", DstID: "n2", Kind: "defines"},
	}

	require.NoError(t, s.BulkInsertNodes(ctx, nodes))
	require.NoError(t, s.BulkInsertEdges(ctx, edges))

	stats, err := s.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.Edges)
	assert.Equal(t, 0, stats.Embeddings)
}

func TestBulkInsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	nodes := []Node{{ProjectID: "p1", ID: "n1", Name: "f", Kind: "function", FilePath: "a.py"}}
	require.NoError(t, s.BulkInsertNodes(ctx, nodes))
	require.NoError(t, s.BulkInsertNodes(ctx, nodes))

	stats, err := s.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Nodes)
}

func TestDeleteProjectSubgraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, pid := range []string{"p1", "p2"} {
		require.NoError(t, s.BulkInsertNodes(ctx, []Node{{ProjectID: pid, ID: "n1", Name: "f", Kind: "function", FilePath: "a.py"}}))
		require.NoError(t, s.BulkInsertEdges(ctx, []Edge{{ProjectID: pid, ID: "e1", SrcID: "n1", DstID: "n1", Kind: "calls"}}))
		require.NoError(t, s.SetEmbedding(ctx, pid, "n1", []float32{0.1, 0.2}))
	}

	require.NoError(t, s.DeleteProjectSubgraph(ctx, "p1"))

	gone, err := s.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, gone)

	kept, err := s.Stats(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, kept.Nodes)
	assert.Equal(t, 1, kept.Edges)
	assert.Equal(t, 1, kept.Embeddings)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BulkInsertNodes(ctx, []Node{
		{ProjectID: "p1", ID: "n1", Name: "f", Kind: "function", FilePath: "a.py", StartLine: 5, EndLine: 12, Docstring: "does things"},
		{ProjectID: "p1", ID: "n2", Name: "g", Kind: "function", FilePath: "b.py"},
	}))
	require.NoError(t, s.SetEmbedding(ctx, "p1", "n1", []float32{1, 0.5, -0.25}))
	require.NoError(t, s.SetEmbedding(ctx, "p1", "n2", []float32{0, 1, 0}))

	rows, err := s.EmbeddingRows(ctx, "p1", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	filtered, err := s.EmbeddingRows(ctx, "p1", []string{"n1"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "n1", filtered[0].NodeID)
	assert.Equal(t, "does things", filtered[0].Docstring)
	assert.Equal(t, "a.py", filtered[0].FilePath)
	assert.Equal(t, 5, filtered[0].StartLine)
	assert.Equal(t, []float32{1, 0.5, -0.25}, filtered[0].Vector)
}

func TestSetDocstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BulkInsertNodes(ctx, []Node{{ProjectID: "p1", ID: "n1", Name: "f", Kind: "function", FilePath: "a.py"}}))
	require.NoError(t, s.SetDocstring(ctx, "p1", "n1", "Parses the config file"))

	nodes, err := s.NodesForProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Parses the config file", nodes[0].Docstring)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // second close is a no-op

	err := s.BulkInsertNodes(context.Background(), []Node{{ProjectID: "p", ID: "n", Name: "f", Kind: "file", FilePath: "a"}})
	assert.Error(t, err)
}
