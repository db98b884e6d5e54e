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

package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/kraklabs/quarry/pkg/graphstore"
	"github.com/kraklabs/quarry/pkg/projects"
)

// SetupGraphStore creates an in-memory graph store with the schema applied.
// The store is closed when the test finishes.
func SetupGraphStore(t *testing.T) *graphstore.Store {
	t.Helper()

	store, err := graphstore.Open(":memory:")
	if err != nil {
		t.Fatalf("open graph store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate graph store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SetupProjectStore creates an in-memory project store with the schema
// applied. The store is closed when the test finishes.
func SetupProjectStore(t *testing.T) *projects.Store {
	t.Helper()

	store, err := projects.Open(":memory:")
	if err != nil {
		t.Fatalf("open project store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate project store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedNodes inserts count function nodes for a project and returns them.
// Node ids are seed-0, seed-1, ...
func SeedNodes(t *testing.T, store *graphstore.Store, projectID string, count int) []graphstore.Node {
	t.Helper()

	nodes := make([]graphstore.Node, count)
	for i := range nodes {
		nodes[i] = graphstore.Node{
			ProjectID: projectID,
			ID:        fmt.Sprintf("seed-%d", i),
			Name:      fmt.Sprintf("fn%d", i),
			Kind:      "function",
			FilePath:  "seed.py",
			StartLine: i*10 + 1,
			EndLine:   i*10 + 5,
			Text:      fmt.Sprintf("def fn%d(): pass", i),
		}
	}
	if err := store.BulkInsertNodes(context.Background(), nodes); err != nil {
		t.Fatalf("seed nodes: %v", err)
	}
	return nodes
}

// SeedProject creates a project for userID and returns it.
func SeedProject(t *testing.T, store *projects.Store, userID, name string) *projects.Project {
	t.Helper()

	p := &projects.Project{UserID: userID, Name: name, RepoRef: "https://example.com/" + name + ".git"}
	if err := store.Create(context.Background(), p); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}
