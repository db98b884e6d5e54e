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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupGraphStoreAndSeed(t *testing.T) {
	store := SetupGraphStore(t)
	nodes := SeedNodes(t, store, "p1", 3)
	require.Len(t, nodes, 3)

	stored, err := store.NodesForProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestSetupProjectStoreAndSeed(t *testing.T) {
	store := SetupProjectStore(t)
	p := SeedProject(t, store, "u1", "demo")
	assert.NotEmpty(t, p.ID)

	got, err := store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
}
