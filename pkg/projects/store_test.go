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

package projects

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAssignsIDAndStatus(t *testing.T) {
	s := newTestStore(t)
	p := &Project{UserID: "u1", Name: "demo", RepoRef: "https://example.com/demo.git", Branch: "main"}
	require.NoError(t, s.Create(context.Background(), p))

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, StatusSubmitted, p.Status)

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, StatusSubmitted, got.Status)
}

func TestSetStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := &Project{UserID: "u1", RepoRef: "ref"}
	require.NoError(t, s.Create(ctx, p))

	require.NoError(t, s.SetStatus(ctx, p.ID, StatusParsed))
	require.NoError(t, s.SetStatus(ctx, p.ID, StatusReady))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, got.Status)
}

func TestSetStatusUnknownProject(t *testing.T) {
	s := newTestStore(t)
	err := s.SetStatus(context.Background(), "missing", StatusError)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetProjectByRefForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mine := &Project{UserID: "u1", Name: "demo", RepoRef: "ref"}
	require.NoError(t, s.Create(ctx, mine))
	other := &Project{UserID: "u2", Name: "demo", RepoRef: "ref"}
	require.NoError(t, s.Create(ctx, other))

	byID, err := s.GetProjectByRefForUser(ctx, mine.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, mine.ID, byID.ID)

	byName, err := s.GetProjectByRefForUser(ctx, "demo", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.UserID)

	_, err = s.GetProjectByRefForUser(ctx, mine.ID, "u3")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &Project{UserID: "u1", Name: "a", RepoRef: "r"}))
	require.NoError(t, s.Create(ctx, &Project{UserID: "u1", Name: "b", RepoRef: "r"}))
	require.NoError(t, s.Create(ctx, &Project{UserID: "u2", Name: "c", RepoRef: "r"}))

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
