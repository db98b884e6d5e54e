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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/kraklabs/quarry/internal/errors"
	"github.com/kraklabs/quarry/pkg/graphstore"
	"github.com/kraklabs/quarry/pkg/projects"
)

type fakeAcquirer struct {
	acq   *Acquisition
	err   error
	calls int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, repoRef, branch string) (*Acquisition, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.acq, nil
}

type fakeBuilder struct {
	// perCall holds the node sets returned by successive BuildGraph calls;
	// the last entry repeats.
	perCall [][]graphstore.Node
	edges   []graphstore.Edge
	err     error
	calls   int
}

func (f *fakeBuilder) BuildGraph(ctx context.Context, projectID, dir, language string) ([]graphstore.Node, []graphstore.Edge, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.perCall) {
		idx = len(f.perCall) - 1
	}
	return f.perCall[idx], f.edges, nil
}

type fakeGeneric struct {
	err   error
	calls int
}

func (f *fakeGeneric) CreateAndStoreGraph(ctx context.Context, projectID, dir, language string) error {
	f.calls++
	return f.err
}

type fakeGraphWriter struct {
	ops       []string
	deleted   []string
	deleteErr error
	insertErr error
}

func (f *fakeGraphWriter) DeleteProjectSubgraph(ctx context.Context, projectID string) error {
	f.ops = append(f.ops, "delete")
	f.deleted = append(f.deleted, projectID)
	return f.deleteErr
}

func (f *fakeGraphWriter) CreateIndices() error {
	f.ops = append(f.ops, "indices")
	return nil
}

func (f *fakeGraphWriter) BulkInsertNodes(ctx context.Context, nodes []graphstore.Node) error {
	f.ops = append(f.ops, "nodes")
	return f.insertErr
}

func (f *fakeGraphWriter) BulkInsertEdges(ctx context.Context, edges []graphstore.Edge) error {
	f.ops = append(f.ops, "edges")
	return nil
}

type fakeStatus struct {
	statuses []projects.Status
	langs    []string
}

func (f *fakeStatus) SetStatus(ctx context.Context, id string, status projects.Status) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStatus) SetLanguage(ctx context.Context, id, language string) error {
	f.langs = append(f.langs, language)
	return nil
}

type fakeEnricher struct {
	err   error
	calls int
}

func (f *fakeEnricher) EnrichProject(ctx context.Context, projectID string) error {
	f.calls++
	return f.err
}

func (f *fakeEnricher) LogGraphStats(ctx context.Context, projectID string) {}

type fakeEvents struct {
	parsed, ready, failed int
}

func (f *fakeEvents) ProjectParsed(ctx context.Context, projectID, userEmail string) { f.parsed++ }
func (f *fakeEvents) ProjectReady(ctx context.Context, projectID, userEmail string)  { f.ready++ }
func (f *fakeEvents) ProjectError(ctx context.Context, projectID, userEmail string, cause error) {
	f.failed++
}

// harness bundles the fakes around an orchestrator with a real temp root.
type harness struct {
	root     *Orchestrator
	rootDir  string
	acquirer *fakeAcquirer
	builder  *fakeBuilder
	generic  *fakeGeneric
	graph    *fakeGraphWriter
	status   *fakeStatus
	enricher *fakeEnricher
	events   *fakeEvents
}

func someNodes(n int) []graphstore.Node {
	nodes := make([]graphstore.Node, n)
	for i := range nodes {
		nodes[i] = graphstore.Node{ProjectID: "p1", ID: fmt.Sprintf("n%d", i), Kind: "function"}
	}
	return nodes
}

// newHarness sets up a run over a real working tree inside the storage root
// with the given language breakdown.
func newHarness(t *testing.T, breakdown map[string]int64) *harness {
	t.Helper()
	rootDir := t.TempDir()
	worktree := filepath.Join(rootDir, "worktrees", "wt1")
	require.NoError(t, os.MkdirAll(worktree, 0o755))

	h := &harness{
		rootDir:  rootDir,
		acquirer: &fakeAcquirer{acq: &Acquisition{Path: worktree, Breakdown: breakdown}},
		builder:  &fakeBuilder{perCall: [][]graphstore.Node{someNodes(3)}},
		generic:  &fakeGeneric{},
		graph:    &fakeGraphWriter{},
		status:   &fakeStatus{},
		enricher: &fakeEnricher{},
		events:   &fakeEvents{},
	}
	h.root = NewOrchestrator(h.acquirer, h.builder, h.generic, h.graph, h.status, h.enricher, h.events, rootDir, nil)
	return h
}

func testRequest() Request {
	return Request{ProjectID: "p1", RepoRef: "https://example.com/repo.git", UserID: "u1", UserEmail: "dev@example.com", CleanupGraph: true}
}

func TestRunSuccess(t *testing.T) {
	h := newHarness(t, map[string]int64{"python": 100})

	res, err := h.root.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, SuccessMessage, res.Message)
	assert.Equal(t, "p1", res.ProjectID)
	assert.Equal(t, 1, h.builder.calls)
	assert.Equal(t, []string{"delete", "indices", "nodes", "edges"}, h.graph.ops)
	assert.Equal(t, []projects.Status{projects.StatusParsed, projects.StatusReady}, h.status.statuses)
	assert.Equal(t, []string{"python"}, h.status.langs)
	assert.Equal(t, 1, h.events.parsed)
	assert.Equal(t, 1, h.events.ready)
	assert.Zero(t, h.events.failed)
	assert.Equal(t, 1, h.enricher.calls)
	assert.NoDirExists(t, h.acquirer.acq.Path)
}

func TestRunRebuildsEmptyGraphOnce(t *testing.T) {
	h := newHarness(t, map[string]int64{"python": 100})
	h.builder.perCall = [][]graphstore.Node{nil, someNodes(2)}

	res, err := h.root.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, SuccessMessage, res.Message)
	assert.Equal(t, 2, h.builder.calls)
}

func TestRunBuildFailedAfterOneRebuild(t *testing.T) {
	h := newHarness(t, map[string]int64{"python": 100})
	h.builder.perCall = [][]graphstore.Node{nil}

	_, err := h.root.Run(context.Background(), testRequest())
	require.Error(t, err)

	assert.Equal(t, 2, h.builder.calls, "empty graph gets exactly one rebuild")
	assert.True(t, qerrors.IsParseFailure(err))
	assert.Contains(t, err.Error(), "p1")
	assert.NotContains(t, h.graph.ops, "nodes")
	assert.Equal(t, []projects.Status{projects.StatusError}, h.status.statuses)
	assert.Equal(t, 1, h.events.failed)
	assert.NoDirExists(t, h.acquirer.acq.Path)
}

func TestRunUnsupportedLanguage(t *testing.T) {
	h := newHarness(t, map[string]int64{"cobol": 100})

	_, err := h.root.Run(context.Background(), testRequest())
	require.Error(t, err)

	var uerr *qerrors.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, uerr.Message, "supported")
	assert.Zero(t, h.builder.calls)
	assert.Zero(t, h.generic.calls)
	assert.NotContains(t, h.graph.ops, "nodes")
	assert.NotContains(t, h.graph.ops, "indices")
	assert.Equal(t, []projects.Status{projects.StatusError}, h.status.statuses)
	assert.NoDirExists(t, h.acquirer.acq.Path)
}

func TestRunGenericLanguageDelegates(t *testing.T) {
	h := newHarness(t, map[string]int64{"go": 5000})

	res, err := h.root.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, SuccessMessage, res.Message)
	assert.Equal(t, 1, h.generic.calls)
	assert.Zero(t, h.builder.calls, "graph-native builder stays out of the generic path")
	assert.Equal(t, []projects.Status{projects.StatusParsed, projects.StatusReady}, h.status.statuses)
}

func TestRunCleanupGraphFailureStopsEverything(t *testing.T) {
	h := newHarness(t, map[string]int64{"python": 100})
	h.graph.deleteErr = fmt.Errorf("db locked")

	_, err := h.root.Run(context.Background(), testRequest())
	require.Error(t, err)

	var uerr *qerrors.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, qerrors.ExitInternal, uerr.ExitCode)
	assert.Zero(t, h.acquirer.calls, "acquisition never starts after a failed cleanup")
	assert.Equal(t, []projects.Status{projects.StatusError}, h.status.statuses,
		"a failed cleanup still lands on the error status")
	assert.Equal(t, 1, h.events.failed)
}

func TestRunCleanupGraphSkippedWhenDisabled(t *testing.T) {
	h := newHarness(t, map[string]int64{"python": 100})
	req := testRequest()
	req.CleanupGraph = false

	_, err := h.root.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, h.graph.deleted)
}

func TestRunAcquisitionFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.acquirer.err = fmt.Errorf("remote hung up")

	_, err := h.root.Run(context.Background(), testRequest())
	require.Error(t, err)

	var uerr *qerrors.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, qerrors.ExitNetwork, uerr.ExitCode)
	assert.Equal(t, []projects.Status{projects.StatusError}, h.status.statuses)
	assert.Equal(t, 1, h.events.failed)
}

func TestRunEnrichmentFailure(t *testing.T) {
	h := newHarness(t, map[string]int64{"python": 100})
	h.enricher.err = fmt.Errorf("provider down")

	_, err := h.root.Run(context.Background(), testRequest())
	require.Error(t, err)

	var uerr *qerrors.UserError
	require.ErrorAs(t, err, &uerr)
	assert.ErrorIs(t, err, h.enricher.err)
	// parsed was reached, ready was not
	assert.Equal(t, []projects.Status{projects.StatusParsed, projects.StatusError}, h.status.statuses)
	assert.Equal(t, 1, h.events.parsed)
	assert.Zero(t, h.events.ready)
	assert.Equal(t, 1, h.events.failed)
	assert.NoDirExists(t, h.acquirer.acq.Path)
}

func TestRunEnrichmentFailureGenericBranch(t *testing.T) {
	h := newHarness(t, map[string]int64{"java": 100})
	h.enricher.err = fmt.Errorf("provider down")

	_, err := h.root.Run(context.Background(), testRequest())
	require.Error(t, err)

	var uerr *qerrors.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, []projects.Status{projects.StatusParsed, projects.StatusError}, h.status.statuses)
}

func TestRunDetectsLanguageWithoutBreakdown(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(h.acquirer.acq.Path, "main.py"), []byte("x = 1\n"), 0o644))

	res, err := h.root.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, SuccessMessage, res.Message)
	assert.Equal(t, []string{"python"}, h.status.langs)
}

func TestRunKeepsWorkingTreeOutsideStorageRoot(t *testing.T) {
	h := newHarness(t, map[string]int64{"python": 100})
	outside := t.TempDir()
	h.acquirer.acq.Path = outside

	_, err := h.root.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.DirExists(t, outside, "disposal never crosses the storage root boundary")
}

func TestRunNeverRemovesStorageRootItself(t *testing.T) {
	h := newHarness(t, map[string]int64{"python": 100})
	h.acquirer.acq.Path = h.rootDir

	_, err := h.root.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.DirExists(t, h.rootDir)
}
