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

// Package graphstore persists the code knowledge graph.
//
// Nodes (files, functions, classes), relationship edges and per-node
// embeddings live in SQLite, every row tagged with the owning project id so
// a whole project subgraph can be dropped in one transaction. The store
// supports bulk insertion in node-then-edge order and the indexed lookups
// the enrichment engine needs.
package graphstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Node is a single graph entity produced by a graph builder.
type Node struct {
	ProjectID string
	ID        string
	Name      string
	Kind      string // "file", "function", "class"
	FilePath  string
	StartLine int
	EndLine   int
	Text      string
	Docstring string
}

// Edge is a directed relationship between two nodes of the same project.
type Edge struct {
	ProjectID string
	ID        string
	SrcID     string
	DstID     string
	Kind      string // "defines", "contains", "calls", "imports"
}

// EmbeddingRow joins a stored embedding with its node metadata, as needed
// by vector-index queries.
type EmbeddingRow struct {
	NodeID    string
	Docstring string
	FilePath  string
	StartLine int
	EndLine   int
	Vector    []float32
}

// Stats summarizes a project's subgraph.
type Stats struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Embeddings int `json:"embeddings"`
}

// Store is a SQLite-backed property graph.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the graph database at path. Use ":memory:" for
// tests. WAL mode and a busy timeout make concurrent ingestion runs for
// different projects safe against each other.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open graph db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping graph db: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY on bulk loads.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
  project_id  TEXT NOT NULL,
  node_id     TEXT NOT NULL,
  name        TEXT NOT NULL,
  kind        TEXT NOT NULL,
  file_path   TEXT NOT NULL,
  start_line  INTEGER NOT NULL DEFAULT 0,
  end_line    INTEGER NOT NULL DEFAULT 0,
  text        TEXT NOT NULL DEFAULT '',
  docstring   TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (project_id, node_id)
);

CREATE TABLE IF NOT EXISTS edges (
  project_id  TEXT NOT NULL,
  edge_id     TEXT NOT NULL,
  src_id      TEXT NOT NULL,
  dst_id      TEXT NOT NULL,
  kind        TEXT NOT NULL,
  PRIMARY KEY (project_id, edge_id)
);

CREATE TABLE IF NOT EXISTS node_embeddings (
  project_id  TEXT NOT NULL,
  node_id     TEXT NOT NULL,
  vector      BLOB NOT NULL,
  PRIMARY KEY (project_id, node_id)
);
`

// Migrate creates the node, edge and embedding tables. Idempotent.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("graph store is closed")
	}
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate graph schema: %w", err)
	}
	return nil
}

// CreateIndices creates the lookup indexes used by enrichment and queries.
// Idempotent and safe to call before every ingestion run.
func (s *Store) CreateIndices() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("graph store is closed")
	}
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_nodes_project ON nodes(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(project_id, file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_project ON edges(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(project_id, src_id)`,
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// BulkInsertNodes inserts a batch of nodes in one transaction. Existing rows
// with the same id are replaced, so rebuilding a project is idempotent.
func (s *Store) BulkInsertNodes(ctx context.Context, nodes []Node) error {
	if len(nodes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("graph store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert nodes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO nodes (project_id, node_id, name, kind, file_path, start_line, end_line, text, docstring)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert nodes: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		if _, err := stmt.ExecContext(ctx, n.ProjectID, n.ID, n.Name, n.Kind, n.FilePath, n.StartLine, n.EndLine, n.Text, n.Docstring); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit nodes: %w", err)
	}
	return nil
}

// BulkInsertEdges inserts a batch of edges in one transaction. Callers must
// insert the endpoint nodes first; edges reference nodes by identity.
func (s *Store) BulkInsertEdges(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("graph store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert edges: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO edges (project_id, edge_id, src_id, dst_id, kind) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert edges: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.ProjectID, e.ID, e.SrcID, e.DstID, e.Kind); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert edge %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edges: %w", err)
	}
	return nil
}

// DeleteProjectSubgraph removes every node, edge and embedding tagged with
// projectID in a single transaction.
func (s *Store) DeleteProjectSubgraph(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("graph store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete subgraph: %w", err)
	}
	for _, table := range []string{"node_embeddings", "edges", "nodes"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE project_id = ?", table), projectID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete subgraph: %w", err)
	}
	return nil
}

// NodesForProject returns every node of the project ordered by file path
// and start line.
func (s *Store) NodesForProject(ctx context.Context, projectID string) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("graph store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, node_id, name, kind, file_path, start_line, end_line, text, docstring
		 FROM nodes WHERE project_id = ? ORDER BY file_path, start_line`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ProjectID, &n.ID, &n.Name, &n.Kind, &n.FilePath, &n.StartLine, &n.EndLine, &n.Text, &n.Docstring); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// SetDocstring writes the generated summary for one node.
func (s *Store) SetDocstring(ctx context.Context, projectID, nodeID, docstring string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("graph store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET docstring = ? WHERE project_id = ? AND node_id = ?`, docstring, projectID, nodeID)
	if err != nil {
		return fmt.Errorf("set docstring: %w", err)
	}
	return nil
}

// SetEmbedding upserts the embedding vector for one node.
func (s *Store) SetEmbedding(ctx context.Context, projectID, nodeID string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("graph store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO node_embeddings (project_id, node_id, vector) VALUES (?, ?, ?)`,
		projectID, nodeID, encodeVector(vector))
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return nil
}

// EmbeddingRows returns the embeddings of a project joined with node
// metadata. When nodeIDs is non-empty only those nodes are returned; the
// filter is applied exactly as given.
func (s *Store) EmbeddingRows(ctx context.Context, projectID string, nodeIDs []string) ([]EmbeddingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("graph store is closed")
	}

	query := `SELECT e.node_id, n.docstring, n.file_path, n.start_line, n.end_line, e.vector
		 FROM node_embeddings e JOIN nodes n ON n.project_id = e.project_id AND n.node_id = e.node_id
		 WHERE e.project_id = ?`
	args := []any{projectID}
	if len(nodeIDs) > 0 {
		query += " AND e.node_id IN (?" + strings.Repeat(",?", len(nodeIDs)-1) + ")"
		for _, id := range nodeIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var r EmbeddingRow
		var blob []byte
		if err := rows.Scan(&r.NodeID, &r.Docstring, &r.FilePath, &r.StartLine, &r.EndLine, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		r.Vector = decodeVector(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats returns node/edge/embedding counts for a project.
func (s *Store) Stats(ctx context.Context, projectID string) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("graph store is closed")
	}

	stats := &Stats{}
	counts := []struct {
		table string
		dst   *int
	}{
		{"nodes", &stats.Nodes},
		{"edges", &stats.Edges},
		{"node_embeddings", &stats.Embeddings},
	}
	for _, c := range counts {
		row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE project_id = ?", c.table), projectID)
		if err := row.Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return stats, nil
}

// Close closes the database. Subsequent calls are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// encodeVector packs float32 values as little-endian bytes for BLOB storage.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a BLOB written by encodeVector.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
