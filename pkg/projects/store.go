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

// Package projects holds the durable record of each project and its
// lifecycle status. The ingestion orchestrator is the single writer of a
// project's status during a run; everything else is read-only metadata
// owned by whoever created the project.
package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Status is the lifecycle state of a project. The orchestrator only ever
// moves a project forward (parsed, then ready) or to error, which is
// reachable from any state.
type Status string

const (
	// StatusSubmitted is the state of a freshly created project record,
	// before any ingestion run has touched it.
	StatusSubmitted Status = "submitted"

	// StatusError is the terminal state of a failed ingestion run.
	StatusError Status = "error"

	// StatusParsed means the graph is built and persisted but not enriched.
	StatusParsed Status = "parsed"

	// StatusReady means the project is enriched and queryable.
	StatusReady Status = "ready"
)

// ErrNotFound is returned when a project reference does not resolve for the
// given user.
var ErrNotFound = errors.New("project not found")

// Project is one tracked ingestion target: a repository/branch pair with a
// durable lifecycle status.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	RepoRef   string    `json:"repo_ref"`
	Branch    string    `json:"branch"`
	Language  string    `json:"language"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists project records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the project database at path. Use ":memory:" for
// tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open project db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping project db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Migrate creates the projects table. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS projects (
  id          TEXT PRIMARY KEY,
  user_id     TEXT NOT NULL,
  name        TEXT NOT NULL DEFAULT '',
  repo_ref    TEXT NOT NULL,
  branch      TEXT NOT NULL DEFAULT '',
  language    TEXT NOT NULL DEFAULT '',
  status      TEXT NOT NULL,
  created_at  TIMESTAMP NOT NULL,
  updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id);
`)
	if err != nil {
		return fmt.Errorf("migrate projects: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new project record. A missing ID gets a fresh UUID and a
// missing status defaults to submitted. The passed struct is updated in
// place with the assigned fields.
func (s *Store) Create(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusSubmitted
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, user_id, name, repo_ref, branch, language, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.RepoRef, p.Branch, p.Language, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// SetStatus updates a project's lifecycle status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set status %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetLanguage records the detected dominant language.
func (s *Store) SetLanguage(ctx context.Context, id, language string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET language = ?, updated_at = ? WHERE id = ?`,
		language, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

// Get returns a project by id.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectProject+` WHERE id = ?`, id))
}

// GetProjectByRefForUser resolves a human-given reference (project id or
// name) to the canonical stored project, scoped to the requesting user.
// Returns ErrNotFound when nothing matches.
func (s *Store) GetProjectByRefForUser(ctx context.Context, ref, userID string) (*Project, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		selectProject+` WHERE user_id = ? AND (id = ? OR name = ?) LIMIT 1`, userID, ref, ref))
}

// List returns every project owned by userID, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, selectProject+` WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var status string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.RepoRef, &p.Branch, &p.Language, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Status = Status(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

const selectProject = `SELECT id, user_id, name, repo_ref, branch, language, status, created_at, updated_at FROM projects`

func (s *Store) scanOne(row *sql.Row) (*Project, error) {
	var p Project
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.RepoRef, &p.Branch, &p.Language, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Status = Status(status)
	return &p, nil
}
