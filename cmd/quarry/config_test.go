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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kraklabs/quarry/internal/errors"
)

func TestConfigSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".quarry", "project.yaml")

	cfg := &Config{
		Name:      "demo",
		Repo:      "https://github.com/acme/demo",
		Branch:    "main",
		UserID:    "u1",
		UserEmail: "dev@example.com",
		Provider: ProviderSettings{
			Type:           "mock",
			Embedder:       "mock",
			TimeoutSeconds: 45,
		},
		Workers: 8,
		TopK:    5,
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Name != "demo" || loaded.Repo != cfg.Repo || loaded.Branch != "main" {
		t.Errorf("LoadConfig() = %+v, want round-tripped values", loaded)
	}
	if loaded.Provider.Type != "mock" || loaded.Provider.Embedder != "mock" {
		t.Errorf("provider settings lost: %+v", loaded.Provider)
	}
	if got := loaded.Provider.Timeout(); got != 45*time.Second {
		t.Errorf("Timeout() = %v, want 45s", got)
	}
	if loaded.Workers != 8 || loaded.TopK != 5 {
		t.Errorf("tuning fields lost: workers=%d topK=%d", loaded.Workers, loaded.TopK)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() should fail for a missing file")
	}
	ue, ok := err.(*errors.UserError)
	if !ok {
		t.Fatalf("LoadConfig() error type = %T, want *errors.UserError", err)
	}
	if ue.ExitCode != errors.ExitConfig {
		t.Errorf("ExitCode = %d, want %d", ue.ExitCode, errors.ExitConfig)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(path, []byte("name: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() should fail for invalid YAML")
	}
}

func TestLoadConfigRequiresName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(path, []byte("repo: /tmp/repo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() should reject a config without a name")
	}
}

func TestLoadConfigDefaultsUserID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(path, []byte("name: demo\nrepo: /tmp/repo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.UserID != "local" {
		t.Errorf("UserID = %q, want default \"local\"", cfg.UserID)
	}
}
