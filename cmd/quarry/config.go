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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/quarry/internal/errors"
)

// DefaultConfigPath is where LoadConfig looks when no --config is given.
const DefaultConfigPath = ".quarry/project.yaml"

// ProviderSettings configures the docstring and embedding providers.
type ProviderSettings struct {
	// Type selects the docstring provider: ollama, openai or mock.
	Type string `yaml:"type"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the default generation model.
	Model string `yaml:"model,omitempty"`

	// Embedder selects the embedding provider: ollama or mock.
	Embedder string `yaml:"embedder,omitempty"`

	// TimeoutSeconds bounds individual provider calls.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// Config is the per-project configuration stored in .quarry/project.yaml.
type Config struct {
	// Name identifies the project. The query command resolves it per user.
	Name string `yaml:"name"`

	// Repo is the git URL or local path to ingest.
	Repo string `yaml:"repo"`

	// Branch to clone. Empty means the remote default.
	Branch string `yaml:"branch,omitempty"`

	// UserID scopes project lookups.
	UserID string `yaml:"user_id"`

	// UserEmail receives lifecycle event notifications.
	UserEmail string `yaml:"user_email,omitempty"`

	// Provider configures docstring and embedding generation.
	Provider ProviderSettings `yaml:"provider,omitempty"`

	// Workers is the enrichment concurrency. Zero means the default.
	Workers int `yaml:"workers,omitempty"`

	// TopK is how many matches a question returns. Zero means the default.
	TopK int `yaml:"top_k,omitempty"`
}

// Timeout returns the configured provider timeout or zero for the default.
func (p ProviderSettings) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// LoadConfig reads the project configuration. A .env file next to the
// config (or in the working directory) is loaded first so the yaml can be
// kept free of credentials.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	// Best effort: secrets live in .env, missing file is fine.
	_ = godotenv.Load(filepath.Join(filepath.Dir(filepath.Dir(path)), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigError(
				fmt.Sprintf("Configuration not found at %s", path),
				"The project has not been initialized in this directory",
				"Run 'quarry init' to create the configuration",
				err,
			)
		}
		return nil, errors.NewConfigError(
			fmt.Sprintf("Cannot read configuration at %s", path),
			err.Error(),
			"Check the file permissions",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError(
			fmt.Sprintf("Invalid configuration at %s", path),
			err.Error(),
			"Fix the YAML syntax or re-run 'quarry init'",
			err,
		)
	}

	if cfg.Name == "" {
		return nil, errors.NewConfigError(
			"Configuration is missing the project name",
			fmt.Sprintf("No 'name' field in %s", path),
			"Add a name or re-run 'quarry init'",
			nil,
		)
	}
	if cfg.UserID == "" {
		cfg.UserID = "local"
	}
	return &cfg, nil
}

// SaveConfig writes the configuration, creating the .quarry directory.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultConfigPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
