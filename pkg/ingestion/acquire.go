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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/kraklabs/quarry/pkg/languages"
)

var (
	// validGitURLPattern matches valid git URLs (https, ssh, file)
	validGitURLPattern = regexp.MustCompile(`^(https?://|git@|ssh://|file://)[\w.\-@:/%]+$`)

	// dangerousCharsPattern matches characters that could be used for command injection
	dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r\\]`)
)

// GitAcquirer checks repositories out into working trees under the storage
// root. Git URLs are cloned shallowly; local paths are copied so the
// original tree is never touched by later disposal.
type GitAcquirer struct {
	storageRoot string
	logger      *slog.Logger

	mu        sync.Mutex
	worktrees []string
}

// NewGitAcquirer creates an acquirer placing working trees under
// <storageRoot>/worktrees.
func NewGitAcquirer(storageRoot string, logger *slog.Logger) *GitAcquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitAcquirer{storageRoot: storageRoot, logger: logger}
}

// Acquire checks repoRef out into a fresh working tree and computes its
// language breakdown. repoRef is a git URL or a local directory path.
func (a *GitAcquirer) Acquire(ctx context.Context, repoRef, branch string) (*Acquisition, error) {
	dir, err := a.newWorktreeDir()
	if err != nil {
		return nil, err
	}

	if isGitURL(repoRef) {
		err = a.clone(ctx, repoRef, branch, dir)
	} else {
		err = a.copyLocal(repoRef, dir)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	breakdown, err := languages.Breakdown(dir)
	if err != nil {
		a.logger.Warn("acquire.breakdown_failed", "dir", dir, "error", err)
		breakdown = nil
	}

	a.mu.Lock()
	a.worktrees = append(a.worktrees, dir)
	a.mu.Unlock()

	return &Acquisition{Path: dir, Breakdown: breakdown}, nil
}

// Close removes any working trees still on disk. Safe to call after the
// orchestrator disposed them.
func (a *GitAcquirer) Close() error {
	a.mu.Lock()
	dirs := a.worktrees
	a.worktrees = nil
	a.mu.Unlock()

	var firstErr error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *GitAcquirer) newWorktreeDir() (string, error) {
	nonce := make([]byte, 6)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("worktree nonce: %w", err)
	}
	dir := filepath.Join(a.storageRoot, "worktrees", hex.EncodeToString(nonce))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create worktree dir: %w", err)
	}
	return dir, nil
}

func isGitURL(ref string) bool {
	for _, prefix := range []string{"http://", "https://", "git@", "ssh://", "file://"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}

// clone runs a shallow git clone into dir. The URL is validated first to
// prevent command injection.
func (a *GitAcquirer) clone(ctx context.Context, gitURL, branch, dir string) error {
	if err := validateGitURL(gitURL); err != nil {
		return fmt.Errorf("invalid git URL: %w", err)
	}
	if branch != "" && dangerousCharsPattern.MatchString(branch) {
		return fmt.Errorf("branch contains dangerous characters")
	}

	args := []string{"clone", "--depth", "1", "--quiet"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, gitURL, dir)

	// #nosec G204 - gitURL and branch are validated above
	cmd := exec.CommandContext(ctx, "git", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	logURL := sanitizeURLForLog(gitURL)
	a.logger.Info("acquire.clone.start", "url", logURL, "branch", branch, "dir", dir)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	a.logger.Info("acquire.clone.success", "url", logURL, "dir", dir)
	return nil
}

// validateGitURL validates a git URL to prevent command injection.
func validateGitURL(gitURL string) error {
	if gitURL == "" {
		return fmt.Errorf("git URL is empty")
	}
	if dangerousCharsPattern.MatchString(gitURL) {
		return fmt.Errorf("git URL contains dangerous characters")
	}

	if strings.HasPrefix(gitURL, "http://") || strings.HasPrefix(gitURL, "https://") {
		parsed, err := url.Parse(gitURL)
		if err != nil {
			return fmt.Errorf("invalid URL format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("git URL missing host")
		}
		if parsed.User != nil {
			if _, hasPassword := parsed.User.Password(); hasPassword {
				return fmt.Errorf("git URL should not contain embedded password")
			}
		}
		return nil
	}

	if strings.HasPrefix(gitURL, "git@") || strings.HasPrefix(gitURL, "ssh://") {
		if !validGitURLPattern.MatchString(gitURL) {
			return fmt.Errorf("invalid SSH git URL format")
		}
		return nil
	}

	if strings.HasPrefix(gitURL, "file://") {
		return nil
	}

	return fmt.Errorf("unsupported git URL protocol: must be https://, git@, ssh://, or file://")
}

// sanitizeURLForLog hides credentials and query params (token carriers).
func sanitizeURLForLog(gitURL string) string {
	parsed, err := url.Parse(gitURL)
	if err != nil {
		return gitURL
	}
	parsed.RawQuery = ""
	if parsed.User != nil {
		parsed.User = url.User("***")
	}
	return parsed.String()
}

// copyLocal copies a local source tree into dir, skipping VCS metadata.
func (a *GitAcquirer) copyLocal(src, dir string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("local repository: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local repository %s is not a directory", src)
	}

	a.logger.Info("acquire.copy.start", "src", src, "dir", dir)
	err = filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && rel != "." {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dir, rel), 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, filepath.Join(dir, rel))
	})
	if err != nil {
		return fmt.Errorf("copy local repository: %w", err)
	}
	a.logger.Info("acquire.copy.success", "src", src, "dir", dir)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
