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
	"log/slog"
)

// EventSink receives project lifecycle events. Implementations are
// best-effort: they never return errors and must not fail the run.
type EventSink interface {
	ProjectParsed(ctx context.Context, projectID, userEmail string)
	ProjectReady(ctx context.Context, projectID, userEmail string)
	ProjectError(ctx context.Context, projectID, userEmail string, cause error)
}

// LogEventSink writes lifecycle events to the structured log.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates a logging event sink.
func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) ProjectParsed(ctx context.Context, projectID, userEmail string) {
	s.logger.InfoContext(ctx, "event.project.parsed", "project_id", projectID, "user", userEmail)
}

func (s *LogEventSink) ProjectReady(ctx context.Context, projectID, userEmail string) {
	s.logger.InfoContext(ctx, "event.project.ready", "project_id", projectID, "user", userEmail)
}

func (s *LogEventSink) ProjectError(ctx context.Context, projectID, userEmail string, cause error) {
	s.logger.InfoContext(ctx, "event.project.error", "project_id", projectID, "user", userEmail, "cause", cause)
}
