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

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

// TestUserError_Error verifies the error interface implementation.
func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err: &UserError{
				Message: "Cannot acquire repository",
				Err:     fmt.Errorf("exit status 128"),
			},
			want: "Cannot acquire repository: exit status 128",
		},
		{
			name: "without underlying error",
			err: &UserError{
				Message: "Repository doesn't consist of a language currently supported",
			},
			want: "Repository doesn't consist of a language currently supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("UserError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestUserError_Unwrap verifies errors.Is works through the chain.
func TestUserError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	ue := NewAcquisitionError("https://example.com/repo.git", underlying)

	if !stderrors.Is(ue, underlying) {
		t.Errorf("errors.Is should find the underlying error through Unwrap")
	}
}

// TestExitCodes verifies each constructor maps to its documented category.
func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want int
	}{
		{"acquisition", NewAcquisitionError("ref", nil), ExitNetwork},
		{"unsupported language", NewUnsupportedLanguageError("cobol"), ExitParse},
		{"build failed", NewBuildFailedError("p1"), ExitParse},
		{"cleanup graph", NewCleanupGraphError("p1", nil), ExitInternal},
		{"enrichment", NewEnrichmentError("p1", nil), ExitParse},
		{"not found", NewNotFoundError("Project not found", "", ""), ExitNotFound},
		{"internal", NewInternalError("boom", "stack", nil), ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.ExitCode != tt.want {
				t.Errorf("ExitCode = %d, want %d", tt.err.ExitCode, tt.want)
			}
		})
	}
}

// TestIsParseFailure verifies the parsing-class / internal-class split.
func TestIsParseFailure(t *testing.T) {
	if !IsParseFailure(NewBuildFailedError("p1")) {
		t.Error("build failure should be a parse failure")
	}
	if !IsParseFailure(NewUnsupportedLanguageError("cobol")) {
		t.Error("unsupported language should be a parse failure")
	}
	if IsParseFailure(NewCleanupGraphError("p1", nil)) {
		t.Error("cleanup-graph failure is an internal error, not a parse failure")
	}
	if IsParseFailure(fmt.Errorf("plain error")) {
		t.Error("plain errors are not parse failures")
	}
	if !IsParseFailure(fmt.Errorf("enrich project: %w", NewEnrichmentError("p1", stderrors.New("boom")))) {
		t.Error("a wrapped parse failure should still be recognized")
	}
	if IsParseFailure(fmt.Errorf("cleanup: %w", NewCleanupGraphError("p1", nil))) {
		t.Error("a wrapped internal error is still not a parse failure")
	}
}

// TestBuildFailedError_MessageCarriesProjectID verifies the surfaced message
// includes the project id for operability.
func TestBuildFailedError_MessageCarriesProjectID(t *testing.T) {
	err := NewBuildFailedError("proj-42")
	if !strings.Contains(err.Message, "proj-42") {
		t.Errorf("message %q should contain the project id", err.Message)
	}
}

// TestFormat_NoColor verifies the three-section layout without colors.
func TestFormat_NoColor(t *testing.T) {
	err := &UserError{
		Message: "Cannot acquire repository",
		Cause:   "Connection timed out",
		Fix:     "Check your network",
	}

	got := err.Format(true)
	for _, want := range []string{"Error: Cannot acquire repository", "Cause: Connection timed out", "Fix:   Check your network"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format output missing %q:\n%s", want, got)
		}
	}
}

// TestAsJSON verifies payload conversion for both error kinds.
func TestAsJSON(t *testing.T) {
	if AsJSON(nil) != nil {
		t.Error("nil error should produce nil payload")
	}

	j := AsJSON(NewNotFoundError("Project not found", "no match for ref", ""))
	if j.Error != "Project not found" || j.ExitCode != ExitNotFound {
		t.Errorf("unexpected payload: %+v", j)
	}

	j = AsJSON(fmt.Errorf("plain"))
	if j.ExitCode != ExitInternal {
		t.Errorf("plain errors should map to ExitInternal, got %d", j.ExitCode)
	}
}
