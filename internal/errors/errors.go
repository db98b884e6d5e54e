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

// Package errors provides structured error handling for the Quarry pipeline.
//
// It defines UserError, a type that carries what went wrong, why it happened,
// and how to fix it, together with a semantic exit code. The ingestion
// orchestrator and the query fan-out build their whole failure taxonomy on
// these constructors:
//
//   - NewAcquisitionError          repository not reachable or clonable
//   - NewUnsupportedLanguageError  detected language outside every supported set
//   - NewBuildFailedError          graph construction produced no nodes twice
//   - NewCleanupGraphError         stale-subgraph deletion failed (internal class)
//   - NewEnrichmentError           docstring/embedding generation failed
//   - NewNotFoundError             project reference did not resolve
//   - NewInternalError             anything else; Cause carries a stack trace
//
// Parsing-class failures (unsupported language, empty graph, enrichment) are
// distinguishable from internal/infrastructure failures via IsParseFailure.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitConfig indicates configuration errors (missing/invalid config files).
	ExitConfig = 1

	// ExitDatabase indicates graph-store or project-store errors.
	ExitDatabase = 2

	// ExitNetwork indicates network errors: clone failures, provider APIs.
	ExitNetwork = 3

	// ExitInput indicates invalid user input (bad arguments, empty batch).
	ExitInput = 4

	// ExitParse indicates a parsing-class failure: unsupported language,
	// empty graph after retry, or enrichment failure. The project ends in
	// status "error" but the condition is expected and typed.
	ExitParse = 5

	// ExitNotFound indicates a resource not found (project, node).
	ExitNotFound = 6

	// ExitInternal indicates internal errors (bugs, unexpected panics).
	// Exit code 10 signals "this is a bug that should be reported".
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong
//   - Cause: why it happened (diagnostic detail, stack trace for internal errors)
//   - Fix: how to resolve it
//
// UserError carries an exit code for consistent CLI behavior and optionally
// wraps an underlying error for errors.Is/As compatibility.
type UserError struct {
	// Message describes what went wrong in user-facing language.
	Message string

	// Cause explains why the error occurred.
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration error with exit code ExitConfig.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitConfig, Err: err}
}

// NewDatabaseError creates a store error with exit code ExitDatabase.
//
// Use this for graph-store or project-store failures that are not part of
// the typed pipeline taxonomy (locked file, failed transaction).
func NewDatabaseError(msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitDatabase, Err: err}
}

// NewAcquisitionError creates an error for a repository that could not be
// cloned or copied. Fatal for the run, no retry at this layer.
func NewAcquisitionError(repoRef string, err error) *UserError {
	return &UserError{
		Message:  fmt.Sprintf("Cannot acquire repository %q", repoRef),
		Cause:    "The repository could not be cloned or copied to a working directory",
		Fix:      "Check the repository URL/path, branch name, and your network access",
		ExitCode: ExitNetwork,
		Err:      err,
	}
}

// NewUnsupportedLanguageError creates an error for a repository whose
// dominant language is outside every supported set. The project is left in
// status "error" and no graph construction is attempted.
func NewUnsupportedLanguageError(language string) *UserError {
	return &UserError{
		Message:  "Repository doesn't consist of a language currently supported",
		Cause:    fmt.Sprintf("Detected dominant language %q", language),
		Fix:      "Supported: python, javascript, typescript (graph-native) and common generic languages",
		ExitCode: ExitParse,
	}
}

// NewBuildFailedError creates an error for graph construction that produced
// zero nodes twice in a row for the given project.
func NewBuildFailedError(projectID string) *UserError {
	return &UserError{
		Message:  fmt.Sprintf("Project: %s Failed to build graph", projectID),
		Cause:    "Graph construction returned an empty node set on two consecutive attempts",
		Fix:      "Verify the repository contains parseable source files for the detected language",
		ExitCode: ExitParse,
	}
}

// NewCleanupGraphError creates an error for a failed pre-build deletion of
// stale graph entities. Classified as internal/infrastructure, distinct from
// parsing failures: the run must not proceed on top of stale data.
func NewCleanupGraphError(projectID string, err error) *UserError {
	return &UserError{
		Message:  "Internal server error",
		Cause:    fmt.Sprintf("Cleanup of the existing subgraph for project %s failed", projectID),
		Fix:      "Check graph store health and re-run the ingestion",
		ExitCode: ExitInternal,
		Err:      err,
	}
}

// NewEnrichmentError creates an error for failed docstring/embedding
// generation. The project is recorded in status "error"; the failure is
// surfaced as a typed parsing-class condition on every language branch.
func NewEnrichmentError(projectID string, err error) *UserError {
	return &UserError{
		Message:  fmt.Sprintf("Project: %s Failed to enrich graph", projectID),
		Cause:    "Docstring or embedding generation failed for the project's nodes",
		Fix:      "Check the enrichment provider configuration and re-run the ingestion",
		ExitCode: ExitParse,
		Err:      err,
	}
}

// NewNotFoundError creates a resource not found error with exit code ExitNotFound.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitNotFound}
}

// NewInputError creates an input validation error with exit code ExitInput.
func NewInputError(msg, cause, fix string) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitInput}
}

// NewInternalError creates an internal error with exit code ExitInternal.
//
// The orchestrator puts a captured stack trace into cause so unexpected
// failures stay diagnosable after the working directory is gone.
func NewInternalError(msg, cause string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      "This is a bug. Please report it at github.com/kraklabs/quarry/issues",
		ExitCode: ExitInternal,
		Err:      err,
	}
}

// IsParseFailure reports whether err is, or wraps, a typed parsing-class
// failure (unsupported language, empty graph after retry, enrichment
// failure), as opposed to an internal or infrastructure error.
func IsParseFailure(err error) bool {
	var ue *UserError
	return stderrors.As(err, &ue) && ue.ExitCode == ExitParse
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output has colored sections for Error (red/bold), Cause (yellow) and
// Fix (green). Color respects the NO_COLOR environment variable and the
// noColor parameter. Empty Cause or Fix fields are omitted.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
//
// The query fan-out returns this as its structured error payload: batch
// callers always receive a value, never a raised error.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// AsJSON converts any error into an ErrorJSON payload. Non-UserError values
// map to the internal category.
func AsJSON(err error) *ErrorJSON {
	if err == nil {
		return nil
	}
	if ue, ok := err.(*UserError); ok {
		j := ue.ToJSON()
		return &j
	}
	return &ErrorJSON{Error: err.Error(), ExitCode: ExitInternal}
}

// FatalError prints the error and exits with the appropriate code.
//
// If the error is a UserError, it uses Format() for colored output or
// ToJSON() for JSON mode. For other error types it prints a simple message
// and exits with ExitInternal. This function never returns.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			// Encode error is intentionally ignored since we're about to exit.
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
