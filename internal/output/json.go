// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output provides utilities for consistent CLI output formatting.
//
// This package handles JSON encoding for machine-readable output, ensuring
// consistent formatting across all Quarry CLI commands. It complements the
// ui package (for human-readable output) and errors package (for error
// handling).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	qerrors "github.com/kraklabs/quarry/internal/errors"
)

// JSON writes data as pretty-printed JSON to stdout.
//
// The output is formatted with 2-space indentation for readability. This is
// the standard format for --json output in Quarry CLI commands.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as pretty-printed JSON to the specified writer.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// JSONCompact writes data as compact JSON to stdout, suitable for
// streaming output.
func JSONCompact(data any) error {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// JSONError writes an error as a structured JSON payload to stderr. Typed
// errors keep their cause, fix and exit code.
func JSONError(err error) error {
	return JSONErrorTo(os.Stderr, err)
}

// JSONErrorTo writes an error payload to the specified writer.
func JSONErrorTo(w io.Writer, err error) error {
	payload := qerrors.AsJSON(err)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(payload); encErr != nil {
		return fmt.Errorf("JSON error encoding failed: %w", encErr)
	}
	return nil
}
