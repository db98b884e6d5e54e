// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultMaxBatchQuestions is the baseline cap on questions per batch.
	DefaultMaxBatchQuestions = 64

	// QuestionMaxBytes is the maximum length of a single question.
	QuestionMaxBytes = 4096
)

// MaxBatchQuestions returns the effective cap on questions per batch.
// Controlled via env QUARRY_MAX_BATCH_QUESTIONS; falls back to
// DefaultMaxBatchQuestions.
func MaxBatchQuestions() int {
	if v := os.Getenv("QUARRY_MAX_BATCH_QUESTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxBatchQuestions
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateQuestions checks a question batch before it is dispatched:
// at least one question, none blank, none oversized, batch within the cap.
func ValidateQuestions(questions []string) *ValidationResult {
	if len(questions) == 0 {
		return &ValidationResult{Message: "at least one question is required"}
	}
	if max := MaxBatchQuestions(); len(questions) > max {
		return &ValidationResult{Message: fmt.Sprintf("batch exceeds %d questions", max)}
	}
	for i, q := range questions {
		if strings.TrimSpace(q) == "" {
			return &ValidationResult{Message: fmt.Sprintf("question %d is blank", i+1)}
		}
		if len(q) > QuestionMaxBytes {
			return &ValidationResult{Message: fmt.Sprintf("question %d exceeds %d bytes", i+1, QuestionMaxBytes)}
		}
	}
	return &ValidationResult{OK: true}
}
