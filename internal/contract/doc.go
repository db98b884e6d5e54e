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

// Package contract provides validation constants and utilities for Quarry.
//
// This internal package holds the input limits enforced at the CLI
// boundary, currently for question batches sent to the query fan-out.
//
// # Batch Limits
//
//	result := contract.ValidateQuestions(questions)
//	if !result.OK {
//	    log.Printf("validation failed: %s", result.Message)
//	}
//
// # Configuration via Environment
//
// The per-batch question cap can be adjusted via the
// QUARRY_MAX_BATCH_QUESTIONS environment variable:
//
//	export QUARRY_MAX_BATCH_QUESTIONS=16
//
// If the variable is unset or invalid, DefaultMaxBatchQuestions applies.
package contract
