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

// Package languages classifies a repository's dominant language for the
// ingestion dispatch. The classification is a closed set: graph-native
// languages get the dedicated tree-sitter builder, generic supported
// languages get the delegated file-graph path, and everything else is
// unsupported.
package languages

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Class is the dispatch class of a detected language.
type Class int

const (
	// ClassGraphNative languages have a dedicated structural graph builder.
	ClassGraphNative Class = iota

	// ClassGeneric languages are supported through the delegated
	// build-and-store path.
	ClassGeneric

	// ClassUnsupported languages cannot be ingested.
	ClassUnsupported
)

// Other is the canonical name for an undetectable or unsupported language.
const Other = "other"

// graphNative is the set supported by the dedicated graph builder.
var graphNative = map[string]bool{
	"python":     true,
	"javascript": true,
	"typescript": true,
}

// generic is the set supported through the delegated path.
var generic = map[string]bool{
	"go":     true,
	"java":   true,
	"ruby":   true,
	"rust":   true,
	"c":      true,
	"cpp":    true,
	"csharp": true,
	"php":    true,
	"kotlin": true,
	"swift":  true,
	"scala":  true,
}

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".py":    "python",
	".pyw":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".kt":    "kotlin",
	".swift": "swift",
	".scala": "scala",
}

// Normalize lowercases and trims a language name so detection sources that
// report "Python" or "TypeScript " compare equal.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Classify returns the dispatch class for a (normalized or raw) language name.
func Classify(name string) Class {
	n := Normalize(name)
	switch {
	case graphNative[n]:
		return ClassGraphNative
	case generic[n]:
		return ClassGeneric
	default:
		return ClassUnsupported
	}
}

// Dominant picks the highest-weighted language from a breakdown, normalized.
// An empty breakdown yields Other.
func Dominant(breakdown map[string]int64) string {
	best := Other
	var bestWeight int64 = -1
	for lang, weight := range breakdown {
		n := Normalize(lang)
		if weight > bestWeight || (weight == bestWeight && n < best) {
			best = n
			bestWeight = weight
		}
	}
	if bestWeight < 0 {
		return Other
	}
	return best
}

// DetectDirectory statically detects the dominant language of a source tree
// by summing file sizes per recognized extension. Hidden directories,
// vendor trees and node_modules are skipped. Returns Other when nothing is
// recognized.
func DetectDirectory(dir string) (string, error) {
	breakdown, err := Breakdown(dir)
	if err != nil {
		return Other, err
	}
	return Dominant(breakdown), nil
}

// Breakdown walks a source tree and returns bytes of source per language.
func Breakdown(dir string) (map[string]int64, error) {
	breakdown := make(map[string]int64)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__") {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // unreadable entries don't abort detection
		}
		breakdown[lang] += info.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return breakdown, nil
}

// ForExtension returns the canonical language for a file path, or "" when
// the extension is not recognized.
func ForExtension(path string) string {
	return extToLanguage[strings.ToLower(filepath.Ext(path))]
}
