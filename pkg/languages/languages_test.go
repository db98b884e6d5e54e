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

package languages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		lang string
		want Class
	}{
		{"python", ClassGraphNative},
		{"javascript", ClassGraphNative},
		{"typescript", ClassGraphNative},
		{"Python", ClassGraphNative}, // case-insensitive
		{" TypeScript ", ClassGraphNative},
		{"go", ClassGeneric},
		{"java", ClassGeneric},
		{"cobol", ClassUnsupported},
		{"other", ClassUnsupported},
		{"", ClassUnsupported},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.lang), "Classify(%q)", tt.lang)
	}
}

func TestDominant(t *testing.T) {
	assert.Equal(t, "python", Dominant(map[string]int64{"Python": 900, "JavaScript": 100}))
	assert.Equal(t, Other, Dominant(nil))
	assert.Equal(t, Other, Dominant(map[string]int64{}))
}

func TestDetectDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("main.py", strings.Repeat("x = 1\n", 100))
	write("util.py", strings.Repeat("y = 2\n", 100))
	write("script.js", "console.log(1)\n")
	write("node_modules/dep/index.js", strings.Repeat("junk\n", 10000))
	write(".git/objects/blob.js", strings.Repeat("junk\n", 10000))

	lang, err := DetectDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, "python", lang)
}

func TestDetectDirectoryNoSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hi"), 0o644))

	lang, err := DetectDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, Other, lang)
}

func TestForExtension(t *testing.T) {
	assert.Equal(t, "typescript", ForExtension("src/App.TSX"))
	assert.Equal(t, "", ForExtension("notes.txt"))
}
