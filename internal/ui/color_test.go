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

package ui

import (
	"testing"

	"github.com/fatih/color"
)

// withNoColor disables colors for the test so Sprint output is predictable.
func withNoColor(t *testing.T) {
	t.Helper()
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = original })
}

func TestInitColors(t *testing.T) {
	original := color.NoColor
	defer func() { color.NoColor = original }()

	InitColors(true)
	if !color.NoColor {
		t.Error("InitColors(true) should disable colors")
	}
	InitColors(false)
	if color.NoColor {
		t.Error("InitColors(false) should enable colors")
	}
}

func TestLabel(t *testing.T) {
	withNoColor(t)

	for _, text := range []string{"Project:", "", "Test: <>\"'&"} {
		if got := Label(text); got != text {
			t.Errorf("Label(%q) = %q with colors off", text, got)
		}
	}
}

func TestDimText(t *testing.T) {
	withNoColor(t)

	if got := DimText("/path/to/data"); got != "/path/to/data" {
		t.Errorf("DimText() = %q with colors off", got)
	}
	if got := DimText(""); got != "" {
		t.Errorf("DimText(\"\") = %q, expected empty string", got)
	}
}

func TestStylesInitialized(t *testing.T) {
	for name, style := range map[string]*color.Color{
		"Red": Red, "Yellow": Yellow, "Green": Green,
		"Cyan": Cyan, "Bold": Bold, "Dim": Dim,
	} {
		if style == nil {
			t.Errorf("%s style not initialized", name)
		}
	}
}

// The print helpers write straight to stdout; the test only asserts they
// run without panicking.
func TestPrintHelpers(t *testing.T) {
	withNoColor(t)

	Success("done")
	Successf("done in %dms", 42)
	Warning("careful")
	Warningf("%d files skipped", 3)
	Error("broken")
	Errorf("%s failed", "step")
	Info("working")
	Infof("%d of %d", 1, 2)
	Header("Section")
	SubHeader("Subsection")
}
