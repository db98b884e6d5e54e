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

// Package bootstrap opens and initializes the Quarry workspace.
//
// A workspace is one storage root on local disk holding the SQLite graph
// database, the project database and the transient working trees of
// in-flight ingestions.
//
// # Workflow
//
//	ws, err := bootstrap.Open(bootstrap.Config{}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ws.Close()
//
// Open is idempotent: schema migrations are no-ops once applied, so it is
// safe in scripts and repeated CLI invocations.
//
// # Storage root resolution
//
// The root defaults to ~/.quarry and can be overridden either with
// Config.StorageRoot or the QUARRY_HOME environment variable.
package bootstrap
