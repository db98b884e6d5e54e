// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/kraklabs/quarry/internal/errors"
)

func TestJSONTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONTo(&buf, map[string]any{"project_id": "p1", "count": 2}))
	assert.Contains(t, buf.String(), "\"project_id\": \"p1\"")
}

func TestJSONErrorToTypedError(t *testing.T) {
	var buf bytes.Buffer
	err := qerrors.NewBuildFailedError("p1")
	require.NoError(t, JSONErrorTo(&buf, err))

	var payload qerrors.ErrorJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Contains(t, payload.Error, "p1")
	assert.Equal(t, qerrors.ExitParse, payload.ExitCode)
}
