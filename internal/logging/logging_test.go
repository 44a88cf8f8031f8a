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

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/kraklabs/gdrive-ingestd/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONHandlerEmitsParsableLines(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: "info", Output: &buf})

	logger.Info("indexed", "file_id", "F1", "points", 3)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "indexed", decoded["msg"])
	assert.Equal(t, "F1", decoded["file_id"])
}

func TestNew_PlainTextHandlerIncludesAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: "info", PlainText: true, Output: &buf})

	logger.Info("ingest_done", "completed", 5)

	line := buf.String()
	assert.Contains(t, line, "ingest_done")
	assert.Contains(t, line, "completed=5")
	assert.Contains(t, line, "INFO")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: "warn", Output: &buf})

	logger.Info("should be dropped")
	assert.Empty(t, buf.String())

	logger.Warn("should appear")
	assert.True(t, strings.Contains(buf.String(), "should appear"))
}

func TestNew_PlainTextNeverPanicsWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{PlainText: true, Output: &buf})
	logger.With("component", "ingest").Info("hello", "n", 1)
	assert.NotEmpty(t, buf.String())
}

func TestParseLevel_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: "bogus", Output: &buf})
	logger.Log(context.Background(), slog.LevelInfo, "ok")
	assert.Contains(t, buf.String(), "ok")
}
