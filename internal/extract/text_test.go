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

package extract_test

import (
	"context"
	"testing"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"github.com/kraklabs/gdrive-ingestd/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextExtractor_PythonSource(t *testing.T) {
	e := extract.NewTextExtractor(0)
	d := contracts.FileDescriptor{ID: "F2", Name: "n.py", Extension: "py", MimeType: "text/plain"}

	out, err := e.Extract(context.Background(), d, ecWithBytes([]byte("print('ok')\n")))
	require.NoError(t, err)
	assert.Equal(t, "python", out.FileType)
	assert.Equal(t, "print('ok')", out.Text)
}

func TestTextExtractor_UnknownExtensionFallsBackToText(t *testing.T) {
	e := extract.NewTextExtractor(0)
	d := contracts.FileDescriptor{ID: "F3", Name: "notes.txt", Extension: "txt", MimeType: "text/plain"}

	out, err := e.Extract(context.Background(), d, ecWithBytes([]byte("  spaced   out  ")))
	require.NoError(t, err)
	assert.Equal(t, "text", out.FileType)
	assert.Equal(t, "spaced out", out.Text)
}

func TestTextExtractor_OversizeReturnsSizeLimitMetadata(t *testing.T) {
	size := int64(2 * 1024 * 1024)
	e := extract.NewTextExtractor(1024 * 1024)
	d := contracts.FileDescriptor{ID: "F4", Name: "huge.txt", Extension: "txt", SizeBytes: &size}

	out, err := e.Extract(context.Background(), d, ecWithBytes(nil))
	require.NoError(t, err)
	assert.Empty(t, out.Text)
	skipped, ok := out.Metadata.Get("skipped")
	require.True(t, ok)
	assert.Equal(t, "size_limit", skipped)
}

func TestTextExtractor_CanExtractByMIMEPrefixAndExtension(t *testing.T) {
	e := extract.NewTextExtractor(0)

	assert.True(t, e.CanExtract(contracts.FileDescriptor{MimeType: "text/x-rust"}))
	assert.True(t, e.CanExtract(contracts.FileDescriptor{Extension: "go"}))
	assert.False(t, e.CanExtract(contracts.FileDescriptor{MimeType: "application/octet-stream", Extension: "bin"}))
}

func TestTextExtractor_DeclaresSourceExtensionCoverage(t *testing.T) {
	e := extract.NewTextExtractor(0)
	assert.GreaterOrEqual(t, len(e.FileExtensions()), 25)
}
