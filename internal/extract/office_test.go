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
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"github.com/kraklabs/gdrive-ingestd/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zipOf builds an in-memory zip archive from name -> content parts.
func zipOf(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// ecWithBytes returns an ExtractionContext whose DownloadBinary always
// serves raw.
func ecWithBytes(raw []byte) contracts.ExtractionContext {
	return contracts.ExtractionContext{
		DownloadBinary: func(ctx context.Context, fileID string) ([]byte, error) {
			return raw, nil
		},
	}
}

func TestWordExtractor_DocxParagraphsAndTables(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t> world</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>A</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>B</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`
	raw := zipOf(t, map[string]string{"word/document.xml": docXML})

	e := extract.NewWordExtractor(0, "")
	d := contracts.FileDescriptor{ID: "d1", Name: "doc.docx", Extension: "docx"}

	out, err := e.Extract(context.Background(), d, ecWithBytes(raw))
	require.NoError(t, err)
	assert.Equal(t, "word", out.FileType)
	assert.Equal(t, "Hello world A | B", out.Text)
}

func TestWordExtractor_LegacyDocWithoutHelperFails(t *testing.T) {
	e := extract.NewWordExtractor(0, "")
	d := contracts.FileDescriptor{ID: "d2", Name: "old.doc", Extension: "doc"}

	_, err := e.Extract(context.Background(), d, ecWithBytes([]byte("binary")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no decoder configured")
}

func TestWordExtractor_OversizeGate(t *testing.T) {
	size := int64(2 * 1024 * 1024)
	e := extract.NewWordExtractor(1024*1024, "")
	d := contracts.FileDescriptor{ID: "d3", Name: "big.docx", Extension: "docx", SizeBytes: &size}

	out, err := e.Extract(context.Background(), d, ecWithBytes(nil))
	require.NoError(t, err)
	assert.Empty(t, out.Text)
	skipped, ok := out.Metadata.Get("skipped")
	require.True(t, ok)
	assert.Equal(t, "size_limit", skipped)
	gotSize, ok := out.Metadata.Get("size_bytes")
	require.True(t, ok)
	assert.Equal(t, size, gotSize)
}

func TestExcelExtractor_XlsxSheetsSharedStringsAndRowCap(t *testing.T) {
	workbook := `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheets><sheet name="Data" sheetId="1" r:id="rId1" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/></sheets>
</workbook>`
	shared := `<?xml version="1.0"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <si><t>Alpha</t></si>
  <si><r><t>Be</t></r><r><t>ta</t></r></si>
</sst>`
	sheet := `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData>
    <row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1"><v>42</v></c></row>
    <row r="2"><c r="A2" t="s"><v>1</v></c></row>
    <row r="3"><c r="A3"><v>dropped by row cap</v></c></row>
  </sheetData>
</worksheet>`
	raw := zipOf(t, map[string]string{
		"xl/workbook.xml":          workbook,
		"xl/sharedStrings.xml":     shared,
		"xl/worksheets/sheet1.xml": sheet,
	})

	e := extract.NewExcelExtractor(0, 10, 2, "")
	d := contracts.FileDescriptor{ID: "x1", Name: "data.xlsx", Extension: "xlsx"}

	out, err := e.Extract(context.Background(), d, ecWithBytes(raw))
	require.NoError(t, err)
	assert.Equal(t, "excel", out.FileType)
	assert.Equal(t, "=== SHEET: Data === Alpha 42 Beta", out.Text)
	sheets, ok := out.Metadata.Get("sheet_count")
	require.True(t, ok)
	assert.Equal(t, 1, sheets)
}

func TestSlidesExtractor_PptxNestedGroups(t *testing.T) {
	slide := `<?xml version="1.0"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"
       xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <p:cSld><p:spTree>
    <p:sp><p:txBody><a:p><a:r><a:t>Title</a:t></a:r></a:p></p:txBody></p:sp>
    <p:grpSp>
      <p:sp><p:txBody><a:p><a:r><a:t>Grouped</a:t></a:r></a:p></p:txBody></p:sp>
    </p:grpSp>
  </p:spTree></p:cSld>
</p:sld>`
	raw := zipOf(t, map[string]string{"ppt/slides/slide1.xml": slide})

	e := extract.NewSlidesExtractor(0, "")
	d := contracts.FileDescriptor{ID: "p1", Name: "deck.pptx", Extension: "pptx"}

	out, err := e.Extract(context.Background(), d, ecWithBytes(raw))
	require.NoError(t, err)
	assert.Equal(t, "slides", out.FileType)
	assert.Equal(t, "=== SLIDE 1 === Title Grouped", out.Text)
}

func TestExcelExtractor_XlsxTenPlusSheetsKeepNumericOrder(t *testing.T) {
	const sheetCount = 11

	var sheets strings.Builder
	parts := map[string]string{}
	for i := 1; i <= sheetCount; i++ {
		sheets.WriteString(fmt.Sprintf(`<sheet name="S%d" sheetId="%d"/>`, i, i))
		parts[fmt.Sprintf("xl/worksheets/sheet%d.xml", i)] = fmt.Sprintf(`<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData><row r="1"><c r="A1"><v>%d</v></c></row></sheetData>
</worksheet>`, i*100)
	}
	parts["xl/workbook.xml"] = fmt.Sprintf(`<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheets>%s</sheets>
</workbook>`, sheets.String())

	raw := zipOf(t, parts)

	e := extract.NewExcelExtractor(0, 0, 0, "")
	d := contracts.FileDescriptor{ID: "x2", Name: "wide.xlsx", Extension: "xlsx"}

	out, err := e.Extract(context.Background(), d, ecWithBytes(raw))
	require.NoError(t, err)

	// Lexicographic part ordering would pair S2 with sheet10's data; the
	// numeric sort must keep every header next to its own sheet's rows.
	for i := 1; i <= sheetCount; i++ {
		assert.Contains(t, out.Text, fmt.Sprintf("=== SHEET: S%d === %d", i, i*100))
	}
}
