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

package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
)

type xlsxSST struct {
	Items []struct {
		Text string `xml:"t"`
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

type xlsxCell struct {
	Ref   string `xml:"r,attr"`
	Type  string `xml:"t,attr"`
	Value string `xml:"v"`
}

type xlsxRow struct {
	Ref   string     `xml:"r,attr"`
	Cells []xlsxCell `xml:"c"`
}

type xlsxSheetData struct {
	Rows []xlsxRow `xml:"sheetData>row"`
}

type xlsxWorkbook struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"id,attr"`
	} `xml:"sheets>sheet"`
}

// ExcelExtractor decodes .xlsx (zip of SpreadsheetML parts): shared
// strings + per-sheet XML, rendered as tab-joined rows with a
// "=== SHEET: <title> ===" delimiter between sheets.
type ExcelExtractor struct {
	maxBytes  int64
	maxSheets int
	maxRows   int
	legacy    *legacyOfficeExtractor
}

func NewExcelExtractor(maxBytes int64, maxSheets, maxRows int, helperBinary string) *ExcelExtractor {
	return &ExcelExtractor{
		maxBytes:  maxBytes,
		maxSheets: maxSheets,
		maxRows:   maxRows,
		legacy:    newLegacyOfficeExtractor("xls", helperBinary),
	}
}

func (e *ExcelExtractor) Name() string { return "office_excel" }

func (e *ExcelExtractor) MimeTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
	}
}

func (e *ExcelExtractor) MimePrefixes() []string { return nil }

func (e *ExcelExtractor) FileExtensions() []string { return []string{"xlsx", "xls"} }

func (e *ExcelExtractor) CanExtract(d contracts.FileDescriptor) bool {
	return d.Extension == "xlsx" || d.Extension == "xls"
}

func (e *ExcelExtractor) Extract(ctx context.Context, d contracts.FileDescriptor, ec contracts.ExtractionContext) (contracts.ExtractedContent, error) {
	if out, skipped := oversize(d, "excel", e.maxBytes); skipped {
		return out, nil
	}

	raw, err := ec.DownloadBinary(ctx, d.ID)
	if err != nil {
		return contracts.ExtractedContent{}, err
	}

	if d.Extension == "xls" {
		return e.legacy.extract(ctx, d, raw)
	}

	text, sheetCount, err := extractXlsxText(raw, e.maxSheets, e.maxRows)
	if err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("office_excel: %s: %w", d.Name, err)
	}

	meta := contracts.NewBag()
	meta.Set("sheet_count", sheetCount)
	return contracts.ExtractedContent{
		Text:     CollapseWhitespace(text),
		FileType: "excel",
		Metadata: meta,
	}, nil
}

func extractXlsxText(raw []byte, maxSheets, maxRows int) (string, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, err
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	sst, err := readSharedStrings(files["xl/sharedStrings.xml"])
	if err != nil {
		return "", 0, err
	}

	wb, err := readWorkbook(files["xl/workbook.xml"])
	if err != nil {
		return "", 0, err
	}

	sheetFiles := sheetFilesInOrder(files)

	var b strings.Builder
	count := 0
	for i, sheetName := range sheetNamesInOrder(wb, sheetFiles) {
		if maxSheets > 0 && i >= maxSheets {
			break
		}
		f, ok := sheetFiles[i]
		if !ok {
			continue
		}
		rows, err := readSheetRows(f, sst, maxRows)
		if err != nil {
			return "", 0, err
		}
		b.WriteString(fmt.Sprintf("=== SHEET: %s ===\n", sheetName))
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		count++
	}
	return b.String(), count, nil
}

func readSharedStrings(f *zip.File) ([]string, error) {
	if f == nil {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	var sst xlsxSST
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, err
	}
	out := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		if item.Text != "" {
			out[i] = item.Text
			continue
		}
		var b strings.Builder
		for _, r := range item.Runs {
			b.WriteString(r.Text)
		}
		out[i] = b.String()
	}
	return out, nil
}

func readWorkbook(f *zip.File) (xlsxWorkbook, error) {
	var wb xlsxWorkbook
	if f == nil {
		return wb, nil
	}
	rc, err := f.Open()
	if err != nil {
		return wb, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return wb, err
	}
	err = xml.Unmarshal(data, &wb)
	return wb, err
}

func sheetFilesInOrder(files map[string]*zip.File) map[int]*zip.File {
	var names []string
	for name := range files {
		if strings.HasPrefix(name, "xl/worksheets/sheet") && strings.HasSuffix(name, ".xml") {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return sheetOrdinal(names[i]) < sheetOrdinal(names[j])
	})
	out := make(map[int]*zip.File, len(names))
	for i, name := range names {
		out[i] = files[name]
	}
	return out
}

// sheetOrdinal parses the numeric suffix of an xl/worksheets/sheetN.xml
// part name; a plain lexicographic sort would order sheet10 before
// sheet2 and mispair headers with row data.
func sheetOrdinal(name string) int {
	base := strings.TrimPrefix(name, "xl/worksheets/sheet")
	base = strings.TrimSuffix(base, ".xml")
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0
	}
	return n
}

func sheetNamesInOrder(wb xlsxWorkbook, sheetFiles map[int]*zip.File) []string {
	names := make([]string, len(sheetFiles))
	for i := range sheetFiles {
		if i < len(wb.Sheets) {
			names[i] = wb.Sheets[i].Name
		} else {
			names[i] = "Sheet" + strconv.Itoa(i+1)
		}
	}
	return names
}

func readSheetRows(f *zip.File, sst []string, maxRows int) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	var sd xlsxSheetData
	if err := xml.Unmarshal(data, &sd); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sd.Rows))
	for i, row := range sd.Rows {
		if maxRows > 0 && i >= maxRows {
			break
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = resolveCellValue(c, sst)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func resolveCellValue(c xlsxCell, sst []string) string {
	if c.Type == "s" {
		idx, err := strconv.Atoi(c.Value)
		if err == nil && idx >= 0 && idx < len(sst) {
			return sst[idx]
		}
	}
	return c.Value
}
