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
	"strings"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
)

// wordXMLRun/wordXMLParagraph/wordXMLTable mirror just enough of the
// WordprocessingML schema to read paragraph and table-cell text runs out
// of word/document.xml.
type wordXMLRun struct {
	Text []string `xml:"t"`
}

type wordXMLTableCell struct {
	Paragraphs []wordXMLParagraph `xml:"p"`
}

type wordXMLTableRow struct {
	Cells []wordXMLTableCell `xml:"tc"`
}

type wordXMLTable struct {
	Rows []wordXMLTableRow `xml:"tr"`
}

type wordXMLParagraph struct {
	Runs []wordXMLRun `xml:"r"`
}

type wordXMLBody struct {
	XMLName    xml.Name           `xml:"document"`
	Paragraphs []wordXMLParagraph `xml:"body>p"`
	Tables     []wordXMLTable     `xml:"body>tbl"`
}

// WordExtractor decodes .docx (a zip of WordprocessingML parts) by
// reading word/document.xml directly with archive/zip + encoding/xml;
// the format is itself a documented zip+XML container, so the standard
// library covers it.
type WordExtractor struct {
	maxBytes int64
	legacy   *legacyOfficeExtractor
}

// NewWordExtractor returns a WordExtractor. helperBinary names the
// out-of-process decoder used for legacy .doc files (empty disables
// legacy support with a descriptive failure on attempt).
func NewWordExtractor(maxBytes int64, helperBinary string) *WordExtractor {
	return &WordExtractor{
		maxBytes: maxBytes,
		legacy:   newLegacyOfficeExtractor("doc", helperBinary),
	}
}

func (e *WordExtractor) Name() string { return "office_word" }

func (e *WordExtractor) MimeTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword",
	}
}

func (e *WordExtractor) MimePrefixes() []string { return nil }

func (e *WordExtractor) FileExtensions() []string { return []string{"docx", "doc"} }

func (e *WordExtractor) CanExtract(d contracts.FileDescriptor) bool {
	return d.Extension == "docx" || d.Extension == "doc"
}

func (e *WordExtractor) Extract(ctx context.Context, d contracts.FileDescriptor, ec contracts.ExtractionContext) (contracts.ExtractedContent, error) {
	if out, skipped := oversize(d, "word", e.maxBytes); skipped {
		return out, nil
	}

	raw, err := ec.DownloadBinary(ctx, d.ID)
	if err != nil {
		return contracts.ExtractedContent{}, err
	}

	if d.Extension == "doc" {
		return e.legacy.extract(ctx, d, raw)
	}

	text, err := extractDocxText(raw)
	if err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("office_word: %s: %w", d.Name, err)
	}
	return contracts.ExtractedContent{
		Text:     CollapseWhitespace(text),
		FileType: "word",
		Metadata: contracts.NewBag(),
	}, nil
}

func extractDocxText(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", err
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", err
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", err
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("word/document.xml not found")
	}

	var body wordXMLBody
	if err := xml.Unmarshal(docXML, &body); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range body.Paragraphs {
		writeWordParagraph(&b, p)
		b.WriteByte('\n')
	}
	for _, t := range body.Tables {
		for _, row := range t.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var cb strings.Builder
				for _, p := range cell.Paragraphs {
					writeWordParagraph(&cb, p)
				}
				cells = append(cells, cb.String())
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func writeWordParagraph(b *strings.Builder, p wordXMLParagraph) {
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
}
