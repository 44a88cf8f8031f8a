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
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFExtractor decodes PDF documents via pdfcpu. PDF_EXTRACTION_ENGINE
// selects between two extraction strategies built on the same library:
// "pypdf" (lenient, skips pages whose content stream cannot be read) and
// "pdfplumber" (strict, surfaces the first unreadable page as a failure).
// Both engines honor the same page cap and byte cap.
type PDFExtractor struct {
	maxBytes int64
	maxPages int
	engine   string
}

// NewPDFExtractor returns a PDFExtractor. engine must be "pypdf" or
// "pdfplumber"; any other value defaults to "pypdf".
func NewPDFExtractor(maxBytes int64, maxPages int, engine string) *PDFExtractor {
	if engine != "pypdf" && engine != "pdfplumber" {
		engine = "pypdf"
	}
	return &PDFExtractor{maxBytes: maxBytes, maxPages: maxPages, engine: engine}
}

func (e *PDFExtractor) Name() string { return "pdf" }

func (e *PDFExtractor) MimeTypes() []string { return []string{"application/pdf"} }

func (e *PDFExtractor) MimePrefixes() []string { return nil }

func (e *PDFExtractor) FileExtensions() []string { return []string{"pdf"} }

func (e *PDFExtractor) CanExtract(d contracts.FileDescriptor) bool {
	return d.Extension == "pdf"
}

func (e *PDFExtractor) Extract(ctx context.Context, d contracts.FileDescriptor, ec contracts.ExtractionContext) (contracts.ExtractedContent, error) {
	if out, skipped := oversize(d, "pdf", e.maxBytes); skipped {
		return out, nil
	}

	raw, err := ec.DownloadBinary(ctx, d.ID)
	if err != nil {
		return contracts.ExtractedContent{}, err
	}

	ctxModel, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(raw), model.NewDefaultConfiguration())
	if err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("pdf: parse %s: %w", d.Name, err)
	}

	pageCount := ctxModel.PageCount
	if e.maxPages > 0 && pageCount > e.maxPages {
		pageCount = e.maxPages
	}

	var buf bytes.Buffer
	for page := 1; page <= pageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctxModel, page)
		if err != nil {
			if e.engine == "pdfplumber" {
				return contracts.ExtractedContent{}, fmt.Errorf("pdf: extract %s page %d: %w", d.Name, page, err)
			}
			continue
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			if e.engine == "pdfplumber" {
				return contracts.ExtractedContent{}, fmt.Errorf("pdf: read %s page %d: %w", d.Name, page, err)
			}
			continue
		}
		buf.WriteString(contentStreamText(content))
		buf.WriteByte('\n')
	}

	meta := contracts.NewBag()
	meta.Set("page_count", pageCount)
	meta.Set("pdf_engine", e.engine)
	return contracts.ExtractedContent{
		Text:     CollapseWhitespace(buf.String()),
		FileType: "pdf",
		Metadata: meta,
	}, nil
}

// contentStreamText pulls shown text out of a decoded page content
// stream: string literals are buffered and flushed to the output when a
// text-showing operator (Tj, TJ, ' or ") follows them. Any other
// operator discards the pending literals so string arguments of
// non-text operators never leak into the output.
func contentStreamText(stream []byte) string {
	var out strings.Builder
	var pending []string

	i := 0
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == '(':
			lit, next := readStringLiteral(stream, i)
			pending = append(pending, lit)
			i = next
		case c == '[' || c == ']' || c == '<' || c == '>':
			i++
		case isPDFDelimiter(c) || isPDFWhitespace(c):
			i++
		default:
			start := i
			for i < len(stream) && !isPDFDelimiter(stream[i]) && !isPDFWhitespace(stream[i]) {
				i++
			}
			tok := string(stream[start:i])
			switch {
			case tok == "Tj" || tok == "TJ" || tok == "'" || tok == "\"":
				for _, s := range pending {
					out.WriteString(s)
				}
				pending = pending[:0]
			case tok == "TD" || tok == "Td" || tok == "T*":
				out.WriteByte('\n')
				pending = pending[:0]
			case isNumericToken(tok):
				// Operand (e.g. kerning inside a TJ array); keep pending.
			default:
				pending = pending[:0]
			}
		}
	}
	return out.String()
}

// readStringLiteral reads the PDF string literal whose opening
// parenthesis is at stream[start], honoring backslash escapes and
// balanced nested parentheses. It returns the decoded text plus the
// index just past the closing parenthesis.
func readStringLiteral(stream []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(stream) {
		c := stream[i]
		switch c {
		case '\\':
			if i+1 < len(stream) {
				switch stream[i+1] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 'r', 'f', 'b':
					b.WriteByte(' ')
				default:
					b.WriteByte(stream[i+1])
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

func isNumericToken(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		switch c := tok[i]; {
		case c >= '0' && c <= '9':
		case c == '+' || c == '-' || c == '.':
		default:
			return false
		}
	}
	return true
}

func isPDFWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
