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
	"context"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
)

// sourceExtensions covers plain text plus the source-code extensions the
// registry recognizes. A flat list is enough: this extractor does no
// structural parsing, every entry is a literal decode-to-text pass.
var sourceExtensions = []string{
	"txt", "md", "markdown", "rst", "log", "csv", "tsv", "ini", "cfg", "conf",
	"go", "py", "js", "jsx", "ts", "tsx", "java", "c", "h", "cpp", "cc", "hpp",
	"rb", "rs", "php", "sh", "bash", "zsh", "sql", "yaml", "yml", "json",
	"toml", "xml", "html", "css", "scss", "proto", "kt", "swift", "scala",
	"lua", "pl", "r", "m", "vue", "graphql", "dockerfile", "makefile",
}

var fileTypeByExtension = map[string]string{
	"go": "go", "py": "python", "js": "javascript", "jsx": "javascript",
	"ts": "typescript", "tsx": "typescript", "java": "java", "rb": "ruby",
	"rs": "rust", "php": "php", "sh": "shell", "bash": "shell", "zsh": "shell",
	"sql": "sql", "md": "markdown", "markdown": "markdown", "json": "json",
	"yaml": "yaml", "yml": "yaml",
}

// TextExtractor decodes plain text and source-code files. It performs no
// AST-level parsing: every supported extension is a literal bytes-to-UTF-8
// pass, normalized by CollapseWhitespace.
type TextExtractor struct {
	maxBytes int64
}

// NewTextExtractor returns a TextExtractor capping input at maxBytes
// (<=0 disables the cap).
func NewTextExtractor(maxBytes int64) *TextExtractor {
	return &TextExtractor{maxBytes: maxBytes}
}

func (e *TextExtractor) Name() string { return "text" }

func (e *TextExtractor) MimeTypes() []string {
	return []string{"text/plain", "application/json", "application/x-yaml"}
}

func (e *TextExtractor) MimePrefixes() []string {
	return []string{"text/"}
}

func (e *TextExtractor) FileExtensions() []string {
	return append([]string(nil), sourceExtensions...)
}

func (e *TextExtractor) CanExtract(d contracts.FileDescriptor) bool {
	if d.MimeType != "" && len(d.MimeType) >= 5 && d.MimeType[:5] == "text/" {
		return true
	}
	return matchesAny(d.Extension, toSet(sourceExtensions))
}

func (e *TextExtractor) Extract(ctx context.Context, d contracts.FileDescriptor, ec contracts.ExtractionContext) (contracts.ExtractedContent, error) {
	fileType := fileTypeByExtension[d.Extension]
	if fileType == "" {
		fileType = "text"
	}
	if out, skipped := oversize(d, fileType, e.maxBytes); skipped {
		return out, nil
	}

	raw, err := ec.DownloadBinary(ctx, d.ID)
	if err != nil {
		return contracts.ExtractedContent{}, err
	}

	text := CollapseWhitespace(string(raw))
	return contracts.ExtractedContent{
		Text:     text,
		FileType: fileType,
		Metadata: contracts.NewBag(),
	}, nil
}
