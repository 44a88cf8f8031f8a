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
	"fmt"
	"strings"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	slidesapi "google.golang.org/api/slides/v1"
)

// GoogleSlideExtractor decodes hosted Google Slides via the slides/v1
// API, walking each slide's page-element tree (including nested groups)
// the same way SlidesExtractor walks a .pptx's PresentationML shape
// tree, with a "=== SLIDE n ===" delimiter per slide.
type GoogleSlideExtractor struct {
	maxBytes int64
}

func NewGoogleSlideExtractor(maxBytes int64) *GoogleSlideExtractor {
	return &GoogleSlideExtractor{maxBytes: maxBytes}
}

func (e *GoogleSlideExtractor) Name() string { return "google_slides" }

func (e *GoogleSlideExtractor) MimeTypes() []string {
	return []string{"application/vnd.google-apps.presentation"}
}

func (e *GoogleSlideExtractor) MimePrefixes() []string { return nil }

func (e *GoogleSlideExtractor) FileExtensions() []string { return nil }

func (e *GoogleSlideExtractor) CanExtract(d contracts.FileDescriptor) bool {
	return d.MimeType == "application/vnd.google-apps.presentation"
}

func (e *GoogleSlideExtractor) Extract(ctx context.Context, d contracts.FileDescriptor, ec contracts.ExtractionContext) (contracts.ExtractedContent, error) {
	if out, skipped := oversize(d, "gslides", e.maxBytes); skipped {
		return out, nil
	}

	val, err := ec.GetGoogleSlides(ctx, d.ID)
	if err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("google_slides: get %s: %w", d.Name, err)
	}
	presentation, ok := val.(*slidesapi.Presentation)
	if !ok {
		return contracts.ExtractedContent{}, fmt.Errorf("google_slides: unexpected response type for %s", d.Name)
	}

	var b strings.Builder
	for i, slide := range presentation.Slides {
		b.WriteString(fmt.Sprintf("=== SLIDE %d ===\n", i+1))
		writePageElements(&b, slide.PageElements)
		b.WriteByte('\n')
	}

	meta := contracts.NewBag()
	meta.Set("slide_count", len(presentation.Slides))
	return contracts.ExtractedContent{
		Text:     CollapseWhitespace(b.String()),
		FileType: "gslides",
		Metadata: meta,
	}, nil
}

func writePageElements(b *strings.Builder, elements []*slidesapi.PageElement) {
	for _, pe := range elements {
		switch {
		case pe.Shape != nil && pe.Shape.Text != nil:
			for _, te := range pe.Shape.Text.TextElements {
				if te.TextRun != nil {
					b.WriteString(te.TextRun.Content)
				}
			}
			b.WriteByte('\n')
		case pe.Table != nil:
			writeSlideTable(b, pe.Table)
		case pe.ElementGroup != nil:
			writePageElements(b, pe.ElementGroup.Children)
		}
	}
}

func writeSlideTable(b *strings.Builder, t *slidesapi.Table) {
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			var cb strings.Builder
			if cell.Text != nil {
				for _, te := range cell.Text.TextElements {
					if te.TextRun != nil {
						cb.WriteString(te.TextRun.Content)
					}
				}
			}
			cells = append(cells, strings.TrimSpace(cb.String()))
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteByte('\n')
	}
}
