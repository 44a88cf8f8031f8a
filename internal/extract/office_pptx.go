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

type pptxTextBody struct {
	Paragraphs []struct {
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"p"`
}

// pptxSlideShapeTree covers nested group shapes (<p:grpSp>) as well as
// plain shapes (<p:sp>) so grouped text is not lost.
type pptxSlideShapeTree struct {
	Shapes      []pptxShape          `xml:"sp"`
	GroupShapes []pptxSlideShapeTree `xml:"grpSp"`
}

type pptxShape struct {
	TextBody pptxTextBody `xml:"txBody"`
}

type pptxSlide struct {
	XMLName xml.Name           `xml:"sld"`
	Tree    pptxSlideShapeTree `xml:"cSld>spTree"`
}

// SlidesExtractor decodes .pptx (zip of PresentationML parts), walking
// each slideN.xml's shape tree (including nested groups) and joining
// text runs, with a "=== SLIDE n ===" delimiter per slide.
type SlidesExtractor struct {
	maxBytes int64
	legacy   *legacyOfficeExtractor
}

func NewSlidesExtractor(maxBytes int64, helperBinary string) *SlidesExtractor {
	return &SlidesExtractor{
		maxBytes: maxBytes,
		legacy:   newLegacyOfficeExtractor("ppt", helperBinary),
	}
}

func (e *SlidesExtractor) Name() string { return "office_slides" }

func (e *SlidesExtractor) MimeTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.ms-powerpoint",
	}
}

func (e *SlidesExtractor) MimePrefixes() []string { return nil }

func (e *SlidesExtractor) FileExtensions() []string { return []string{"pptx", "ppt"} }

func (e *SlidesExtractor) CanExtract(d contracts.FileDescriptor) bool {
	return d.Extension == "pptx" || d.Extension == "ppt"
}

func (e *SlidesExtractor) Extract(ctx context.Context, d contracts.FileDescriptor, ec contracts.ExtractionContext) (contracts.ExtractedContent, error) {
	if out, skipped := oversize(d, "slides", e.maxBytes); skipped {
		return out, nil
	}

	raw, err := ec.DownloadBinary(ctx, d.ID)
	if err != nil {
		return contracts.ExtractedContent{}, err
	}

	if d.Extension == "ppt" {
		return e.legacy.extract(ctx, d, raw)
	}

	text, slideCount, err := extractPptxText(raw)
	if err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("office_slides: %s: %w", d.Name, err)
	}

	meta := contracts.NewBag()
	meta.Set("slide_count", slideCount)
	return contracts.ExtractedContent{
		Text:     CollapseWhitespace(text),
		FileType: "slides",
		Metadata: meta,
	}, nil
}

func extractPptxText(raw []byte) (string, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, err
	}

	var slideFiles []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slideFiles = append(slideFiles, f.Name)
		}
	}
	sort.Slice(slideFiles, func(i, j int) bool {
		return slideOrdinal(slideFiles[i]) < slideOrdinal(slideFiles[j])
	})

	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		byName[f.Name] = f
	}

	var b strings.Builder
	for i, name := range slideFiles {
		rc, err := byName[name].Open()
		if err != nil {
			return "", 0, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", 0, err
		}

		var slide pptxSlide
		if err := xml.Unmarshal(data, &slide); err != nil {
			return "", 0, err
		}

		b.WriteString(fmt.Sprintf("=== SLIDE %d ===\n", i+1))
		writeShapeTree(&b, slide.Tree)
		b.WriteByte('\n')
	}
	return b.String(), len(slideFiles), nil
}

func writeShapeTree(b *strings.Builder, tree pptxSlideShapeTree) {
	for _, shape := range tree.Shapes {
		for _, p := range shape.TextBody.Paragraphs {
			for _, r := range p.Runs {
				b.WriteString(r.Text)
			}
			b.WriteByte('\n')
		}
	}
	for _, group := range tree.GroupShapes {
		writeShapeTree(b, group)
	}
}

func slideOrdinal(name string) int {
	base := strings.TrimPrefix(name, "ppt/slides/slide")
	base = strings.TrimSuffix(base, ".xml")
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0
	}
	return n
}
