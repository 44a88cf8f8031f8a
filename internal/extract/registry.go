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

// Package extract implements the pluggable extractor registry and the
// format-specific decoders it dispatches to.
package extract

import (
	"context"
	"fmt"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
)

// Extractor decodes one format to plain text plus typed metadata.
type Extractor interface {
	// Name identifies the extractor; Register panics on a duplicate name.
	Name() string
	MimeTypes() []string
	MimePrefixes() []string
	FileExtensions() []string
	CanExtract(d contracts.FileDescriptor) bool
	Extract(ctx context.Context, d contracts.FileDescriptor, ec contracts.ExtractionContext) (contracts.ExtractedContent, error)
}

// Registry is a process-singleton table of extractors, initialized once at
// startup and read-only thereafter.
type Registry struct {
	byExactMIME map[string]Extractor
	ordered     []Extractor
	byName      map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExactMIME: make(map[string]Extractor),
		byName:      make(map[string]struct{}),
	}
}

// Register adds e to the registry in registration order. Registering a
// MIME type that another extractor already claims exactly is a programmer
// error and panics, per the registry's exact-match-is-unique contract.
func (r *Registry) Register(e Extractor) {
	if _, dup := r.byName[e.Name()]; dup {
		panic(fmt.Sprintf("extract: extractor %q registered twice", e.Name()))
	}
	for _, m := range e.MimeTypes() {
		if existing, ok := r.byExactMIME[m]; ok {
			panic(fmt.Sprintf("extract: MIME %q already claimed by %q, cannot register %q", m, existing.Name(), e.Name()))
		}
		r.byExactMIME[m] = e
	}
	r.ordered = append(r.ordered, e)
	r.byName[e.Name()] = struct{}{}
}

// Lookup returns the extractor for d: an exact MIME match always wins over
// the can_extract scan; absent an exact match, the first registered
// extractor whose CanExtract returns true wins.
func (r *Registry) Lookup(d contracts.FileDescriptor) (Extractor, bool) {
	if d.MimeType != "" {
		if e, ok := r.byExactMIME[d.MimeType]; ok {
			return e, true
		}
	}
	for _, e := range r.ordered {
		if e.CanExtract(d) {
			return e, true
		}
	}
	return nil, false
}

// Filter returns the union FileTypeFilter covering every registered
// extractor's declared MIME types, MIME prefixes, and extensions, for the
// storage provider to use when listing candidate files.
func (r *Registry) Filter() contracts.FileTypeFilter {
	f := contracts.NewFileTypeFilter()
	for _, e := range r.ordered {
		for _, m := range e.MimeTypes() {
			f.ExactMIME[m] = struct{}{}
		}
		f.MIMEPrefix = append(f.MIMEPrefix, e.MimePrefixes()...)
		for _, ext := range e.FileExtensions() {
			f.Extensions[ext] = struct{}{}
		}
	}
	return f
}
