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
	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
)

// CollapseWhitespace is the one normalization pass every extractor's
// final text goes through before being returned.
func CollapseWhitespace(s string) string {
	return contracts.CollapseWhitespace(s)
}

// oversize reports whether d exceeds cap and, if so, returns the
// empty-text, size_limit-tagged result extractors must return instead of
// decoding further. cap <= 0 disables the gate.
func oversize(d contracts.FileDescriptor, fileType string, capBytes int64) (contracts.ExtractedContent, bool) {
	if capBytes <= 0 || !d.HasSize() || *d.SizeBytes <= capBytes {
		return contracts.ExtractedContent{}, false
	}
	meta := contracts.NewBag()
	meta.Set("skipped", "size_limit")
	meta.Set("size_bytes", *d.SizeBytes)
	return contracts.ExtractedContent{Text: "", FileType: fileType, Metadata: meta}, true
}

// matchesAny reports whether ext is present in the given set, used by
// CanExtract implementations keyed purely on extension.
func matchesAny(ext string, set map[string]struct{}) bool {
	_, ok := set[ext]
	return ok
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[s] = struct{}{}
	}
	return m
}
