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

package vectorstore

import (
	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
)

// ChunkText collapses internal whitespace, then slides a window of size
// maxChars over the result with stride max(1, maxChars-overlap). Empty
// input yields no chunks; input shorter than maxChars yields exactly one
// chunk.
func ChunkText(text string, maxChars, overlap int) []string {
	normalized := contracts.CollapseWhitespace(text)
	if normalized == "" {
		return nil
	}
	if maxChars <= 0 {
		return []string{normalized}
	}

	runes := []rune(normalized)
	if len(runes) <= maxChars {
		return []string{normalized}
	}

	stride := maxChars - overlap
	if stride < 1 {
		stride = 1
	}

	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
