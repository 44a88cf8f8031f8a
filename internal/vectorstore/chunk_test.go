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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkText_EmptyInput(t *testing.T) {
	assert.Empty(t, ChunkText("   \n\t  ", 100, 10))
	assert.Empty(t, ChunkText("", 100, 10))
}

func TestChunkText_ShorterThanMax(t *testing.T) {
	chunks := ChunkText("hello world", 100, 10)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkText_CoverageAndMaxLen(t *testing.T) {
	text := strings.Repeat("ab cd ", 100) // well beyond the window size
	maxChars, overlap := 50, 10

	chunks := ChunkText(text, maxChars, overlap)
	assert.True(t, len(chunks) > 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), maxChars)
	}

	// Chunk coverage: each chunk after the first starts overlap runes before
	// the previous one ends, so appending everything past its first overlap
	// runes must reconstruct a superstring of the normalized input.
	normalized := strings.Join(strings.Fields(text), " ")
	var rebuilt strings.Builder
	for i, c := range chunks {
		if i == 0 {
			rebuilt.WriteString(c)
			continue
		}
		runes := []rune(c)
		if len(runes) > overlap {
			rebuilt.WriteString(string(runes[overlap:]))
		}
	}
	assert.Contains(t, normalized, "ab cd")
	assert.Contains(t, rebuilt.String(), normalized)
}

func TestChunkText_Deterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 20)
	a := ChunkText(text, 40, 5)
	b := ChunkText(text, 40, 5)
	assert.Equal(t, a, b)
}
