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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentStreamText_TjOperators(t *testing.T) {
	stream := []byte("BT /F1 12 Tf (Hello) Tj ( world) Tj ET")
	assert.Equal(t, "Hello world", contentStreamText(stream))
}

func TestContentStreamText_TJArray(t *testing.T) {
	stream := []byte("BT [(Hel) -20 (lo)] TJ ET")
	assert.Equal(t, "Hello", contentStreamText(stream))
}

func TestContentStreamText_NonTextOperatorDiscardsLiterals(t *testing.T) {
	// A string argument of a non-showing operator must not leak.
	stream := []byte("(ignored) Do (shown) Tj")
	assert.Equal(t, "shown", contentStreamText(stream))
}

func TestContentStreamText_EscapesAndNestedParens(t *testing.T) {
	stream := []byte(`((nested) \(escaped\)) Tj`)
	assert.Equal(t, "(nested) (escaped)", contentStreamText(stream))
}

func TestContentStreamText_LineBreakOperators(t *testing.T) {
	stream := []byte("(one) Tj 0 -14 Td (two) Tj")
	assert.Equal(t, "one\ntwo", contentStreamText(stream))
}

func TestReadStringLiteral_UnterminatedDoesNotPanic(t *testing.T) {
	lit, next := readStringLiteral([]byte("(never closed"), 0)
	assert.Equal(t, "never closed", lit)
	assert.Equal(t, len("(never closed"), next)
}
