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

package lifecycle

import (
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_Returns200OK(t *testing.T) {
	for _, path := range []string{"/health", "/healthz"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		healthHandler(rec, req)

		assert.Equal(t, 200, rec.Code)
		assert.Equal(t, "ok\n", rec.Body.String())
	}
}

func TestSignal_TriggerIsIdempotent(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.Stopped())

	s.Trigger()
	s.Trigger() // second call must not panic on a closed channel
	assert.True(t, s.Stopped())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed after Trigger")
	}
}

func TestSignal_ConcurrentTrigger(t *testing.T) {
	s := NewSignal()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Trigger()
		}()
	}
	wg.Wait()
	assert.True(t, s.Stopped())
}
