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

package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kraklabs/gdrive-ingestd/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_EmbedReturnsVectorsInRequestOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		// Answer out of order; the client must reorder by index.
		resp := map[string]any{"data": []map[string]any{
			{"embedding": []float32{0.2, 0.2}, "index": 1},
			{"embedding": []float32{0.1, 0.1}, "index": 0},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := embedding.NewClient(srv.URL, "key", "test-model", 2)
	vectors, err := c.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.1}, vectors[0])
	assert.Equal(t, []float32{0.2, 0.2}, vectors[1])
}

func TestClient_EmbedSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := embedding.NewClient(srv.URL, "key", "test-model", 2)
	_, err := c.Embed(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_EmbedEmptyInputSkipsRequest(t *testing.T) {
	c := embedding.NewClient("http://127.0.0.1:1", "key", "m", 2)
	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestMock_DeterministicAndSized(t *testing.T) {
	m := embedding.NewMock(8)
	a, err := m.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.Len(t, a, 2)
	assert.Len(t, a[0], 8)
	assert.NotEqual(t, a[0], a[1])
}
