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

// Package embedding provides vectorstore.Embedder implementations: a
// real HTTP backend and a deterministic mock, both hidden behind one
// interface.
package embedding

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Client calls an OpenAI-compatible embeddings endpoint. Ollama's
// /v1/embeddings surface and OpenAI's own are wire-compatible, so one
// client serves both backends.
type Client struct {
	http      *resty.Client
	model     string
	dimension int
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewClient builds an embedding Client against baseURL (e.g.
// "https://api.openai.com/v1" or "http://localhost:11434/v1"),
// authenticating with apiKey when non-empty.
func NewClient(baseURL, apiKey, model string, dimension int) *Client {
	h := resty.New().SetBaseURL(baseURL).SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		h.SetAuthToken(apiKey)
	}
	return &Client{http: h, model: model, dimension: dimension}
}

// Dimension reports the fixed vector size this client's model produces.
func (c *Client) Dimension() int { return c.dimension }

// Embed maps texts to fixed-dimension vectors in request order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out embeddingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: c.model, Input: texts}).
		SetResult(&out).
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding: request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding: %s: %s", resp.Status(), resp.String())
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding: expected %d vectors, got %d", len(texts), len(out.Data))
	}
	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding: response index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Mock is a deterministic, dependency-free Embedder used for smoke
// tests and local development without a real embedding backend.
type Mock struct {
	dimension int
}

// NewMock returns a Mock producing vectors of the given dimension.
func NewMock(dimension int) *Mock {
	if dimension <= 0 {
		dimension = 8
	}
	return &Mock{dimension: dimension}
}

func (m *Mock) Dimension() int { return m.dimension }

func (m *Mock) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, m.dimension)
		var h uint32 = 2166136261
		for _, b := range []byte(t) {
			h ^= uint32(b)
			h *= 16777619
		}
		for j := range v {
			h = h*1664525 + 1013904223
			v[j] = float32(h%1000) / 1000.0
		}
		vectors[i] = v
	}
	return vectors, nil
}
