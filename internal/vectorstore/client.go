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

// Package vectorstore implements the chunk/embed/upsert/delete/exists
// client contract against an external Qdrant collection.
package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Embedder maps a batch of strings to fixed-dimension vectors. Batch
// friendly so UpsertDocument can embed all of one document's chunks in a
// single call.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Client is the Qdrant-backed vector store client.
type Client struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	embedder    Embedder
	collection  string
}

// Dial connects to the Qdrant gRPC endpoint at addr (host:port) and
// returns a Client bound to collection.
func Dial(addr, collection string, embedder Embedder, useTLS bool) (*Client, error) {
	var creds grpc.DialOption
	if useTLS {
		creds = grpc.WithTransportCredentials(credentials.NewTLS(nil))
	} else {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	conn, err := grpc.NewClient(addr, creds)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: dial %s: %w", addr, err)
	}
	return &Client{
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		embedder:    embedder,
		collection:  collection,
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// EnsureCollection creates the collection with cosine distance and the
// given vector size iff absent, then creates payload indexes on file_id,
// modified_time, and source (used by the skip and delete paths).
// Missing-collection detection is by the remote's NotFound status; any
// other error surfaces.
func (c *Client) EnsureCollection(ctx context.Context, dim int) error {
	_, err := c.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: c.collection})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("vectorstore: check collection %s: %w", c.collection, err)
	}

	_, err = c.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", c.collection, err)
	}

	for _, field := range []string{"file_id", "modified_time", "source"} {
		_, err := c.points.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: c.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("vectorstore: create payload index on %s: %w", field, err)
		}
	}
	return nil
}

// UpsertDocument chunks text, embeds every chunk in one batch call, builds
// one VectorRecord per chunk with the given payload augmented by
// {text, source, ts, chunk}, and writes all of the document's points in a
// single upsert call. Returns the number of points written.
func (c *Client) UpsertDocument(ctx context.Context, docID, source, text string, payload map[string]any, chunkChars, overlap int) (int, error) {
	chunks := ChunkText(text, chunkChars, overlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := c.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: embed %s: %w", docID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("vectorstore: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		full := map[string]any{
			"text":   chunk,
			"source": source,
			"ts":     now,
			"chunk":  i,
		}
		for k, v := range payload {
			full[k] = v
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(docID, i)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(full),
		}
	}

	waitUpsert := true
	_, err = c.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points:         points,
		Wait:           &waitUpsert,
	})
	if err != nil {
		return 0, fmt.Errorf("vectorstore: upsert %s: %w", docID, err)
	}
	return len(points), nil
}

// DeleteByFileID deletes all points whose payload file_id equals fileID
// and waits for durability before returning.
func (c *Client) DeleteByFileID(ctx context.Context, fileID string) error {
	waitDelete := true
	_, err := c.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: matchKeyword("file_id", fileID),
			},
		},
		Wait: &waitDelete,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete by file_id %s: %w", fileID, err)
	}
	return nil
}

// ExistsFileMtime scrolls for one point matching both file_id and
// modified_time payload fields, returning true if any is present.
func (c *Client) ExistsFileMtime(ctx context.Context, fileID, modifiedTime string) (bool, error) {
	limit := uint32(1)
	resp, err := c.points.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: c.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				fieldMatch("file_id", fileID),
				fieldMatch("modified_time", modifiedTime),
			},
		},
		Limit: &limit,
	})
	if err != nil {
		return false, fmt.Errorf("vectorstore: exists_file_mtime %s: %w", fileID, err)
	}
	return len(resp.GetResult()) > 0, nil
}

// Search is exposed for the out-of-scope QA collaborator; ingest
// write-path correctness does not depend on it.
func (c *Client) Search(ctx context.Context, queryVector []float32, topK int) ([]*qdrant.ScoredPoint, error) {
	limit := uint64(topK)
	resp, err := c.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: c.collection,
		Vector:         queryVector,
		Limit:          limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	return resp.GetResult(), nil
}

// BuildContext renders hits into a single string capped at maxChars, for
// the QA collaborator to feed to its language model.
func BuildContext(hits []*qdrant.ScoredPoint, maxChars int) string {
	var b strings.Builder
	for _, hit := range hits {
		text := ""
		if v, ok := hit.GetPayload()["text"]; ok {
			text = v.GetStringValue()
		}
		if b.Len()+len(text)+1 > maxChars {
			remaining := maxChars - b.Len()
			if remaining > 0 {
				b.WriteString(text[:remaining])
			}
			break
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

func matchKeyword(field, value string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{fieldMatch(field, value)}}
}

func fieldMatch(field, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: field,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
