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

package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
)

// ingestOne runs the per-file pipeline for a single file, returning the
// resulting status. It never returns an error: a failure mid-pipeline is
// logged and folded into contracts.StatusFailed, so per-file failures
// never abort the run.
func (o *Orchestrator) ingestOne(ctx context.Context, file contracts.FileDescriptor, workerSlot int, limiter contracts.Limiter, stop contracts.StopSignal) contracts.IngestStatus {
	if stop.Stopped() {
		return contracts.StatusSkippedStopped
	}

	if file.ModifiedTime != "" {
		exists, err := o.store.ExistsFileMtime(ctx, file.ID, file.ModifiedTime)
		if err != nil {
			if errors.Is(err, contracts.ErrShutdown) {
				return contracts.StatusSkippedStopped
			}
			o.logFailure(file, "exists_check", err)
			return contracts.StatusFailed
		}
		if exists {
			return contracts.StatusSkippedUnchanged
		}
	}

	extractor, ok := o.registry.Lookup(file)
	if !ok {
		o.logger.Debug("unsupported_file_type", "component", "ingest", "file_id", file.ID, "file_name", file.Name, "mime", file.MimeType, "ext", file.Extension)
		return contracts.StatusSkippedUnsupported
	}

	ec, err := o.provider.BuildExtractionContext(ctx, workerSlot, limiter, stop, o.cfg.Extraction)
	if err != nil {
		o.logFailure(file, "build_extraction_context", err)
		return contracts.StatusFailed
	}

	content, err := extractor.Extract(ctx, file, ec)
	if err != nil {
		if errors.Is(err, contracts.ErrShutdown) {
			return contracts.StatusSkippedStopped
		}
		o.logFailure(file, "extract", err)
		return contracts.StatusFailed
	}

	if stop.Stopped() {
		return contracts.StatusSkippedStopped
	}

	if skipped, ok := content.Metadata.Get("skipped"); ok && skipped == "size_limit" {
		return contracts.StatusSkippedOversize
	}

	if strings.TrimSpace(content.Text) == "" {
		return contracts.StatusSkippedEmpty
	}

	payload := buildPayload(file, content)

	if err := o.store.DeleteByFileID(ctx, file.ID); err != nil {
		if errors.Is(err, contracts.ErrShutdown) {
			return contracts.StatusSkippedStopped
		}
		o.logFailure(file, "delete_by_file_id", err)
		return contracts.StatusFailed
	}

	points, err := o.store.UpsertDocument(ctx, file.ID, file.Name, content.Text, payload, o.cfg.ChunkChars, o.cfg.OverlapChars)
	if err != nil {
		if errors.Is(err, contracts.ErrShutdown) {
			return contracts.StatusSkippedStopped
		}
		o.logFailure(file, "upsert_document", err)
		return contracts.StatusFailed
	}

	o.logger.Info("indexed", "component", "ingest", "file_id", file.ID, "file_name", file.Name,
		"file_type", content.FileType, "points", points)
	return contracts.StatusOK
}

// buildPayload composes the payload delete-then-upsert carries: the
// fixed identity fields plus every extractor metadata key.
func buildPayload(file contracts.FileDescriptor, content contracts.ExtractedContent) map[string]any {
	payload := map[string]any{
		"file_id":       file.ID,
		"file_name":     file.Name,
		"file_type":     content.FileType,
		"modified_time": file.ModifiedTime,
	}
	for _, k := range content.Metadata.Keys() {
		v, _ := content.Metadata.Get(k)
		payload[k] = v
	}
	return payload
}

func (o *Orchestrator) logFailure(file contracts.FileDescriptor, flow string, err error) {
	o.logger.Error("ingest_failed", "component", "ingest", "flow", flow,
		"file_id", file.ID, "file_name", file.Name, "mime", file.MimeType,
		"modified_time", file.ModifiedTime, "err", err)
}
