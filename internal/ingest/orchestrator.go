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

// Package ingest implements the per-file ingestion pipeline and the
// bounded worker-pool scheduler that drives it over a listed stream of
// files.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"github.com/kraklabs/gdrive-ingestd/internal/extract"
	"github.com/kraklabs/gdrive-ingestd/internal/metrics"
)

// Provider is the narrow surface of drivestore.Provider the orchestrator
// depends on, so tests can supply a fake storage backend without a real
// Drive credential.
type Provider interface {
	ListFiles(ctx context.Context, filter contracts.FileTypeFilter, limiter contracts.Limiter, stop contracts.StopSignal, logger *slog.Logger) (<-chan contracts.FileDescriptor, <-chan error)
	BuildExtractionContext(ctx context.Context, workerSlot int, limiter contracts.Limiter, stop contracts.StopSignal, settings contracts.ExtractionSettings) (contracts.ExtractionContext, error)
}

// ExtractorRegistry is the narrow surface of extract.Registry the
// orchestrator depends on.
type ExtractorRegistry interface {
	Lookup(d contracts.FileDescriptor) (extract.Extractor, bool)
	Filter() contracts.FileTypeFilter
}

// VectorStore is the narrow surface of vectorstore.Client the orchestrator
// depends on.
type VectorStore interface {
	ExistsFileMtime(ctx context.Context, fileID, modifiedTime string) (bool, error)
	DeleteByFileID(ctx context.Context, fileID string) error
	UpsertDocument(ctx context.Context, docID, source, text string, payload map[string]any, chunkChars, overlap int) (int, error)
}

// Config controls the scheduler and the chunking parameters passed to
// every upsert.
type Config struct {
	Workers               int
	PollSeconds           int
	ProgressEveryFiles    int
	ProgressEveryInterval time.Duration
	ChunkChars            int
	OverlapChars          int
	Extraction            contracts.ExtractionSettings
}

// Summary holds the per-run counters: per-status counts plus
// completed/total/workers/elapsed_ms.
type Summary struct {
	Counts    map[contracts.IngestStatus]int
	Completed int
	Total     int
	Workers   int
	ElapsedMS int64
}

// Orchestrator is the ingest pipeline's public entrypoint: RunOnce for
// a single pass and RunLoop for polling mode.
type Orchestrator struct {
	cfg      Config
	provider Provider
	registry ExtractorRegistry
	store    VectorStore
	logger   *slog.Logger
}

// New returns an Orchestrator wired to provider, registry, and store.
func New(cfg Config, provider Provider, registry ExtractorRegistry, store VectorStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Workers > 64 {
		cfg.Workers = 64
	}
	if cfg.ProgressEveryFiles < 1 {
		cfg.ProgressEveryFiles = 50
	}
	if cfg.ProgressEveryInterval <= 0 {
		cfg.ProgressEveryInterval = 30 * time.Second
	}
	return &Orchestrator{cfg: cfg, provider: provider, registry: registry, store: store, logger: logger}
}

// RunOnce lists the full corpus once, ingests every matching file through
// a bounded worker pool, and returns the run's summary. Per-file failures
// never abort the run; a listing/pagination failure does.
func (o *Orchestrator) RunOnce(ctx context.Context, limiter contracts.Limiter, stop contracts.StopSignal) (Summary, error) {
	start := time.Now()
	filter := o.registry.Filter()

	filesCh, errCh := o.provider.ListFiles(ctx, filter, limiter, stop, o.logger)

	o.logger.Info("parallelism", "component", "ingest", "flow", "run_once", "workers", o.cfg.Workers)
	metrics.ActiveWorkers.Set(float64(o.cfg.Workers))
	defer metrics.ActiveWorkers.Set(0)

	resultsCh := make(chan contracts.IngestStatus)
	var wg sync.WaitGroup
	for slot := 0; slot < o.cfg.Workers; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for file := range filesCh {
				status := o.ingestOne(ctx, file, slot, limiter, stop)
				select {
				case resultsCh <- status:
				case <-ctx.Done():
					return
				}
			}
		}(slot)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	counts := make(map[contracts.IngestStatus]int)
	completed := 0
	lastLog := time.Now()
	for status := range resultsCh {
		counts[status]++
		completed++
		metrics.FilesProcessed.WithLabelValues(string(status)).Inc()
		if completed%o.cfg.ProgressEveryFiles == 0 || time.Since(lastLog) >= o.cfg.ProgressEveryInterval {
			o.logProgress(completed, counts, start)
			lastLog = time.Now()
		}
	}
	o.logProgress(completed, counts, start) // forced once at the end

	// errCh is closed by the provider's listing goroutine before out
	// closes (see drivestore.ListFiles), so by the time filesCh (out) is
	// fully drained this receive returns immediately: either the one
	// buffered listing error, or the zero value on a closed empty channel.
	if err := <-errCh; err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Counts:    counts,
		Completed: completed,
		Total:     completed,
		Workers:   o.cfg.Workers,
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	metrics.RunDurationSeconds.Observe(time.Since(start).Seconds())
	o.logger.Info("ingest_done", "component", "ingest", "flow", "run_once",
		"completed", summary.Completed, "total", summary.Total,
		"workers", summary.Workers, "elapsed_ms", summary.ElapsedMS,
		"ok", counts[contracts.StatusOK], "failed", counts[contracts.StatusFailed],
		"skipped_unchanged", counts[contracts.StatusSkippedUnchanged],
		"skipped_empty", counts[contracts.StatusSkippedEmpty],
		"skipped_oversize", counts[contracts.StatusSkippedOversize],
		"skipped_unsupported", counts[contracts.StatusSkippedUnsupported],
		"skipped_stopped", counts[contracts.StatusSkippedStopped],
	)
	return summary, nil
}

// RunLoop calls RunOnce repeatedly, waiting poll_seconds on the shutdown
// signal between cycles, and exits promptly when signaled.
func (o *Orchestrator) RunLoop(ctx context.Context, limiter contracts.Limiter, stop contracts.StopSignal) error {
	for {
		if stop.Stopped() {
			return nil
		}
		if _, err := o.RunOnce(ctx, limiter, stop); err != nil {
			return err
		}
		if stop.Stopped() {
			return nil
		}

		o.logger.Info("polling", "component", "ingest", "poll_seconds", o.cfg.PollSeconds)
		timer := time.NewTimer(time.Duration(o.cfg.PollSeconds) * time.Second)
		select {
		case <-timer.C:
		case <-stop.Done():
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

func (o *Orchestrator) logProgress(completed int, counts map[contracts.IngestStatus]int, start time.Time) {
	o.logger.Info("progress", "component", "ingest", "flow", "run_once",
		"completed", completed, "elapsed_ms", time.Since(start).Milliseconds(),
		"ok", counts[contracts.StatusOK], "failed", counts[contracts.StatusFailed],
	)
}
