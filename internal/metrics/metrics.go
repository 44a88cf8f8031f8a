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

// Package metrics defines the Prometheus collectors served on the health
// mux's /metrics route: per-status ingest counts, retry counts, worker
// gauge, and run duration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesProcessed counts ingest results by terminal status
	// (ok, failed, skipped_unchanged, skipped_empty, skipped_oversize,
	// skipped_unsupported, skipped_stopped).
	FilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gdrive_ingestd",
		Name:      "files_processed_total",
		Help:      "Count of files processed by terminal ingest status.",
	}, []string{"status"})

	// RetriesTotal counts backoff retry attempts against the storage
	// provider's external API calls.
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gdrive_ingestd",
		Name:      "retries_total",
		Help:      "Count of retried external API calls.",
	})

	// ActiveWorkers reports the number of worker goroutines currently
	// configured for the running ingest cycle.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gdrive_ingestd",
		Name:      "active_workers",
		Help:      "Number of worker goroutines in the current ingest run.",
	})

	// RunDurationSeconds observes the wall-clock duration of each
	// run_once cycle.
	RunDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gdrive_ingestd",
		Name:      "run_duration_seconds",
		Help:      "Duration of a single run_once ingest cycle.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)
