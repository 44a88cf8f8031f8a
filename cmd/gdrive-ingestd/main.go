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

// Package main implements the gdrive-ingestd daemon: it mirrors a Google
// Drive corpus into a Qdrant vector collection on a schedule.
//
// Usage:
//
//	gdrive-ingestd                 Run per INGEST_MODE (default: once)
//	gdrive-ingestd --once           Force a single run regardless of INGEST_MODE
//	gdrive-ingestd --config-check   Validate configuration and exit
//	gdrive-ingestd --version        Show version and exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/gdrive-ingestd/internal/config"
	"github.com/kraklabs/gdrive-ingestd/internal/drivestore"
	"github.com/kraklabs/gdrive-ingestd/internal/embedding"
	"github.com/kraklabs/gdrive-ingestd/internal/extract"
	"github.com/kraklabs/gdrive-ingestd/internal/ingest"
	"github.com/kraklabs/gdrive-ingestd/internal/lifecycle"
	"github.com/kraklabs/gdrive-ingestd/internal/logging"
	"github.com/kraklabs/gdrive-ingestd/internal/ratelimit"
	"github.com/kraklabs/gdrive-ingestd/internal/vectorstore"
)

// Version information, set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		once        = flag.Bool("once", false, "Run a single ingest cycle regardless of INGEST_MODE, then exit")
		configCheck = flag.Bool("config-check", false, "Validate configuration and exit without ingesting")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("gdrive-ingestd version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gdrive-ingestd: %v\n", err)
		os.Exit(1)
	}

	if *configCheck {
		fmt.Println("gdrive-ingestd: configuration OK")
		os.Exit(0)
	}

	logger := logging.New(logging.Options{Level: cfg.Log.Level, PlainText: cfg.Log.PlainText})
	slog.SetDefault(logger)
	logger.Info("startup", "component", "main", "version", version, "mode", cfg.Ingest.Mode, "workers", cfg.Ingest.Workers)

	stop := lifecycle.NewSignal()
	stopSignals := lifecycle.InstallSignalHandlers(stop, func(sig os.Signal) {
		logger.Info("shutdown_signal", "component", "main", "signal", sig.String())
	})
	defer stopSignals()

	health := &lifecycle.HealthStatus{Ready: true}
	shutdownHealth := lifecycle.StartHealthServer(cfg.Health.Host, cfg.Health.Port, health, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownHealth(ctx)
	}()

	limiter := ratelimit.New(cfg.Storage.RPS, cfg.Storage.Burst, stop)
	logger.Info("config", "component", "main", "backend", cfg.Storage.Backend,
		"rps", limiter.RPS(), "burst", cfg.Storage.Burst,
		"collection", cfg.Vector.Collection, "poll_seconds", cfg.Ingest.PollSeconds)

	var embedder vectorstore.Embedder
	if cfg.Vector.EmbedAPIKey == "" {
		logger.Warn("embedder_fallback_mock", "component", "main", "reason", "EMBED_API_KEY not set")
		embedder = embedding.NewMock(cfg.Vector.EmbedDimension)
	} else {
		embedder = embedding.NewClient(cfg.Vector.EmbedBaseURL, cfg.Vector.EmbedAPIKey, cfg.Vector.EmbedModel, cfg.Vector.EmbedDimension)
	}

	store, err := vectorstore.Dial(cfg.Vector.URL, cfg.Vector.Collection, embedder, false)
	if err != nil {
		logger.Error("startup_failed", "component", "main", "flow", "vectorstore_dial", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureCollection(ctx, embedder.Dimension()); err != nil {
		logger.Error("startup_failed", "component", "main", "flow", "ensure_collection", "err", err)
		os.Exit(1)
	}

	registry := buildRegistry(cfg)
	driveCfg := cfg.DrivestoreConfig()
	logger.Info("drive_credentials", "component", "main", "source", drivestore.CredentialSource(driveCfg))
	provider := drivestore.New(driveCfg)
	if err := provider.ValidateCredentials(ctx); err != nil {
		logger.Error("startup_failed", "component", "main", "flow", "credentials", "err", err)
		os.Exit(1)
	}

	orchestrator := ingest.New(ingest.Config{
		Workers:               cfg.Ingest.Workers,
		PollSeconds:           cfg.Ingest.PollSeconds,
		ProgressEveryFiles:    cfg.Ingest.ProgressFiles,
		ProgressEveryInterval: time.Duration(cfg.Ingest.ProgressSeconds) * time.Second,
		ChunkChars:            cfg.Ingest.ChunkChars,
		OverlapChars:          cfg.Ingest.OverlapChars,
		Extraction:            cfg.ExtractionSettings(),
	}, provider, registry, store, logger)

	if cfg.SmokeTestSeconds > 0 {
		// Container-orchestration smoke test: log, sleep the configured
		// duration (interruptibly), and exit without ingesting.
		logger.Info("smoke_test", "component", "main", "seconds", cfg.SmokeTestSeconds)
		select {
		case <-time.After(time.Duration(cfg.SmokeTestSeconds) * time.Second):
		case <-stop.Done():
		}
		logger.Info("smoke_test_done", "component", "main")
		os.Exit(0)
	}

	mode := cfg.Ingest.Mode
	if *once {
		mode = "once"
	}

	var runErr error
	switch mode {
	case "loop":
		runErr = orchestrator.RunLoop(ctx, limiter, stop)
	default:
		_, runErr = orchestrator.RunOnce(ctx, limiter, stop)
	}

	health.Ready = false
	if runErr != nil {
		logger.Error("ingest_run_failed", "component", "main", "err", runErr)
		gracefulExit(cfg, stop, 1)
	}
	gracefulExit(cfg, stop, 0)
}

// buildRegistry registers every extractor family gated by its
// FILE_TYPE_*_ENABLED flag.
func buildRegistry(cfg config.Config) *extract.Registry {
	reg := extract.NewRegistry()
	lim := cfg.Limits

	if cfg.Features.Text {
		reg.Register(extract.NewTextExtractor(lim.TextMaxBytes))
	}
	if cfg.Features.PDF {
		reg.Register(extract.NewPDFExtractor(lim.PDFMaxBytes, lim.PDFMaxPages, lim.PDFEngine))
	}
	if cfg.Features.Office {
		reg.Register(extract.NewWordExtractor(lim.OfficeMaxBytes, lim.LegacyDocBinary))
		reg.Register(extract.NewExcelExtractor(lim.OfficeMaxBytes, lim.ExcelMaxSheets, cfg.Storage.MaxRowsPerSheet, lim.LegacyXlsBinary))
		reg.Register(extract.NewSlidesExtractor(lim.OfficeMaxBytes, lim.LegacyPptBinary))
	}
	if cfg.Features.Google {
		reg.Register(extract.NewGoogleDocExtractor(lim.TextMaxBytes))
		reg.Register(extract.NewGoogleSheetExtractor(lim.TextMaxBytes, cfg.Storage.MaxRowsPerSheet))
		reg.Register(extract.NewGoogleSlideExtractor(lim.TextMaxBytes))
	}
	return reg
}

// gracefulExit triggers stop, sleeps for the full
// INGEST_SHUTDOWN_GRACE_SECONDS, then exits with code.
func gracefulExit(cfg config.Config, stop *lifecycle.Signal, code int) {
	stop.Trigger()
	time.Sleep(time.Duration(cfg.Ingest.ShutdownGraceSeconds) * time.Second)
	os.Exit(code)
}
