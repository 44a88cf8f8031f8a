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

// Package config loads the daemon's configuration, one struct per
// concern, entirely from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"github.com/kraklabs/gdrive-ingestd/internal/drivestore"
	"github.com/kraklabs/gdrive-ingestd/internal/retry"
)

// StorageConfig controls the Google Drive storage provider.
type StorageConfig struct {
	Backend            string
	ServiceAccountJSON string
	FolderIDs          []string
	AllAccessible      bool
	MaxRowsPerSheet    int
	Backoff            retry.Config
	RPS                float64
	Burst              int
}

// FeatureFlags gates individual extractor families via the
// FILE_TYPE_*_ENABLED keys.
type FeatureFlags struct {
	Text   bool
	PDF    bool
	Office bool
	Google bool
}

// FormatLimits bundles the per-format size and depth caps.
type FormatLimits struct {
	TextMaxBytes    int64
	PDFMaxBytes     int64
	OfficeMaxBytes  int64
	PDFMaxPages     int
	ExcelMaxSheets  int
	PDFEngine       string
	LegacyDocBinary string
	LegacyXlsBinary string
	LegacyPptBinary string
}

// VectorConfig controls the Qdrant connection and the QA-facing search
// surface (top_k/max_context_chars; the QA service itself lives in a
// separate process).
type VectorConfig struct {
	URL             string
	Collection      string
	EmbedModel      string
	EmbedBaseURL    string
	EmbedAPIKey     string
	EmbedDimension  int
	TopK            int
	MaxContextChars int
}

// IngestConfig controls the orchestrator's scheduling and chunking.
type IngestConfig struct {
	Mode                 string // "once" or "loop"
	PollSeconds          int
	Workers              int
	ProgressFiles        int
	ProgressSeconds      int
	ShutdownGraceSeconds int
	ChunkChars           int
	OverlapChars         int
}

// HealthConfig controls the health/metrics HTTP endpoint.
type HealthConfig struct {
	Host string
	Port int
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level     string
	PlainText bool
}

// Config is the complete process configuration, assembled entirely from
// environment variables.
type Config struct {
	Storage          StorageConfig
	Features         FeatureFlags
	Limits           FormatLimits
	Vector           VectorConfig
	Ingest           IngestConfig
	Health           HealthConfig
	Log              LogConfig
	SmokeTestSeconds int
}

// Load reads and validates the process configuration from the
// environment. It returns a precise error message on any fatal
// misconfiguration so startup logs say exactly what to fix.
func Load() (Config, error) {
	cfg := Config{
		Storage: StorageConfig{
			Backend:            getEnv("STORAGE_BACKEND", "google_drive"),
			ServiceAccountJSON: getEnv("STORAGE_GOOGLE_DRIVE_SERVICE_ACCOUNT_JSON", ""),
			AllAccessible:      getBool("STORAGE_GOOGLE_DRIVE_ALL_ACCESSIBLE", false),
			MaxRowsPerSheet:    getInt("STORAGE_GOOGLE_DRIVE_MAX_ROWS_PER_SHEET", 1000),
			Backoff: retry.Config{
				MaxRetries: getInt("STORAGE_GOOGLE_DRIVE_BACKOFF_RETRIES", 5),
				BaseDelay:  getSeconds("STORAGE_GOOGLE_DRIVE_BACKOFF_BASE_DELAY_SECONDS", 1),
				MaxDelay:   getSeconds("STORAGE_GOOGLE_DRIVE_BACKOFF_MAX_DELAY_SECONDS", 60),
			},
			RPS:   getFloat("STORAGE_GOOGLE_DRIVE_API_RPS", 5),
			Burst: getInt("STORAGE_GOOGLE_DRIVE_API_BURST", 10),
		},
		Features: FeatureFlags{
			Text:   getBool("FILE_TYPE_TEXT_ENABLED", true),
			PDF:    getBool("FILE_TYPE_PDF_ENABLED", true),
			Office: getBool("FILE_TYPE_OFFICE_ENABLED", true),
			Google: getBool("FILE_TYPE_GOOGLE_ENABLED", true),
		},
		Limits: FormatLimits{
			TextMaxBytes:    megabytes(getInt("TEXT_MAX_FILE_SIZE_MB", 5)),
			PDFMaxBytes:     megabytes(getInt("PDF_MAX_FILE_SIZE_MB", 20)),
			OfficeMaxBytes:  megabytes(getInt("OFFICE_MAX_FILE_SIZE_MB", 20)),
			PDFMaxPages:     getInt("PDF_MAX_PAGES", 200),
			ExcelMaxSheets:  getInt("EXCEL_MAX_SHEETS", 20),
			PDFEngine:       getEnv("PDF_EXTRACTION_ENGINE", "pypdf"),
			LegacyDocBinary: getEnv("OFFICE_LEGACY_DOC_HELPER", ""),
			LegacyXlsBinary: getEnv("OFFICE_LEGACY_XLS_HELPER", ""),
			LegacyPptBinary: getEnv("OFFICE_LEGACY_PPT_HELPER", ""),
		},
		Vector: VectorConfig{
			URL:             getEnv("QDRANT_URL", "localhost:6334"),
			Collection:      getEnv("QDRANT_COLLECTION", "gdrive_assistant"),
			EmbedModel:      getEnv("EMBED_MODEL", "text-embedding-3-small"),
			EmbedBaseURL:    getEnv("EMBED_BASE_URL", "https://api.openai.com/v1"),
			EmbedAPIKey:     getEnv("EMBED_API_KEY", ""),
			EmbedDimension:  getInt("EMBED_DIMENSION", 1536),
			TopK:            getInt("TOP_K", 5),
			MaxContextChars: getInt("MAX_CONTEXT_CHARS", 8000),
		},
		Ingest: IngestConfig{
			Mode:                 getEnv("INGEST_MODE", "once"),
			PollSeconds:          getInt("INGEST_POLL_SECONDS", 300),
			Workers:              getInt("INGEST_WORKERS", 6),
			ProgressFiles:        getInt("INGEST_PROGRESS_FILES", 50),
			ProgressSeconds:      getInt("INGEST_PROGRESS_SECONDS", 30),
			ShutdownGraceSeconds: getInt("INGEST_SHUTDOWN_GRACE_SECONDS", 5),
			ChunkChars:           getInt("CHUNK_CHARS", 1500),
			OverlapChars:         getInt("CHUNK_OVERLAP_CHARS", 200),
		},
		Health: HealthConfig{
			Host: getEnv("HEALTH_HOST", "0.0.0.0"),
			Port: getInt("INGEST_HEALTH_PORT", getInt("BOT_HEALTH_PORT", 8080)),
		},
		Log: LogConfig{
			Level:     getEnv("LOG_LEVEL", "info"),
			PlainText: getBool("LOG_PLAIN_TEXT", false),
		},
		SmokeTestSeconds: getInt("SMOKE_TEST_SECONDS", 0),
	}

	if raw := os.Getenv("STORAGE_GOOGLE_DRIVE_FOLDER_IDS"); raw != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return Config{}, fmt.Errorf("config: STORAGE_GOOGLE_DRIVE_FOLDER_IDS must be a JSON array of strings: %w", err)
		}
		cfg.Storage.FolderIDs = ids
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Storage.Backend != "google_drive" {
		return fmt.Errorf("config: unsupported STORAGE_BACKEND %q (only %q is supported)", c.Storage.Backend, "google_drive")
	}
	if !c.Storage.AllAccessible && len(c.Storage.FolderIDs) == 0 {
		return fmt.Errorf("config: STORAGE_GOOGLE_DRIVE_FOLDER_IDS must name at least one root folder id unless STORAGE_GOOGLE_DRIVE_ALL_ACCESSIBLE=true")
	}
	if c.Storage.RPS <= 0 {
		return fmt.Errorf("config: STORAGE_GOOGLE_DRIVE_API_RPS must be > 0, got %v", c.Storage.RPS)
	}
	if c.Storage.Burst <= 0 {
		return fmt.Errorf("config: STORAGE_GOOGLE_DRIVE_API_BURST must be > 0, got %d", c.Storage.Burst)
	}
	if c.Vector.TopK < 1 || c.Vector.TopK > 50 {
		return fmt.Errorf("config: TOP_K must be in [1, 50], got %d", c.Vector.TopK)
	}
	if c.Vector.MaxContextChars < 500 || c.Vector.MaxContextChars > 100000 {
		return fmt.Errorf("config: MAX_CONTEXT_CHARS must be in [500, 100000], got %d", c.Vector.MaxContextChars)
	}
	if c.Ingest.Mode != "once" && c.Ingest.Mode != "loop" {
		return fmt.Errorf("config: INGEST_MODE must be %q or %q, got %q", "once", "loop", c.Ingest.Mode)
	}
	if c.Ingest.Workers < 1 || c.Ingest.Workers > 64 {
		return fmt.Errorf("config: INGEST_WORKERS must be in [1, 64], got %d", c.Ingest.Workers)
	}
	if c.Limits.PDFEngine != "pypdf" && c.Limits.PDFEngine != "pdfplumber" {
		return fmt.Errorf("config: PDF_EXTRACTION_ENGINE must be %q or %q, got %q", "pypdf", "pdfplumber", c.Limits.PDFEngine)
	}
	return nil
}

// DrivestoreConfig projects the subset of Config the storage provider
// consumes, built once at startup.
func (c Config) DrivestoreConfig() drivestore.Config {
	return drivestore.Config{
		ServiceAccountJSON: c.Storage.ServiceAccountJSON,
		RootFolderIDs:      c.Storage.FolderIDs,
		AllAccessible:      c.Storage.AllAccessible,
		RetryConfig:        c.Storage.Backoff,
		MaxRowsPerSheet:    c.Storage.MaxRowsPerSheet,
	}
}

// ExtractionSettings projects the subset of Config extractors consult.
func (c Config) ExtractionSettings() contracts.ExtractionSettings {
	return contracts.ExtractionSettings{
		TextMaxBytes:    c.Limits.TextMaxBytes,
		PDFMaxBytes:     c.Limits.PDFMaxBytes,
		OfficeMaxBytes:  c.Limits.OfficeMaxBytes,
		PDFMaxPages:     c.Limits.PDFMaxPages,
		ExcelMaxSheets:  c.Limits.ExcelMaxSheets,
		MaxRowsPerSheet: c.Storage.MaxRowsPerSheet,
		PDFEngine:       c.Limits.PDFEngine,
	}
}

func megabytes(n int) int64 { return int64(n) * 1024 * 1024 }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getSeconds(key string, fallbackSeconds float64) time.Duration {
	return time.Duration(getFloat(key, fallbackSeconds) * float64(time.Second))
}
