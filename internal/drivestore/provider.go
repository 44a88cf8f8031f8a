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

// Package drivestore implements the Google Drive storage provider:
// recursive (scoped) and query-based (global) listing with cycle
// detection, plus per-worker lazily-built API clients for extraction.
package drivestore

import (
	"context"
	"fmt"
	"os"
	"sync"

	"cloud.google.com/go/compute/metadata"
	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"github.com/kraklabs/gdrive-ingestd/internal/retry"
	"golang.org/x/oauth2/google"
	docsapi "google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
	slidesapi "google.golang.org/api/slides/v1"
)

const folderMIME = "application/vnd.google-apps.folder"

// Config controls how the provider builds credentials and listing scope.
type Config struct {
	ServiceAccountJSON string
	RootFolderIDs      []string
	AllAccessible      bool
	RetryConfig        retry.Config
	MaxRowsPerSheet    int
}

// clientSet bundles the lazily-constructed API services for one worker
// slot. Optional auxiliary clients (docs/sheets/slides) are built on
// first use.
type clientSet struct {
	drive  *drive.Service
	docs   *docsapi.Service
	sheets *sheetsapi.Service
	slides *slidesapi.Service
}

// Provider is the Google Drive storage provider. The Google SDK clients
// are not documented as safe for concurrent use, so each worker slot of
// the fixed-size pool gets its own cached clientSet, cleared on
// partial-build failure so the next attempt rebuilds from scratch.
type Provider struct {
	cfg Config

	mu      sync.Mutex
	clients map[int]*clientSet

	// doList issues one Files.List call. Overridable in tests so the
	// walk/cycle-detection/filter logic can be exercised without a real
	// credentialed Drive service.
	doList func(ctx context.Context, svc *drive.Service, query, pageToken string) (*drive.FileList, error)
}

// New returns a Provider for the given configuration.
func New(cfg Config) *Provider {
	return &Provider{
		cfg:     cfg,
		clients: make(map[int]*clientSet),
		doList:  defaultDoList,
	}
}

// CredentialSource reports, for startup logging only, whether the
// provider will authenticate with an explicit service-account key file
// or fall back to Application Default Credentials — and, in the latter
// case, whether the process is running on GCE and can therefore reach
// the instance metadata server for them.
func CredentialSource(cfg Config) string {
	if cfg.ServiceAccountJSON != "" {
		return "service_account_file"
	}
	if metadata.OnGCE() {
		return "gce_metadata_server"
	}
	return "application_default_credentials"
}

// ValidateCredentials eagerly parses the configured service-account key
// file so a bad or missing credential fails startup with a precise
// message instead of surfacing on the first listing call. When no file
// is configured, Application Default Credentials are resolved lazily by
// the client builders and nothing is checked here.
func (p *Provider) ValidateCredentials(ctx context.Context) error {
	if p.cfg.ServiceAccountJSON == "" {
		return nil
	}
	data, err := os.ReadFile(p.cfg.ServiceAccountJSON)
	if err != nil {
		return fmt.Errorf("drivestore: read service account key: %w", err)
	}
	if _, err := google.CredentialsFromJSON(ctx, data, drive.DriveReadonlyScope); err != nil {
		return fmt.Errorf("drivestore: parse service account key %s: %w", p.cfg.ServiceAccountJSON, err)
	}
	return nil
}

func defaultDoList(ctx context.Context, svc *drive.Service, query, pageToken string) (*drive.FileList, error) {
	call := svc.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size, trashed, shortcutDetails)").
		PageSize(1000).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

// clientOptions returns the shared credential options plus the read-only
// scope for one API service.
func (p *Provider) clientOptions(scope string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(scope)}
	if p.cfg.ServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsFile(p.cfg.ServiceAccountJSON))
	}
	return opts
}

// clientFor returns (building if necessary) the clientSet for workerSlot.
func (p *Provider) clientFor(ctx context.Context, workerSlot int) (*clientSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cs, ok := p.clients[workerSlot]; ok {
		return cs, nil
	}

	cs := &clientSet{}
	driveSvc, err := drive.NewService(ctx, p.clientOptions(drive.DriveReadonlyScope)...)
	if err != nil {
		// Partial-build failure: nothing was cached for this slot yet, so
		// there is nothing to clear; the next call retries from scratch.
		return nil, fmt.Errorf("drivestore: build drive client: %w", err)
	}
	cs.drive = driveSvc

	p.clients[workerSlot] = cs
	return cs, nil
}

// clearSlot removes a partially-built client set so the next attempt
// starts clean.
func (p *Provider) clearSlot(workerSlot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, workerSlot)
}

func (p *Provider) docsClientFor(ctx context.Context, cs *clientSet) (*docsapi.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cs.docs != nil {
		return cs.docs, nil
	}
	svc, err := docsapi.NewService(ctx, p.clientOptions(docsapi.DocumentsReadonlyScope)...)
	if err != nil {
		return nil, fmt.Errorf("drivestore: build docs client: %w", err)
	}
	cs.docs = svc
	return svc, nil
}

func (p *Provider) sheetsClientFor(ctx context.Context, cs *clientSet) (*sheetsapi.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cs.sheets != nil {
		return cs.sheets, nil
	}
	svc, err := sheetsapi.NewService(ctx, p.clientOptions(sheetsapi.SpreadsheetsReadonlyScope)...)
	if err != nil {
		return nil, fmt.Errorf("drivestore: build sheets client: %w", err)
	}
	cs.sheets = svc
	return svc, nil
}

func (p *Provider) slidesClientFor(ctx context.Context, cs *clientSet) (*slidesapi.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cs.slides != nil {
		return cs.slides, nil
	}
	svc, err := slidesapi.NewService(ctx, p.clientOptions(slidesapi.PresentationsReadonlyScope)...)
	if err != nil {
		return nil, fmt.Errorf("drivestore: build slides client: %w", err)
	}
	cs.slides = svc
	return svc, nil
}

func toFileDescriptor(f *drive.File) contracts.FileDescriptor {
	d := contracts.FileDescriptor{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Extension:    extensionOf(f.Name),
		Raw:          contracts.NewBag(),
	}
	if f.Size > 0 {
		size := f.Size
		d.SizeBytes = &size
	}
	d.Raw.Set("trashed", f.Trashed)
	d.Raw.Set("shortcut", f.ShortcutDetails != nil)
	return d
}

func isFolder(f *drive.File) bool { return f.MimeType == folderMIME }

func isShortcut(f *drive.File) bool { return f.ShortcutDetails != nil }
