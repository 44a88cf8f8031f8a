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

package drivestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"github.com/kraklabs/gdrive-ingestd/internal/retry"
	"google.golang.org/api/drive/v3"
)

const driveListingWorkerSlot = -1 // reserved slot for the single producer goroutine

// ListFiles returns a finite, lazily-produced stream of FileDescriptors
// matching filter, using whichever listing mode the provider is
// configured for. It is safe to call from exactly one goroutine (the
// orchestrator's producer).
func (p *Provider) ListFiles(ctx context.Context, filter contracts.FileTypeFilter, limiter contracts.Limiter, stop contracts.StopSignal, logger *slog.Logger) (<-chan contracts.FileDescriptor, <-chan error) {
	out := make(chan contracts.FileDescriptor)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		executor := retry.NewExecutor(p.cfg.RetryConfig, limiter, stop)
		cs, err := p.clientFor(ctx, driveListingWorkerSlot)
		if err != nil {
			errc <- err
			return
		}

		var walkErr error
		if p.cfg.AllAccessible {
			walkErr = p.listGlobalScope(ctx, cs, filter, executor, stop, out)
		} else {
			walkErr = p.walkScoped(ctx, cs, filter, executor, stop, out, logger)
		}
		if walkErr != nil {
			p.clearSlot(driveListingWorkerSlot)
			errc <- walkErr
		}
	}()

	return out, errc
}

// walkScoped performs an iterative DFS from the configured root folder
// ids, with an explicit stack (bounded stack depth regardless of folder
// nesting) and a seen set for cycle safety.
func (p *Provider) walkScoped(ctx context.Context, cs *clientSet, filter contracts.FileTypeFilter, executor *retry.Executor, stop contracts.StopSignal, out chan<- contracts.FileDescriptor, logger *slog.Logger) error {
	stack := append([]string(nil), p.cfg.RootFolderIDs...)
	seen := make(map[string]struct{}, len(stack))

	for len(stack) > 0 {
		if stop.Stopped() {
			return nil
		}

		folderID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, visited := seen[folderID]; visited {
			continue
		}
		seen[folderID] = struct{}{}

		pageToken := ""
		for {
			if stop.Stopped() {
				return nil
			}

			query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQueryValue(folderID))
			page, next, err := p.listPage(ctx, cs, query, pageToken, executor)
			if err != nil {
				return fmt.Errorf("drivestore: list folder %s: %w", folderID, err)
			}

			for _, f := range page {
				if f.Trashed {
					continue
				}
				if isShortcut(f) {
					if logger != nil {
						logger.Debug("shortcut_skipped", "component", "drivestore", "flow", "walk", "file_id", f.Id, "file_name", f.Name)
					}
					continue
				}
				if isFolder(f) {
					stack = append(stack, f.Id)
					continue
				}
				d := toFileDescriptor(f)
				if filter.Matches(d) {
					select {
					case out <- d:
					case <-stop.Done():
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}

			if next == "" {
				break
			}
			pageToken = next
		}
	}
	return nil
}

// listGlobalScope lists all accessible non-trashed files matching filter
// via a single remote query compiled from the filter's MIME/extension
// rules.
func (p *Provider) listGlobalScope(ctx context.Context, cs *clientSet, filter contracts.FileTypeFilter, executor *retry.Executor, stop contracts.StopSignal, out chan<- contracts.FileDescriptor) error {
	query := compileGlobalQuery(filter)
	pageToken := ""
	for {
		if stop.Stopped() {
			return nil
		}

		page, next, err := p.listPage(ctx, cs, query, pageToken, executor)
		if err != nil {
			return fmt.Errorf("drivestore: global list: %w", err)
		}

		for _, f := range page {
			if f.Trashed || isFolder(f) || isShortcut(f) {
				continue
			}
			d := toFileDescriptor(f)
			if filter.Matches(d) {
				select {
				case out <- d:
				case <-stop.Done():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		if next == "" {
			return nil
		}
		pageToken = next
	}
}

// listPage issues one Files.List call through the backoff executor.
func (p *Provider) listPage(ctx context.Context, cs *clientSet, query, pageToken string, executor *retry.Executor) ([]*drive.File, string, error) {
	val, err := executor.Do(ctx, func() (any, error) {
		return p.doList(ctx, cs.drive, query, pageToken)
	})
	if err != nil {
		return nil, "", err
	}
	list := val.(*drive.FileList)
	return list.Files, list.NextPageToken, nil
}

// compileGlobalQuery builds a Drive query string from filter's
// exact-MIME, MIME-prefix, and extension/name-suffix rules.
func compileGlobalQuery(filter contracts.FileTypeFilter) string {
	var clauses []string
	for mime := range filter.ExactMIME {
		clauses = append(clauses, fmt.Sprintf("mimeType = '%s'", escapeQueryValue(mime)))
	}
	for _, prefix := range filter.MIMEPrefix {
		if prefix == "" {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("mimeType contains '%s'", escapeQueryValue(prefix)))
	}
	for ext := range filter.Extensions {
		clauses = append(clauses, fmt.Sprintf("name contains '.%s'", escapeQueryValue(ext)))
	}

	base := "trashed = false"
	if len(clauses) == 0 {
		return base
	}
	return base + " and (" + strings.Join(clauses, " or ") + ")"
}

func escapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "'", "\\'")
}
