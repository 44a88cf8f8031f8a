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
	"io"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"github.com/kraklabs/gdrive-ingestd/internal/retry"
)

// BuildExtractionContext returns a fresh ExtractionContext for
// workerSlot. The returned context's DownloadBinary/DownloadExport
// closures carry their own backoff executor bound to limiter/stop.
func (p *Provider) BuildExtractionContext(ctx context.Context, workerSlot int, limiter contracts.Limiter, stop contracts.StopSignal, settings contracts.ExtractionSettings) (contracts.ExtractionContext, error) {
	cs, err := p.clientFor(ctx, workerSlot)
	if err != nil {
		return contracts.ExtractionContext{}, err
	}

	executor := retry.NewExecutor(p.cfg.RetryConfig, limiter, stop)

	ec := contracts.ExtractionContext{
		Limiter:  limiter,
		Stop:     stop,
		Settings: settings,
		ExecuteWithBackoff: func(ctx context.Context, fn func() (any, error)) (any, error) {
			return executor.Do(ctx, fn)
		},
		DownloadBinary: func(ctx context.Context, fileID string) ([]byte, error) {
			val, err := executor.Do(ctx, func() (any, error) {
				resp, err := cs.drive.Files.Get(fileID).Context(ctx).Download()
				if err != nil {
					return nil, err
				}
				defer resp.Body.Close()
				return io.ReadAll(resp.Body)
			})
			if err != nil {
				return nil, fmt.Errorf("drivestore: download %s: %w", fileID, err)
			}
			return val.([]byte), nil
		},
		DownloadExport: func(ctx context.Context, fileID, exportMIME string) ([]byte, error) {
			val, err := executor.Do(ctx, func() (any, error) {
				resp, err := cs.drive.Files.Export(fileID, exportMIME).Context(ctx).Download()
				if err != nil {
					return nil, err
				}
				defer resp.Body.Close()
				return io.ReadAll(resp.Body)
			})
			if err != nil {
				return nil, fmt.Errorf("drivestore: export %s as %s: %w", fileID, exportMIME, err)
			}
			return val.([]byte), nil
		},
		GetGoogleDoc: func(ctx context.Context, fileID string) (any, error) {
			docsSvc, err := p.docsClientFor(ctx, cs)
			if err != nil {
				return nil, err
			}
			return executor.Do(ctx, func() (any, error) {
				return docsSvc.Documents.Get(fileID).Context(ctx).Do()
			})
		},
		GetGoogleSheet: func(ctx context.Context, fileID string) (any, error) {
			sheetsSvc, err := p.sheetsClientFor(ctx, cs)
			if err != nil {
				return nil, err
			}
			return executor.Do(ctx, func() (any, error) {
				return sheetsSvc.Spreadsheets.Get(fileID).IncludeGridData(true).Context(ctx).Do()
			})
		},
		GetGoogleSlides: func(ctx context.Context, fileID string) (any, error) {
			slidesSvc, err := p.slidesClientFor(ctx, cs)
			if err != nil {
				return nil, err
			}
			return executor.Do(ctx, func() (any, error) {
				return slidesSvc.Presentations.Get(fileID).Context(ctx).Do()
			})
		},
	}
	return ec, nil
}
