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

package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
)

// legacyOfficeExtractor invokes an out-of-process decoder for legacy
// binary Office formats (doc/xls/ppt): bytes are written to a temp file,
// the helper binary's stdout is captured as text, and the temp file is
// removed on every exit path.
type legacyOfficeExtractor struct {
	kind   string // "doc", "xls", "ppt" — used in error messages
	binary string // empty disables legacy decoding entirely
}

func newLegacyOfficeExtractor(kind, binary string) *legacyOfficeExtractor {
	return &legacyOfficeExtractor{kind: kind, binary: binary}
}

func (l *legacyOfficeExtractor) extract(ctx context.Context, d contracts.FileDescriptor, raw []byte) (contracts.ExtractedContent, error) {
	if l.binary == "" {
		return contracts.ExtractedContent{}, fmt.Errorf("office_legacy: no decoder configured for legacy .%s files (file %q)", l.kind, d.Name)
	}

	tmp, err := os.CreateTemp("", "gdrive-ingestd-legacy-*."+l.kind)
	if err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("office_legacy: create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return contracts.ExtractedContent{}, fmt.Errorf("office_legacy: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("office_legacy: close temp file: %w", err)
	}

	if _, err := exec.LookPath(l.binary); err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("office_legacy: decoder %q not found on PATH for file %q: %w", l.binary, d.Name, err)
	}

	cmd := exec.CommandContext(ctx, l.binary, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return contracts.ExtractedContent{}, fmt.Errorf("office_legacy: decoder %q exited with error for file %q: %w (stderr: %s)", l.binary, d.Name, err, stderr.String())
	}

	meta := contracts.NewBag()
	meta.Set("legacy_decoder", l.binary)
	return contracts.ExtractedContent{
		Text:     CollapseWhitespace(stdout.String()),
		FileType: l.kind,
		Metadata: meta,
	}, nil
}
