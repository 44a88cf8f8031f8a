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

package drivestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/gdrive-ingestd/internal/drivestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialSource_PrefersServiceAccountFile(t *testing.T) {
	got := drivestore.CredentialSource(drivestore.Config{ServiceAccountJSON: "/etc/secrets/sa.json"})
	assert.Equal(t, "service_account_file", got)
}

func TestCredentialSource_FallsBackOffGCE(t *testing.T) {
	// Outside of a GCE environment (true for any normal test runner),
	// metadata.OnGCE() is false, so an empty ServiceAccountJSON resolves
	// to plain Application Default Credentials.
	got := drivestore.CredentialSource(drivestore.Config{})
	assert.Equal(t, "application_default_credentials", got)
}

func TestValidateCredentials_NoFileConfiguredIsNoop(t *testing.T) {
	p := drivestore.New(drivestore.Config{})
	assert.NoError(t, p.ValidateCredentials(context.Background()))
}

func TestValidateCredentials_MissingFileFails(t *testing.T) {
	p := drivestore.New(drivestore.Config{ServiceAccountJSON: "/nonexistent/sa.json"})
	err := p.ValidateCredentials(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account key")
}

func TestValidateCredentials_MalformedKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	p := drivestore.New(drivestore.Config{ServiceAccountJSON: path})
	err := p.ValidateCredentials(context.Background())
	require.Error(t, err)
}
