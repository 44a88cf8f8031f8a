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

package vectorstore

import (
	"fmt"

	"github.com/google/uuid"
)

// pointNamespacePrefix is the name prefix hashed into every point ID.
// Changing it would orphan every previously written point, so treat it
// as frozen.
const pointNamespacePrefix = "gdrive-assistant-bot"

// PointID derives the deterministic UUIDv5 point id for chunk idx of
// document docID: re-ingesting the same chunk always overwrites the same
// point.
func PointID(docID string, idx int) string {
	name := fmt.Sprintf("%s:%s:%d", pointNamespacePrefix, docID, idx)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
