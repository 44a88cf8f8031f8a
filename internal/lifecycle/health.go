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

package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus is carried for callers that want to track readiness
// alongside the daemon's lifecycle; the /health and /healthz handlers
// themselves ignore it and always report 200.
type HealthStatus struct {
	Ready bool
}

// StartHealthServer starts a background HTTP server exposing /health,
// /healthz, and /metrics (via promhttp.Handler()). A port <= 0 disables
// the server entirely; callers are expected to pass the returned
// shutdown func to a deferred cleanup.
func StartHealthServer(host string, port int, status *HealthStatus, logger *slog.Logger) (shutdown func(context.Context) error) {
	if port <= 0 {
		logger.Info("health_server_disabled", "component", "lifecycle")
		return func(context.Context) error { return nil }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("health_server_start", "component", "lifecycle", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("health_server_error", "component", "lifecycle", "err", err)
		}
	}()

	return srv.Shutdown
}

// healthHandler answers GET /health and /healthz with 200 "ok\n". Any
// other path falls through to the mux's default 404.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
