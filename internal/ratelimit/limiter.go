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

// Package ratelimit implements the token-bucket permit gate that every
// outbound remote call passes through, coordinated with the process-wide
// shutdown signal.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket of the given capacity (burst) and fill rate
// (rps tokens/second), wired to a StopSignal so a pending Acquire wakes up
// promptly on shutdown instead of riding out its full wait.
type Limiter struct {
	stop contracts.StopSignal

	mu      sync.Mutex
	wrapped *rate.Limiter
	rps     float64
}

// New returns a Limiter with the given fill rate (tokens/second) and
// burst capacity, wired to stop for cooperative shutdown.
func New(rps float64, burst int, stop contracts.StopSignal) *Limiter {
	return &Limiter{
		stop:    stop,
		wrapped: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
	}
}

// Acquire blocks until a token is available, ctx is cancelled, or the
// shutdown signal fires. It never holds an internal lock across the wait:
// x/time/rate.Limiter.Reserve does the top-up-then-consume bookkeeping
// under its own lock and returns immediately with a delay to honor, which
// this method then waits out against ctx/stop instead of its own mutex.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.stop.Stopped() {
		return contracts.ErrShutdown
	}

	r := l.wrapped.Reserve()
	if !r.OK() {
		// Burst of 0 or an otherwise unsatisfiable reservation: treat as an
		// immediate grant so a misconfigured limiter never deadlocks callers.
		return nil
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-l.stop.Done():
		r.Cancel()
		return contracts.ErrShutdown
	}
}

// RPS reports the configured fill rate, exposed for logging at startup.
func (l *Limiter) RPS() float64 {
	return l.rps
}
