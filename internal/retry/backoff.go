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

// Package retry wraps a nullary remote call with the limiter-gated,
// jittered exponential backoff contract every outbound attempt honors.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kraklabs/gdrive-ingestd/internal/contracts"
	"github.com/kraklabs/gdrive-ingestd/internal/metrics"
	"google.golang.org/api/googleapi"
)

// Config controls retry timing. MaxRetries is the number of retry
// attempts beyond the first (so total attempts on a permanently
// retryable failure is MaxRetries+1).
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// StatusError is implemented by remote-call failures that carry an HTTP
// status code, so Executor can decide retryability without depending on a
// specific HTTP client package.
type StatusError interface {
	error
	StatusCode() int
}

var retryableStatus = map[int]struct{}{
	429: {}, 500: {}, 502: {}, 503: {}, 504: {},
}

// IsRetryableStatus reports whether code is one of the enumerated
// retryable statuses. Only these statuses are retried, never bare
// network errors (timeouts, connection resets).
func IsRetryableStatus(code int) bool {
	_, ok := retryableStatus[code]
	return ok
}

// errorStatusCode extracts the HTTP status carried by err, if any. The
// Google API clients fail with *googleapi.Error (a plain Code field, no
// StatusCode method), so that shape is unwrapped here alongside the
// StatusError interface other callers can implement.
func errorStatusCode(err error) (int, bool) {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode(), true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

// Executor runs calls through the limiter, retrying retryable failures
// with jittered exponential backoff.
type Executor struct {
	cfg     Config
	limiter contracts.Limiter
	stop    contracts.StopSignal
}

// NewExecutor returns an Executor bound to limiter and stop.
func NewExecutor(cfg Config, limiter contracts.Limiter, stop contracts.StopSignal) *Executor {
	return &Executor{cfg: cfg, limiter: limiter, stop: stop}
}

// Do calls fn, acquiring the limiter before every attempt (including
// retries, so outbound request rate stays bounded under failure storms).
// On a retryable status error it sleeps base*2^(attempt-1) capped at
// MaxDelay, scaled by a uniform jitter in [0.7, 1.3), interruptibly.
func (e *Executor) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.BaseDelay
	b.MaxInterval = e.cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.3 // jitter band [0.7, 1.3)
	b.MaxElapsedTime = 0 // attempt budget is enforced by us, not by elapsed time
	b.Reset()            // re-seed currentInterval from the configured BaseDelay

	attempt := 0
	for {
		attempt++
		if err := e.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		val, err := fn()
		if err == nil {
			return val, nil
		}

		code, ok := errorStatusCode(err)
		if !ok || !IsRetryableStatus(code) || attempt > e.cfg.MaxRetries {
			return nil, err
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return nil, err
		}
		metrics.RetriesTotal.Inc()
		slog.Warn("google_api_retry", "component", "retry", "attempt", attempt, "status", code, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-e.stop.Done():
			timer.Stop()
			return nil, contracts.ErrShutdown
		}
	}
}
