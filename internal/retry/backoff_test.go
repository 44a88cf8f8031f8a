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

package retry_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kraklabs/gdrive-ingestd/internal/lifecycle"
	"github.com/kraklabs/gdrive-ingestd/internal/ratelimit"
	"github.com/kraklabs/gdrive-ingestd/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type statusErr struct {
	code int
}

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

// TestDo_AttemptBudget checks the attempt budget: on a permanently
// retryable error, outbound attempts equal max_retries+1.
func TestDo_AttemptBudget(t *testing.T) {
	stop := lifecycle.NewSignal()
	limiter := ratelimit.New(1000, 1000, stop) // effectively unthrottled

	cfg := retry.Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	executor := retry.NewExecutor(cfg, limiter, stop)

	attempts := 0
	_, err := executor.Do(context.Background(), func() (any, error) {
		attempts++
		return nil, statusErr{code: 503}
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts) // max_retries(3) + 1
}

// TestDo_RetryThenSuccess: one 429 then success yields exactly two
// attempts and the second response.
func TestDo_RetryThenSuccess(t *testing.T) {
	stop := lifecycle.NewSignal()
	limiter := ratelimit.New(1000, 1000, stop)
	cfg := retry.Config{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}
	executor := retry.NewExecutor(cfg, limiter, stop)

	attempts := 0
	start := time.Now()
	val, err := executor.Do(context.Background(), func() (any, error) {
		attempts++
		if attempts == 1 {
			return nil, statusErr{code: 429}
		}
		return "second-response", nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "second-response", val)
	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, elapsed, time.Duration(float64(cfg.BaseDelay)*0.6))
}

// TestDo_NonRetryableFailsImmediately asserts a non-retryable status never
// retries.
func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	stop := lifecycle.NewSignal()
	limiter := ratelimit.New(1000, 1000, stop)
	cfg := retry.Config{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	executor := retry.NewExecutor(cfg, limiter, stop)

	attempts := 0
	_, err := executor.Do(context.Background(), func() (any, error) {
		attempts++
		return nil, statusErr{code: 404}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

// TestDo_RetriesGoogleAPIError asserts the raw error shape the Drive,
// Docs, Sheets, and Slides clients actually fail with is classified as
// retryable without any wrapping at the call site.
func TestDo_RetriesGoogleAPIError(t *testing.T) {
	stop := lifecycle.NewSignal()
	limiter := ratelimit.New(1000, 1000, stop)
	cfg := retry.Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	executor := retry.NewExecutor(cfg, limiter, stop)

	attempts := 0
	val, err := executor.Do(context.Background(), func() (any, error) {
		attempts++
		if attempts == 1 {
			return nil, &googleapi.Error{Code: 503, Message: "backend unavailable"}
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", val)
	assert.Equal(t, 2, attempts)
}

// TestDo_WrappedGoogleAPIErrorStillClassified covers an operation that
// returns a googleapi.Error wrapped with fmt.Errorf("%w").
func TestDo_WrappedGoogleAPIErrorStillClassified(t *testing.T) {
	stop := lifecycle.NewSignal()
	limiter := ratelimit.New(1000, 1000, stop)
	cfg := retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	executor := retry.NewExecutor(cfg, limiter, stop)

	attempts := 0
	_, err := executor.Do(context.Background(), func() (any, error) {
		attempts++
		return nil, fmt.Errorf("list page: %w", &googleapi.Error{Code: 429})
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // max_retries(2) + 1
}

// TestDo_NonRetryableGoogleAPIErrorFailsImmediately keeps 4xx client
// errors out of the retry loop.
func TestDo_NonRetryableGoogleAPIErrorFailsImmediately(t *testing.T) {
	stop := lifecycle.NewSignal()
	limiter := ratelimit.New(1000, 1000, stop)
	cfg := retry.Config{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	executor := retry.NewExecutor(cfg, limiter, stop)

	attempts := 0
	_, err := executor.Do(context.Background(), func() (any, error) {
		attempts++
		return nil, &googleapi.Error{Code: 403, Message: "forbidden"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, retry.IsRetryableStatus(code))
	}
	for _, code := range []int{400, 401, 403, 404} {
		assert.False(t, retry.IsRetryableStatus(code))
	}
}
