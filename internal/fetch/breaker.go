// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package fetch

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/refectory/internal/logging"
	"github.com/tomtom215/refectory/internal/metrics"
	"github.com/tomtom215/refectory/internal/models"
)

// BreakerClient wraps a Client with a circuit breaker so a dead or slow
// provider fails fast instead of tying up refresh work on doomed requests.
//
// The breaker uses real time for its interval and timeout bookkeeping; unit
// tests exercise the wrapped Client directly rather than mocking the breaker.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[*models.MenuPayload]
	name   string
}

// NewBreakerClient wraps client with a circuit breaker that opens at a 60%
// failure rate over at least 10 requests, resets counts every minute while
// closed, and probes again two minutes after opening.
func NewBreakerClient(client *Client) *BreakerClient {
	const cbName = "dining-provider"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[*models.MenuPayload](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerClient{client: client, cb: cb, name: cbName}
}

// FetchDay fetches one date through the breaker. When the circuit is open
// the call fails immediately with an *UpstreamError wrapping the breaker
// error, without touching the provider.
func (bc *BreakerClient) FetchDay(ctx context.Context, date string) (*models.MenuPayload, error) {
	payload, err := bc.cb.Execute(func() (*models.MenuPayload, error) {
		return bc.client.FetchDay(ctx, date)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			return nil, upstreamErr("breaker", date, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	return payload, nil
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
