// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

/*
orchestrator.go - Refresh Orchestration

The orchestrator is the single funnel for upstream fetches. Every path
that wants fresh data for a date goes through it, and it guarantees at
most one refresh per date is pending at any time:

  - Enqueue() adds a date to a FIFO queue for the background worker,
    dropping the request if that date is already queued or in flight.
  - RefreshNow() runs a refresh synchronously on the caller's goroutine
    (the cold-read and force-refresh paths), failing fast with
    ErrAlreadyPending instead of piling up a second fetch.

One mutex guards the per-date state table and the queue together, so the
dedup decision and the queue append are atomic. The worker (Serve) is a
supervised service: a panic in a fetch clears the in-flight marker via
defer, the supervisor restarts Serve, and the queue picks up where it
left off because both live on the Orchestrator, not the service frame.
*/

//nolint:staticcheck // File documentation, not package doc
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/refectory/internal/logging"
	"github.com/tomtom215/refectory/internal/metrics"
	"github.com/tomtom215/refectory/internal/models"
)

// ErrAlreadyPending is returned by RefreshNow when a refresh for the
// same date is already queued or in flight.
var ErrAlreadyPending = errors.New("refresh already pending for date")

// State describes what the orchestrator currently knows about a date.
type State int

const (
	// StateAbsent means no refresh is pending for the date.
	StateAbsent State = iota
	// StateQueued means the date is waiting in the worker queue.
	StateQueued
	// StateInFlight means a fetch for the date is running right now.
	StateInFlight
)

// Fetcher retrieves a full day of menus from the upstream provider.
type Fetcher interface {
	FetchDay(ctx context.Context, date string) (*models.MenuPayload, error)
}

// Store persists a fetched day.
type Store interface {
	ReplaceDate(ctx context.Context, payload *models.MenuPayload) error
}

// Orchestrator deduplicates and executes menu refreshes.
type Orchestrator struct {
	fetcher Fetcher
	store   Store

	mu     sync.Mutex
	cond   *sync.Cond
	states map[string]State
	queue  []models.RefreshTask
}

// New creates an orchestrator. Add it to a supervision tree to start
// the background worker.
func New(fetcher Fetcher, store Store) *Orchestrator {
	o := &Orchestrator{
		fetcher: fetcher,
		store:   store,
		states:  make(map[string]State),
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Enqueue schedules a background refresh for the date. Returns false
// when the date was already queued or in flight, in which case the
// request is dropped and the existing refresh stands.
func (o *Orchestrator) Enqueue(date string, force bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, pending := o.states[date]; pending {
		metrics.RefreshDuplicatesTotal.Inc()
		logging.Debug().Str("date", date).Msg("Refresh already pending, dropping enqueue")
		return false
	}

	o.states[date] = StateQueued
	o.queue = append(o.queue, models.RefreshTask{Date: date, Force: force})
	metrics.RefreshQueueDepth.Set(float64(len(o.queue)))
	o.cond.Signal()
	return true
}

// RefreshNow fetches and stores the date on the caller's goroutine.
// Returns ErrAlreadyPending when the date is queued or in flight.
func (o *Orchestrator) RefreshNow(ctx context.Context, date string, force bool) error {
	o.mu.Lock()
	if _, pending := o.states[date]; pending {
		o.mu.Unlock()
		metrics.RefreshDuplicatesTotal.Inc()
		return ErrAlreadyPending
	}
	o.states[date] = StateInFlight
	metrics.RefreshInFlight.Inc()
	o.mu.Unlock()

	trigger := "sync"
	if force {
		trigger = "forced"
	}
	return o.runTask(ctx, models.RefreshTask{Date: date, Force: force}, trigger)
}

// StateOf reports whether a refresh for the date is absent, queued, or
// in flight.
func (o *Orchestrator) StateOf(date string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.states[date]
	if !ok {
		return StateAbsent
	}
	return state
}

// QueueDepth returns the number of tasks waiting for the worker.
func (o *Orchestrator) QueueDepth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Serve implements suture.Service. It drains the queue sequentially,
// one fetch at a time, and blocks on the condition variable when the
// queue is empty. Returns ctx.Err() on shutdown.
func (o *Orchestrator) Serve(ctx context.Context) error {
	// Wake the cond.Wait below when the context is canceled, otherwise
	// an idle worker would never observe shutdown.
	stop := context.AfterFunc(ctx, func() {
		o.mu.Lock()
		o.cond.Broadcast()
		o.mu.Unlock()
	})
	defer stop()

	logging.Info().Msg("Refresh worker started")

	for {
		o.mu.Lock()
		for len(o.queue) == 0 && ctx.Err() == nil {
			o.cond.Wait()
		}
		if ctx.Err() != nil {
			o.mu.Unlock()
			logging.Info().Msg("Refresh worker stopping")
			return ctx.Err()
		}

		task := o.queue[0]
		o.queue = o.queue[1:]
		o.states[task.Date] = StateInFlight
		metrics.RefreshQueueDepth.Set(float64(len(o.queue)))
		metrics.RefreshInFlight.Inc()
		o.mu.Unlock()

		if err := o.runTask(ctx, task, "queued"); err != nil {
			logging.Error().Err(err).Str("date", task.Date).Msg("Background refresh failed")
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (o *Orchestrator) String() string {
	return "refresh-worker"
}

// runTask executes one refresh end to end. The in-flight marker is
// cleared in a defer so a panicking fetch does not wedge the date.
func (o *Orchestrator) runTask(ctx context.Context, task models.RefreshTask, trigger string) error {
	start := time.Now()
	defer func() {
		o.mu.Lock()
		delete(o.states, task.Date)
		metrics.RefreshInFlight.Dec()
		o.mu.Unlock()
	}()

	payload, err := o.fetcher.FetchDay(ctx, task.Date)
	if err != nil {
		metrics.RefreshTasksTotal.WithLabelValues(trigger, "fetch_error").Inc()
		return fmt.Errorf("fetch failed for %s: %w", task.Date, err)
	}

	if err := o.store.ReplaceDate(ctx, payload); err != nil {
		metrics.RefreshTasksTotal.WithLabelValues(trigger, "store_error").Inc()
		return fmt.Errorf("store failed for %s: %w", task.Date, err)
	}

	metrics.RefreshTasksTotal.WithLabelValues(trigger, "success").Inc()
	logging.Info().
		Str("date", task.Date).
		Str("trigger", trigger).
		Dur("duration", time.Since(start)).
		Msg("Refreshed menus for date")
	return nil
}
