// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/refectory/internal/models"
)

// countingFetcher counts FetchDay calls and records their order.
type countingFetcher struct {
	mu      sync.Mutex
	calls   int32
	dates   []string
	err     error
	blockCh chan struct{} // when set, FetchDay blocks until closed
}

func (f *countingFetcher) FetchDay(_ context.Context, date string) (*models.MenuPayload, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.dates = append(f.dates, date)
	f.mu.Unlock()
	if f.blockCh != nil {
		<-f.blockCh
	}
	if f.err != nil {
		return nil, f.err
	}
	return models.AllClosedPayload(date), nil
}

func (f *countingFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.dates))
	copy(out, f.dates)
	return out
}

// memStore accumulates replaced payloads.
type memStore struct {
	mu       sync.Mutex
	replaced []string
	err      error
}

func (s *memStore) ReplaceDate(_ context.Context, payload *models.MenuPayload) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.replaced = append(s.replaced, payload.Date)
	s.mu.Unlock()
	return nil
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEnqueue_DeduplicatesDate(t *testing.T) {
	o := New(&countingFetcher{}, &memStore{})

	if !o.Enqueue("2026-09-01", false) {
		t.Fatal("first enqueue should be accepted")
	}
	if o.Enqueue("2026-09-01", true) {
		t.Error("second enqueue for the same date should be dropped")
	}
	if o.QueueDepth() != 1 {
		t.Errorf("queue depth = %d, want 1", o.QueueDepth())
	}
	if o.StateOf("2026-09-01") != StateQueued {
		t.Errorf("state = %v, want StateQueued", o.StateOf("2026-09-01"))
	}
}

func TestEnqueue_ConcurrentSingleFetch(t *testing.T) {
	fetcher := &countingFetcher{}
	o := New(fetcher, &memStore{})

	// Race 50 enqueues before the worker starts so every duplicate hits
	// the dedup check rather than an already-drained queue.
	var wg sync.WaitGroup
	var accepted int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if o.Enqueue("2026-09-01", false) {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("accepted enqueues = %d, want exactly 1", accepted)
	}
	if o.QueueDepth() != 1 {
		t.Fatalf("queue depth = %d, want 1", o.QueueDepth())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Serve(ctx)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return o.StateOf("2026-09-01") == StateAbsent && o.QueueDepth() == 0
	})

	if got := atomic.LoadInt32(&fetcher.calls); got != 1 {
		t.Errorf("fetch calls = %d, want exactly 1", got)
	}

	cancel()
	<-done
}

func TestServe_DrainsFIFO(t *testing.T) {
	fetcher := &countingFetcher{}
	store := &memStore{}
	o := New(fetcher, store)

	o.Enqueue("2026-09-01", false)
	o.Enqueue("2026-09-02", false)
	o.Enqueue("2026-09-03", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Serve(ctx)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&fetcher.calls) == 3
	})

	want := []string{"2026-09-01", "2026-09-02", "2026-09-03"}
	got := fetcher.fetched()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fetch order = %v, want %v", got, want)
		}
	}

	cancel()
	<-done
}

func TestServe_FailedTaskClearsStateAndContinues(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("upstream down")}
	o := New(fetcher, &memStore{})

	o.Enqueue("2026-09-01", false)
	o.Enqueue("2026-09-02", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Serve(ctx)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&fetcher.calls) == 2
	})
	waitFor(t, 2*time.Second, func() bool {
		return o.StateOf("2026-09-01") == StateAbsent && o.StateOf("2026-09-02") == StateAbsent
	})

	// A failed date can be requested again.
	if !o.Enqueue("2026-09-01", false) {
		t.Error("failed date should be enqueueable again")
	}

	cancel()
	<-done
}

func TestServe_StoreErrorClearsState(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	o := New(&countingFetcher{}, store)

	o.Enqueue("2026-09-01", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.Serve(ctx)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return o.StateOf("2026-09-01") == StateAbsent
	})

	cancel()
	<-done
}

func TestRefreshNow_Success(t *testing.T) {
	fetcher := &countingFetcher{}
	store := &memStore{}
	o := New(fetcher, store)

	if err := o.RefreshNow(context.Background(), "2026-09-01", false); err != nil {
		t.Fatalf("RefreshNow failed: %v", err)
	}
	if len(store.replaced) != 1 || store.replaced[0] != "2026-09-01" {
		t.Errorf("replaced = %v, want [2026-09-01]", store.replaced)
	}
	if o.StateOf("2026-09-01") != StateAbsent {
		t.Error("state should be cleared after a synchronous refresh")
	}
}

func TestRefreshNow_RejectsWhilePending(t *testing.T) {
	block := make(chan struct{})
	fetcher := &countingFetcher{blockCh: block}
	o := New(fetcher, &memStore{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- o.RefreshNow(context.Background(), "2026-09-01", false)
	}()

	waitFor(t, 2*time.Second, func() bool {
		return o.StateOf("2026-09-01") == StateInFlight
	})

	if err := o.RefreshNow(context.Background(), "2026-09-01", false); !errors.Is(err, ErrAlreadyPending) {
		t.Errorf("second RefreshNow = %v, want ErrAlreadyPending", err)
	}
	if o.Enqueue("2026-09-01", false) {
		t.Error("enqueue during an in-flight refresh should be dropped")
	}

	close(block)
	if err := <-firstDone; err != nil {
		t.Errorf("first RefreshNow failed: %v", err)
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	o := New(&countingFetcher{}, &memStore{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- o.Serve(ctx)
	}()

	// Worker is idle, waiting on the cond.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after context cancel")
	}
}
