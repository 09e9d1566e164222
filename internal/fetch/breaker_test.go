// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestBreakerClient_PassesThroughWhileClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"periods":[]}`)
	}))
	defer srv.Close()

	bc := NewBreakerClient(NewClient(testConfig(srv.URL)))
	payload, err := bc.FetchDay(context.Background(), "2026-09-01")
	if err != nil {
		t.Fatalf("FetchDay failed: %v", err)
	}
	if payload == nil || payload.Date != "2026-09-01" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestBreakerClient_OpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryAttempts = 0
	bc := NewBreakerClient(NewClient(cfg))

	// Drive enough failures to trip the breaker (60% of at least 10).
	for i := 0; i < 10; i++ {
		if _, err := bc.FetchDay(context.Background(), "2026-09-01"); err == nil {
			t.Fatal("expected every fetch to fail")
		}
	}

	before := atomic.LoadInt32(&calls)
	_, err := bc.FetchDay(context.Background(), "2026-09-01")
	if err == nil {
		t.Fatal("expected rejection from the open breaker")
	}

	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("error type = %T, want *UpstreamError", err)
	}
	if uerr.Endpoint != "breaker" {
		t.Errorf("endpoint = %q, want breaker (fast rejection)", uerr.Endpoint)
	}
	if after := atomic.LoadInt32(&calls); after != before {
		t.Errorf("open breaker still reached the provider (%d -> %d calls)", before, after)
	}
}
