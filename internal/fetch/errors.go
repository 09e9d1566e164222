// Refectory - Campus Dining Menu Cache and API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/refectory

package fetch

import "fmt"

// UpstreamError wraps any failure talking to the menu provider: network
// errors, timeouts, non-2xx statuses, and malformed responses. It is
// transient by definition; callers drop the task or surface the failure and
// rely on the next staleness check or explicit request to retry.
type UpstreamError struct {
	Endpoint string // periods | menu
	Date     string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s fetch for %s failed: %v", e.Endpoint, e.Date, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstreamErr(endpoint, date string, err error) error {
	return &UpstreamError{Endpoint: endpoint, Date: date, Err: err}
}
