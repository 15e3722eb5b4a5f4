package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/vault/internal/ledger"
)

// ErrInjectedTransfer is returned by RecordingTransfer when a failure has
// been injected.
var ErrInjectedTransfer = errors.New("injected transfer failure")

// RecordingTransfer wraps a transfer service, records every request, and
// can be told to fail the next request.
//
// With a nil Inner every request that is not failed succeeds without moving
// value.
type RecordingTransfer struct {
	Inner ledger.TransferService

	mu       sync.Mutex
	failNext bool
	calls    []ledger.TransferRequest
}

// NewRecordingTransfer creates a RecordingTransfer around inner.
func NewRecordingTransfer(inner ledger.TransferService) *RecordingTransfer {
	return &RecordingTransfer{Inner: inner}
}

// FailNext makes the next request fail with ErrInjectedTransfer.
func (r *RecordingTransfer) FailNext() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = true
}

// Transfer implements ledger.TransferService.
func (r *RecordingTransfer) Transfer(ctx context.Context, req ledger.TransferRequest) error {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	fail := r.failNext
	r.failNext = false
	r.mu.Unlock()

	if fail {
		return ErrInjectedTransfer
	}
	if r.Inner == nil {
		return nil
	}
	return r.Inner.Transfer(ctx, req)
}

// Calls returns a copy of every request received so far.
func (r *RecordingTransfer) Calls() []ledger.TransferRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]ledger.TransferRequest, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// Count returns the number of requests received so far.
func (r *RecordingTransfer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
