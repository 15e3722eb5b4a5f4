package transfer

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/vault/internal/ledger"
)

// ErrScriptExhausted is returned when Scripted receives more requests than
// outcomes it was given.
var ErrScriptExhausted = errors.New("transfer script exhausted")

// Scripted answers transfer requests with a fixed sequence of outcomes and
// records every request it receives. It never moves value.
type Scripted struct {
	mu       sync.Mutex
	outcomes []error
	calls    []ledger.TransferRequest
}

// NewScripted returns a Scripted that answers with outcomes in order.
// A nil outcome means the transfer succeeds.
func NewScripted(outcomes ...error) *Scripted {
	return &Scripted{outcomes: outcomes}
}

// Push appends an outcome to the script.
func (s *Scripted) Push(outcome error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

// Transfer records req and returns the next scripted outcome.
func (s *Scripted) Transfer(_ context.Context, req ledger.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if len(s.outcomes) == 0 {
		return ErrScriptExhausted
	}
	next := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return next
}

// Calls returns a copy of every request received so far.
func (s *Scripted) Calls() []ledger.TransferRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	calls := make([]ledger.TransferRequest, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// Remaining returns the number of unused outcomes.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}
