package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/ledger"
	"github.com/roach88/vault/internal/store"
	"github.com/roach88/vault/internal/transfer"
)

// errReplayedTransferFailure stands in for the recorded transfer failure of
// a step that was rejected with TRANSFER_FAILED.
var errReplayedTransferFailure = errors.New("recorded transfer failure")

// ReplayResult reports whether the step log reproduces the stored vault.
type ReplayResult struct {
	VaultID    string   `json:"vault_id"`
	Steps      int      `json:"steps"`
	Committed  int      `json:"committed"`
	Rejected   int      `json:"rejected"`
	StateHash  string   `json:"state_hash"`  // Hash of the replayed vault
	StoredHash string   `json:"stored_hash"` // Hash of the persisted snapshot
	Identical  bool     `json:"identical"`
	Mismatches []string `json:"mismatches,omitempty"`
}

// Replay rebuilds a vault from its step log and compares it with the
// stored snapshot.
//
// Steps are re-run in seq order with the ledger rules against a Scripted
// transfer service that returns each step's recorded transfer outcome, so
// no value moves. Every step must reproduce its recorded output case, error
// code and transfer request, and the final StateHash must equal the stored
// one.
func (e *Engine) Replay(ctx context.Context, vaultID string) (ReplayResult, error) {
	stored, err := e.store.ReadVault(ctx, vaultID)
	if errors.Is(err, store.ErrNotFound) {
		return ReplayResult{}, NewVaultNotFoundError(vaultID)
	}
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", vaultID, err)
	}

	steps, err := e.store.ReadSteps(ctx, vaultID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", vaultID, err)
	}

	res := ReplayResult{VaultID: vaultID, Steps: len(steps)}
	var v *ledger.Vault

	for _, step := range steps {
		if step.Committed() {
			res.Committed++
		} else {
			res.Rejected++
		}

		if wantID, err := ir.StepID(step); err != nil || wantID != step.ID {
			res.Mismatches = append(res.Mismatches, fmt.Sprintf("seq %d: step id does not match its content", step.Seq))
		}

		if step.Operation == ir.OpInitialize {
			if !step.Committed() {
				continue
			}
			if v != nil {
				res.Mismatches = append(res.Mismatches, fmt.Sprintf("seq %d: vault initialized twice", step.Seq))
				continue
			}
			// Capacity is fixed at creation and only recorded on the vault.
			v = ledger.Initialize(step.Actor,
				ledger.WithCapacity(stored.Capacity),
				ledger.WithHolding(step.Destination),
			)
			continue
		}

		if !step.Committed() && isRuntimeCode(step.ErrorCode) {
			continue
		}

		if v == nil {
			if step.Committed() {
				res.Mismatches = append(res.Mismatches, fmt.Sprintf("seq %d: %s before initialize", step.Seq, step.Operation))
			}
			continue
		}

		got, err := replayStep(ctx, v, step)
		if err != nil {
			return ReplayResult{}, err
		}
		res.Mismatches = append(res.Mismatches, got...)
	}

	if v == nil {
		res.Mismatches = append(res.Mismatches, "no committed initialize step")
		v = ledger.Initialize("")
	}

	replayed := v.Snapshot(vaultID)
	if res.StateHash, err = ir.StateHash(replayed); err != nil {
		return ReplayResult{}, err
	}
	if res.StoredHash, err = ir.StateHash(stored); err != nil {
		return ReplayResult{}, err
	}
	if res.StateHash != res.StoredHash {
		res.Mismatches = append(res.Mismatches, "replayed state differs from stored snapshot")
	}
	res.Identical = len(res.Mismatches) == 0

	e.log.Info("replay finished",
		"vault", vaultID,
		"steps", res.Steps,
		"identical", res.Identical,
	)

	return res, nil
}

// replayStep re-runs one deposit or withdraw and reports how it diverged
// from the recorded step.
func replayStep(ctx context.Context, v *ledger.Vault, step ir.Step) ([]string, error) {
	script := transfer.NewScripted()
	switch {
	case step.Committed():
		script.Push(nil)
	case step.ErrorCode == string(ledger.CodeTransferFailed):
		script.Push(errReplayedTransferFailure)
	}

	acct := ledger.Accounts{From: step.Source, To: step.Destination}
	var err error
	switch step.Operation {
	case ir.OpDeposit:
		err = ledger.Deposit(ctx, v, step.Actor, step.Amount, acct, script)
	case ir.OpWithdraw:
		err = ledger.Withdraw(ctx, v, step.Actor, step.Amount, acct, script)
	default:
		return nil, fmt.Errorf("replay seq %d: unknown operation %q", step.Seq, step.Operation)
	}

	var mismatches []string

	gotCode := ""
	if err != nil {
		gotCode = ErrorCode(err)
	}
	wantCode := step.ErrorCode
	if step.Committed() {
		wantCode = ""
	}
	if gotCode != wantCode {
		mismatches = append(mismatches, fmt.Sprintf("seq %d: recorded %q, replay produced %q", step.Seq, wantCode, gotCode))
	}

	for _, call := range script.Calls() {
		if call.From != step.Source || call.To != step.Destination || call.Amount != step.Amount || call.Authority != step.Actor {
			mismatches = append(mismatches, fmt.Sprintf("seq %d: transfer request differs from recorded step", step.Seq))
		}
	}

	return mismatches, nil
}

// isRuntimeCode reports whether a rejected step failed outside the ledger
// rules. Such steps never reached the ledger and replay cannot reproduce them.
func isRuntimeCode(code string) bool {
	switch RuntimeErrorCode(code) {
	case ErrCodeVaultNotFound, ErrCodeInvalidRequest, ErrCodeQueueClosed, ErrCodeInternal:
		return true
	}
	return false
}
