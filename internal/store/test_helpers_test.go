package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/vault/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSnapshot creates a vault snapshot whose total matches its balances.
func createTestSnapshot(id string, balances ...ir.BalanceEntry) ir.VaultSnapshot {
	var total uint64
	for _, b := range balances {
		total += b.Amount
	}
	if balances == nil {
		balances = []ir.BalanceEntry{}
	}
	return ir.VaultSnapshot{
		ID:           id,
		Manager:      "manager",
		Holding:      "vault-holding",
		Capacity:     100,
		TotalBalance: total,
		Balances:     balances,
	}
}

// createTestStep creates a committed step with its content-addressed ID.
func createTestStep(vaultID string, seq int64, op ir.Operation, actor string, amount uint64) ir.Step {
	step := ir.Step{
		VaultID:    vaultID,
		Seq:        seq,
		Operation:  op,
		Actor:      actor,
		Amount:     amount,
		OutputCase: ir.CaseSuccess,
	}
	step.ID = ir.MustStepID(step)
	return step
}
