package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/vault/internal/ir"
)

func TestTx_RollbackDiscardsEverything(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.PutHolding(ctx, ir.Holding{ID: "alice-wallet", Owner: "alice", Balance: 100}); err != nil {
		t.Fatalf("PutHolding() failed: %v", err)
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}

	snap := createTestSnapshot("v1", ir.BalanceEntry{Depositor: "alice", Amount: 60})
	if err := tx.SaveVault(snap, 1); err != nil {
		t.Fatalf("SaveVault() failed: %v", err)
	}
	if err := tx.PutHolding(ctx, ir.Holding{ID: "alice-wallet", Owner: "alice", Balance: 40}); err != nil {
		t.Fatalf("PutHolding() failed: %v", err)
	}
	if err := tx.AppendStep(createTestStep("v1", 1, ir.OpDeposit, "alice", 60)); err != nil {
		t.Fatalf("AppendStep() failed: %v", err)
	}

	// Writes are visible inside the transaction.
	h, err := tx.Holding(ctx, "alice-wallet")
	if err != nil {
		t.Fatalf("Holding() failed: %v", err)
	}
	if h.Balance != 40 {
		t.Errorf("in-tx balance = %d, want 40", h.Balance)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}

	if _, err := s.ReadVault(ctx, "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("vault survived rollback: %v", err)
	}
	h, _ = s.ReadHolding(ctx, "alice-wallet")
	if h.Balance != 100 {
		t.Errorf("holding balance after rollback = %d, want 100", h.Balance)
	}
	steps, _ := s.ReadSteps(ctx, "v1")
	if len(steps) != 0 {
		t.Errorf("len(steps) after rollback = %d, want 0", len(steps))
	}
}

func TestTx_CommitThenRollbackIsNoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if err := tx.SaveVault(createTestSnapshot("v1"), 1); err != nil {
		t.Fatalf("SaveVault() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback() after Commit() = %v, want nil", err)
	}

	if _, err := s.ReadVault(ctx, "v1"); err != nil {
		t.Errorf("ReadVault() after commit failed: %v", err)
	}
}

func TestTx_LoadVaultReturnsLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	saveSnapshot(t, s, createTestSnapshot("v1", ir.BalanceEntry{Depositor: "alice", Amount: 9}), 12)

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()

	snap, lastSeq, err := tx.LoadVault("v1")
	if err != nil {
		t.Fatalf("LoadVault() failed: %v", err)
	}
	if lastSeq != 12 {
		t.Errorf("lastSeq = %d, want 12", lastSeq)
	}
	if snap.TotalBalance != 9 {
		t.Errorf("TotalBalance = %d, want 9", snap.TotalBalance)
	}

	if _, _, err := tx.LoadVault("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadVault(missing) error = %v, want ErrNotFound", err)
	}
}
