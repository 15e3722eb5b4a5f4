package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/vault/internal/ir"
)

// Tx is one atomic ledger step. Every write made through a Tx becomes
// visible together on Commit or not at all.
//
// Tx satisfies transfer.Holdings, so the book transfer service moves value
// inside the same transaction as the ledger update.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Begin starts a step transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin step: %w", err)
	}
	return &Tx{ctx: ctx, tx: tx}, nil
}

// LoadVault returns the vault snapshot and the seq of its last committed step.
func (t *Tx) LoadVault(id string) (ir.VaultSnapshot, int64, error) {
	return loadVault(t.ctx, t.tx, id)
}

// SaveVault persists a snapshot as of step lastSeq.
func (t *Tx) SaveVault(snap ir.VaultSnapshot, lastSeq int64) error {
	return saveVault(t.ctx, t.tx, snap, lastSeq)
}

// AppendStep adds a committed step to the log.
func (t *Tx) AppendStep(step ir.Step) error {
	return appendStep(t.ctx, t.tx, step)
}

// Holding returns a holding as seen inside the transaction.
func (t *Tx) Holding(_ context.Context, id string) (ir.Holding, error) {
	return loadHolding(t.ctx, t.tx, id)
}

// PutHolding writes a holding inside the transaction.
func (t *Tx) PutHolding(_ context.Context, h ir.Holding) error {
	return putHolding(t.ctx, t.tx, h)
}

// Commit makes every write of the step visible.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit step: %w", err)
	}
	return nil
}

// Rollback discards every write of the step. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
