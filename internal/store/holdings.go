package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vault/internal/ir"
)

func loadHolding(ctx context.Context, q queryer, id string) (ir.Holding, error) {
	var (
		h       ir.Holding
		balance string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, owner, balance FROM holdings WHERE id = ?
	`, id).Scan(&h.ID, &h.Owner, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Holding{}, fmt.Errorf("holding %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Holding{}, fmt.Errorf("load holding %s: %w", id, err)
	}
	if h.Balance, err = ir.ParseAmount(balance); err != nil {
		return ir.Holding{}, fmt.Errorf("holding %s balance: %w", id, err)
	}
	return h, nil
}

func putHolding(ctx context.Context, q queryer, h ir.Holding) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO holdings (id, owner, balance)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			balance = excluded.balance
	`, h.ID, h.Owner, ir.FormatAmount(h.Balance))
	if err != nil {
		return fmt.Errorf("put holding %s: %w", h.ID, err)
	}
	return nil
}

// ReadHolding returns a holding by id.
// Returns an error wrapping ErrNotFound if the holding does not exist.
func (s *Store) ReadHolding(ctx context.Context, id string) (ir.Holding, error) {
	return loadHolding(ctx, s.db, id)
}

// PutHolding creates or replaces a holding outside any step.
// Used to seed holdings from the CLI and manifests.
func (s *Store) PutHolding(ctx context.Context, h ir.Holding) error {
	return putHolding(ctx, s.db, h)
}

// PutHoldings creates or replaces several holdings in one transaction.
func (s *Store) PutHoldings(ctx context.Context, holdings []ir.Holding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put holdings: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, h := range holdings {
		if err := putHolding(ctx, tx, h); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put holdings: commit: %w", err)
	}
	return nil
}

// ListHoldings returns every holding ordered by id.
func (s *Store) ListHoldings(ctx context.Context) ([]ir.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, balance FROM holdings ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	holdings := []ir.Holding{}
	for rows.Next() {
		var (
			h       ir.Holding
			balance string
		)
		if err := rows.Scan(&h.ID, &h.Owner, &balance); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		if h.Balance, err = ir.ParseAmount(balance); err != nil {
			return nil, fmt.Errorf("holding %s balance: %w", h.ID, err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holdings: %w", err)
	}
	return holdings, nil
}
