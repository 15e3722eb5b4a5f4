package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vault/internal/ir"
)

func loadVault(ctx context.Context, q queryer, id string) (ir.VaultSnapshot, int64, error) {
	var (
		snap    ir.VaultSnapshot
		total   string
		lastSeq int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, manager, holding, capacity, total_balance, last_seq
		FROM vaults
		WHERE id = ?
	`, id).Scan(&snap.ID, &snap.Manager, &snap.Holding, &snap.Capacity, &total, &lastSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.VaultSnapshot{}, 0, fmt.Errorf("vault %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.VaultSnapshot{}, 0, fmt.Errorf("load vault %s: %w", id, err)
	}

	snap.TotalBalance, err = ir.ParseAmount(total)
	if err != nil {
		return ir.VaultSnapshot{}, 0, fmt.Errorf("load vault %s: total: %w", id, err)
	}

	snap.Balances, err = loadBalances(ctx, q, id)
	if err != nil {
		return ir.VaultSnapshot{}, 0, err
	}

	return snap, lastSeq, nil
}

func loadBalances(ctx context.Context, q queryer, vaultID string) ([]ir.BalanceEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT depositor, amount
		FROM balances
		WHERE vault_id = ?
		ORDER BY depositor COLLATE BINARY ASC
	`, vaultID)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	balances := []ir.BalanceEntry{}
	for rows.Next() {
		var (
			entry  ir.BalanceEntry
			amount string
		)
		if err := rows.Scan(&entry.Depositor, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		entry.Amount, err = ir.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", entry.Depositor, err)
		}
		balances = append(balances, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return balances, nil
}

// saveVault upserts the vault row and replaces its balance entries.
func saveVault(ctx context.Context, q queryer, snap ir.VaultSnapshot, lastSeq int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO vaults (id, manager, holding, capacity, total_balance, last_seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_balance = excluded.total_balance,
			last_seq = excluded.last_seq
	`,
		snap.ID,
		snap.Manager,
		snap.Holding,
		snap.Capacity,
		ir.FormatAmount(snap.TotalBalance),
		lastSeq,
	)
	if err != nil {
		return fmt.Errorf("save vault %s: %w", snap.ID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM balances WHERE vault_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("save vault %s: clear balances: %w", snap.ID, err)
	}

	for _, b := range snap.Balances {
		_, err := q.ExecContext(ctx, `
			INSERT INTO balances (vault_id, depositor, amount)
			VALUES (?, ?, ?)
		`, snap.ID, b.Depositor, ir.FormatAmount(b.Amount))
		if err != nil {
			return fmt.Errorf("save vault %s: balance %s: %w", snap.ID, b.Depositor, err)
		}
	}
	return nil
}

// ReadVault returns the persisted snapshot of a vault.
// Returns an error wrapping ErrNotFound if the vault does not exist.
func (s *Store) ReadVault(ctx context.Context, id string) (ir.VaultSnapshot, error) {
	snap, _, err := loadVault(ctx, s.db, id)
	return snap, err
}

// VaultSummary is one row of ListVaults.
type VaultSummary struct {
	ID           string `json:"id"`
	Manager      string `json:"manager"`
	Holding      string `json:"holding"`
	TotalBalance uint64 `json:"total_balance"`
	Depositors   int    `json:"depositors"`
	LastSeq      int64  `json:"last_seq"`
}

// ListVaults returns a summary of every vault ordered by id.
func (s *Store) ListVaults(ctx context.Context) ([]VaultSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.manager, v.holding, v.total_balance, v.last_seq,
			(SELECT COUNT(*) FROM balances b WHERE b.vault_id = v.id)
		FROM vaults v
		ORDER BY v.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query vaults: %w", err)
	}
	defer rows.Close()

	vaults := []VaultSummary{}
	for rows.Next() {
		var (
			v     VaultSummary
			total string
		)
		if err := rows.Scan(&v.ID, &v.Manager, &v.Holding, &total, &v.LastSeq, &v.Depositors); err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		if v.TotalBalance, err = ir.ParseAmount(total); err != nil {
			return nil, fmt.Errorf("vault %s total: %w", v.ID, err)
		}
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}
	return vaults, nil
}
