package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/queryir"
	"github.com/roach88/vault/internal/querysql"
)

func appendStep(ctx context.Context, q queryer, step ir.Step) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO steps
		(id, vault_id, seq, operation, actor, amount, source, destination, output_case, error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		step.ID,
		step.VaultID,
		step.Seq,
		string(step.Operation),
		step.Actor,
		ir.FormatAmount(step.Amount),
		step.Source,
		step.Destination,
		step.OutputCase,
		step.ErrorCode,
	)
	if err != nil {
		return fmt.Errorf("append step seq=%d: %w", step.Seq, err)
	}
	return nil
}

// AppendStep writes a step record outside any step transaction.
// Used for rejected steps after their transaction rolled back.
func (s *Store) AppendStep(ctx context.Context, step ir.Step) error {
	return appendStep(ctx, s.db, step)
}

// StepsTable describes the step log for queryir filters.
var StepsTable = queryir.Table{
	Name: "steps",
	Columns: []queryir.Column{
		{Name: "id", Kind: queryir.KindText},
		{Name: "vault_id", Kind: queryir.KindText},
		{Name: "seq", Kind: queryir.KindInt},
		{Name: "operation", Kind: queryir.KindText},
		{Name: "actor", Kind: queryir.KindText},
		{Name: "amount", Kind: queryir.KindText},
		{Name: "source", Kind: queryir.KindText},
		{Name: "destination", Kind: queryir.KindText},
		{Name: "output_case", Kind: queryir.KindText},
		{Name: "error_code", Kind: queryir.KindText},
	},
	Order: []string{"seq", "id"},
}

var stepCompiler = querysql.NewSQLCompiler(queryir.Catalog{StepsTable.Name: StepsTable})

// QuerySteps returns the steps matching filter (nil = all steps).
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QuerySteps(ctx context.Context, filter queryir.Predicate) ([]ir.Step, error) {
	query, params, err := stepCompiler.Compile(queryir.Select{
		From:    StepsTable.Name,
		Filter:  filter,
		Columns: StepsTable.ColumnNames(),
	})
	if err != nil {
		return nil, fmt.Errorf("compile step query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	return scanSteps(rows)
}

// ReadSteps returns the step log of one vault.
func (s *Store) ReadSteps(ctx context.Context, vaultID string) ([]ir.Step, error) {
	return s.QuerySteps(ctx, queryir.Equals{Field: "vault_id", Value: ir.IRString(vaultID)})
}

// ReadAllSteps returns every step across all vaults in seq order.
func (s *Store) ReadAllSteps(ctx context.Context) ([]ir.Step, error) {
	return s.QuerySteps(ctx, nil)
}

// LastSeq returns the highest seq in the step log, or 0 if it is empty.
// Used to resume the logical clock after a restart.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM steps`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanSteps(rows *sql.Rows) ([]ir.Step, error) {
	defer rows.Close()

	steps := []ir.Step{}
	for rows.Next() {
		var (
			step   ir.Step
			op     string
			amount string
		)
		err := rows.Scan(
			&step.ID,
			&step.VaultID,
			&step.Seq,
			&op,
			&step.Actor,
			&amount,
			&step.Source,
			&step.Destination,
			&step.OutputCase,
			&step.ErrorCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if step.Operation, err = ir.ParseOperation(op); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.ID, err)
		}
		if step.Amount, err = ir.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.ID, err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}
