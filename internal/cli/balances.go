package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/store"
)

// NewBalancesCommand creates the balances command.
func NewBalancesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances [vault-id]",
		Short: "Show depositor balances",
		Long: `Show the depositor balances of one vault in depositor order, or a summary
of every vault when no id is given.

Examples:
  vault balances
  vault balances 0190... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListVaults(rootOpts, cmd)
			}
			return runBalances(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runBalances(opts *RootOptions, vaultID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts, cmd)

	st, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.ReadVault(ctx, vaultID)
	if errors.Is(err, store.ErrNotFound) {
		return f.Fail(ExitFailure, "E_VAULT_NOT_FOUND", "unknown vault", err)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to read vault", err)
	}
	if snap.Balances == nil {
		snap.Balances = []ir.BalanceEntry{}
	}

	if opts.Format == "json" {
		return f.Success(snap)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Vault %s\n", snap.ID)
	fmt.Fprintf(w, "  Manager:  %s\n", snap.Manager)
	fmt.Fprintf(w, "  Holding:  %s\n", snap.Holding)
	fmt.Fprintf(w, "  Capacity: %s\n", formatCapacity(snap.Capacity))
	fmt.Fprintf(w, "  Total:    %d\n", snap.TotalBalance)
	fmt.Fprintln(w)

	if len(snap.Balances) == 0 {
		fmt.Fprintln(w, "No depositors.")
		return nil
	}
	return writeTable(w, []string{"DEPOSITOR", "AMOUNT"}, func(row func(...any)) {
		for _, b := range snap.Balances {
			row(b.Depositor, b.Amount)
		}
	})
}

func runListVaults(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts, cmd)

	st, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer st.Close()

	vaults, err := st.ListVaults(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to list vaults", err)
	}

	if opts.Format == "json" {
		return f.Success(vaults)
	}

	w := cmd.OutOrStdout()
	if len(vaults) == 0 {
		fmt.Fprintln(w, "No vaults found in database.")
		return nil
	}
	return writeTable(w, []string{"VAULT", "MANAGER", "HOLDING", "TOTAL", "DEPOSITORS", "LAST SEQ"}, func(row func(...any)) {
		for _, v := range vaults {
			row(v.ID, v.Manager, v.Holding, v.TotalBalance, v.Depositors, v.LastSeq)
		}
	})
}

// writeTable renders tab-aligned columns.
func writeTable(w io.Writer, header []string, rows func(row func(...any))) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeRow := func(cells ...any) {
		for i, c := range cells {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, c)
		}
		fmt.Fprintln(tw)
	}

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	writeRow(cells...)
	rows(writeRow)
	return tw.Flush()
}

func formatCapacity(n int) string {
	if n == 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", n)
}
