package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/manifest"
	"github.com/roach88/vault/internal/store"
)

// HoldingsOptions holds flags for the holdings create command.
type HoldingsOptions struct {
	*RootOptions
	Owner   string
	Balance string
}

// LoadResult reports the holdings seeded from a manifest.
type LoadResult struct {
	Manifest string       `json:"manifest"`
	Holdings []ir.Holding `json:"holdings"`
	Capacity *int         `json:"capacity,omitempty"`
}

// NewHoldingsCommand creates the holdings command group.
func NewHoldingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holdings",
		Short: "Manage the holdings value moves between",
		Long: `Holdings are the external accounts deposits draw from and withdrawals
pay into. Each holding has an owner; only the owner can authorize value
leaving it into a vault, or arriving in it from a vault.`,
	}

	cmd.AddCommand(newHoldingsCreateCommand(rootOpts))
	cmd.AddCommand(newHoldingsShowCommand(rootOpts))
	cmd.AddCommand(newHoldingsLoadCommand(rootOpts))

	return cmd
}

func newHoldingsCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HoldingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create or replace a holding",
		Example: `  vault holdings create alice-wallet --owner alice --balance 1000
  vault holdings create vault-wallet --owner manager`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHoldingsCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "identity that owns the holding (required)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.Flags().StringVar(&opts.Balance, "balance", "0", "initial balance")

	return cmd
}

func runHoldingsCreate(opts *HoldingsOptions, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	balance, err := ir.ParseAmount(opts.Balance)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --balance", err)
	}
	if id == "" || opts.Owner == "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid holding", errors.New("id and owner must not be empty"))
	}

	st, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer st.Close()

	h := ir.Holding{ID: id, Owner: opts.Owner, Balance: balance}
	if err := st.PutHolding(ctx, h); err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to save holding", err)
	}

	opts.logger().Info("holding saved", "holding", h.ID, "owner", h.Owner, "balance", h.Balance)

	if opts.Format == "json" {
		return f.Success(h)
	}
	return f.Success(fmt.Sprintf("holding %s (owner %s): %d", h.ID, h.Owner, h.Balance))
}

func newHoldingsShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one holding, or all of them",
		Example: `  vault holdings show
  vault holdings show alice-wallet --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHoldingsShow(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runHoldingsShow(opts *RootOptions, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts, cmd)

	st, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer st.Close()

	var holdings []ir.Holding
	if len(args) == 1 {
		h, err := st.ReadHolding(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return f.Fail(ExitFailure, "E_HOLDING_NOT_FOUND", "unknown holding", err)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to read holding", err)
		}
		holdings = []ir.Holding{h}
	} else {
		holdings, err = st.ListHoldings(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to list holdings", err)
		}
	}

	if opts.Format == "json" {
		return f.Success(holdings)
	}

	w := cmd.OutOrStdout()
	if len(holdings) == 0 {
		fmt.Fprintln(w, "No holdings found in database.")
		return nil
	}
	return writeTable(w, []string{"HOLDING", "OWNER", "BALANCE"}, func(row func(...any)) {
		for _, h := range holdings {
			row(h.ID, h.Owner, h.Balance)
		}
	})
}

func newHoldingsLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <manifest.cue>",
		Short: "Seed holdings from a CUE manifest",
		Long: `Validate a CUE holdings manifest and create or replace every holding it
declares, in one transaction.`,
		Example:       `  vault holdings load holdings.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHoldingsLoad(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runHoldingsLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts, cmd)

	m, err := manifest.Load(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeManifest, "invalid manifest", err)
	}

	st, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.PutHoldings(ctx, m.Holdings); err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to seed holdings", err)
	}

	opts.logger().Info("holdings loaded", "manifest", path, "count", len(m.Holdings))

	result := LoadResult{Manifest: path, Holdings: m.Holdings, Capacity: m.Capacity}
	if opts.Format == "json" {
		return f.Success(result)
	}
	return f.Success(fmt.Sprintf("loaded %d holding(s) from %s", len(m.Holdings), path))
}
