package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/engine"
	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/manifest"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Actor    string
	Holding  string
	Capacity int
	Manifest string
}

// VaultOutput describes a vault after a step.
type VaultOutput struct {
	VaultID      string            `json:"vault_id"`
	Seq          int64             `json:"seq"`
	StepID       string            `json:"step_id"`
	Manager      string            `json:"manager"`
	Holding      string            `json:"holding"`
	Capacity     int               `json:"capacity"`
	TotalBalance uint64            `json:"total_balance"`
	Balances     []ir.BalanceEntry `json:"balances"`
}

func (v VaultOutput) String() string {
	return fmt.Sprintf("vault %s (seq %d): total %d across %d depositor(s)",
		v.VaultID, v.Seq, v.TotalBalance, len(v.Balances))
}

func newVaultOutput(out engine.Outcome) VaultOutput {
	balances := out.Vault.Balances
	if balances == nil {
		balances = []ir.BalanceEntry{}
	}
	return VaultOutput{
		VaultID:      out.Step.VaultID,
		Seq:          out.Step.Seq,
		StepID:       out.Step.ID,
		Manager:      out.Vault.Manager,
		Holding:      out.Vault.Holding,
		Capacity:     out.Vault.Capacity,
		TotalBalance: out.Vault.TotalBalance,
		Balances:     balances,
	}
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new vault",
		Long: `Create a new vault managed by --actor that receives deposits into --holding.

With --manifest the holdings declared in a CUE manifest are seeded first,
and the manifest's capacity is used unless --capacity is given.

Examples:
  vault init --actor manager --holding vault-wallet
  vault init --actor manager --holding vault-wallet --capacity 10
  vault init --actor manager --holding vault-wallet --manifest holdings.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "identity creating the vault (required)")
	_ = cmd.MarkFlagRequired("actor")
	cmd.Flags().StringVar(&opts.Holding, "holding", "", "holding that receives deposits (required)")
	_ = cmd.MarkFlagRequired("holding")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "maximum number of depositors, 0 for unbounded (default $VAULT_CAPACITY)")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "CUE holdings manifest to seed first")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	var capacity *int
	if cmd.Flags().Changed("capacity") {
		capacity = &opts.Capacity
	}

	var m *manifest.Manifest
	if opts.Manifest != "" {
		var err error
		m, err = manifest.Load(opts.Manifest)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeManifest, "invalid manifest", err)
		}
		if capacity == nil {
			capacity = m.Capacity
		}
	}

	st, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer st.Close()

	if m != nil {
		if err := st.PutHoldings(ctx, m.Holdings); err != nil {
			return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to seed holdings", err)
		}
		f.VerboseLog("Seeded %d holding(s) from %s", len(m.Holdings), opts.Manifest)
	}

	eng, err := newEngine(ctx, opts.RootOptions, st, f)
	if err != nil {
		return err
	}

	out, err := eng.Apply(ctx, engine.Request{
		Operation:    ir.OpInitialize,
		Actor:        opts.Actor,
		VaultHolding: opts.Holding,
		Capacity:     capacity,
	})
	if err != nil {
		return f.Fail(stepExitCode(err), stepErrorCode(err), "initialize failed", err)
	}

	return f.Success(newVaultOutput(out))
}
