package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/engine"
	"github.com/roach88/vault/internal/ir"
)

// StepOptions holds flags shared by deposit and withdraw.
type StepOptions struct {
	*RootOptions
	Actor string
	From  string
	To    string
}

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deposit <vault-id> <amount>",
		Short: "Deposit into a vault",
		Long: `Credit amount to the depositor (--actor) and move it from --from into the
vault's holding.

Exit codes:
  0 - Deposit committed
  1 - Deposit rejected (OVERFLOW, LEDGER_FULL, TRANSFER_FAILED, ...)
  2 - Command error

Examples:
  vault deposit 0190... 100 --actor alice --from alice-wallet`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(opts, ir.OpDeposit, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "depositor identity (required)")
	_ = cmd.MarkFlagRequired("actor")
	cmd.Flags().StringVar(&opts.From, "from", "", "holding the value leaves (required)")
	_ = cmd.MarkFlagRequired("from")
	cmd.Flags().StringVar(&opts.To, "to", "", "holding the value arrives in (defaults to the vault holding, the only accepted value)")

	return cmd
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "withdraw <vault-id> <amount>",
		Short: "Withdraw from a vault",
		Long: `Debit amount from the depositor (--actor) and move it from the vault's
holding into --to. Withdrawing the whole balance removes the depositor.

Exit codes:
  0 - Withdrawal committed
  1 - Withdrawal rejected (NO_DEPOSIT_RECORD, INSUFFICIENT_USER_BALANCE, ...)
  2 - Command error

Examples:
  vault withdraw 0190... 40 --actor alice --to alice-wallet`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(opts, ir.OpWithdraw, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "depositor identity (required)")
	_ = cmd.MarkFlagRequired("actor")
	cmd.Flags().StringVar(&opts.To, "to", "", "holding the value arrives in (required)")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().StringVar(&opts.From, "from", "", "holding the value leaves (defaults to the vault holding, the only accepted value)")

	return cmd
}

func runStep(opts *StepOptions, op ir.Operation, vaultID, amountArg string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	amount, err := ir.ParseAmount(amountArg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid amount", err)
	}

	st, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := newEngine(ctx, opts.RootOptions, st, f)
	if err != nil {
		return err
	}

	out, err := eng.Apply(ctx, engine.Request{
		Operation: op,
		VaultID:   vaultID,
		Actor:     opts.Actor,
		Amount:    amount,
		From:      opts.From,
		To:        opts.To,
	})
	if err != nil {
		return f.Fail(stepExitCode(err), stepErrorCode(err), string(op)+" rejected", err)
	}

	return f.Success(newVaultOutput(out))
}
