package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/engine"
)

// ReplaySummary holds the overall replay result.
type ReplaySummary struct {
	Vaults           []engine.ReplayResult `json:"vaults"`
	TotalVaults      int                   `json:"total_vaults"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [vault-id]",
		Short: "Replay the step log and verify determinism",
		Long: `Rebuild vaults from their step logs and compare the result with the
stored snapshots.

Every recorded step is re-run with the ledger rules, using the recorded
transfer outcome instead of moving value. A vault verifies when every step
reproduces its recorded result and the rebuilt state hash equals the stored
one. Without an id every vault is replayed.

Exit codes:
  0 - All vaults are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  vault replay
  vault replay 0190...
  vault replay --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			vaultID := ""
			if len(args) == 1 {
				vaultID = args[0]
			}
			return runReplay(rootOpts, vaultID, cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, vaultID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts, cmd)

	st, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer st.Close()

	// Get vaults to process
	var vaultIDs []string
	if vaultID != "" {
		vaultIDs = []string{vaultID}
	} else {
		vaults, err := st.ListVaults(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to list vaults", err)
		}
		for _, v := range vaults {
			vaultIDs = append(vaultIDs, v.ID)
		}
	}

	eng := engine.New(st, engine.WithLogger(opts.logger()))

	summary := ReplaySummary{
		Vaults:           make([]engine.ReplayResult, 0, len(vaultIDs)),
		TotalVaults:      len(vaultIDs),
		AllDeterministic: true,
	}

	for _, id := range vaultIDs {
		res, err := eng.Replay(ctx, id)
		if err != nil {
			return f.Fail(stepExitCode(err), stepErrorCode(err), fmt.Sprintf("failed to replay vault %s", id), err)
		}
		summary.Vaults = append(summary.Vaults, res)
		if !res.Identical {
			summary.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(f, summary)
	}
	return outputReplayText(cmd, summary, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, summary ReplaySummary) error {
	response := CLIResponse{
		Status: "ok",
		Data:   summary,
	}

	if !summary.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDeterminism,
			Message: "determinism verification failed",
		}
	}

	if err := f.encode(response); err != nil {
		return err
	}

	if !summary.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, summary ReplaySummary, verbose bool) error {
	w := cmd.OutOrStdout()

	if summary.TotalVaults == 0 {
		fmt.Fprintln(w, "No vaults found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d vault(s)\n", summary.TotalVaults)
	fmt.Fprintln(w)

	for _, v := range summary.Vaults {
		status := "✓"
		if !v.Identical {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Vault: %s\n", status, v.VaultID)
		fmt.Fprintf(w, "  Steps: %d committed, %d rejected\n", v.Committed, v.Rejected)
		if verbose {
			fmt.Fprintf(w, "  State hash:  %s\n", v.StateHash)
			fmt.Fprintf(w, "  Stored hash: %s\n", v.StoredHash)
		}
		for _, m := range v.Mismatches {
			fmt.Fprintf(w, "  Mismatch: %s\n", m)
		}
		fmt.Fprintln(w)
	}

	if summary.AllDeterministic {
		fmt.Fprintln(w, "✓ All vaults verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
