package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/queryir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Operation string // optional - filter to one operation
	Actor     string // optional - filter to one actor
	Rejected  bool   // only rejected steps
	Since     int64  // only steps with seq >= Since
}

// HistoryStats holds summary statistics for a history listing.
type HistoryStats struct {
	Steps     int `json:"steps"`
	Committed int `json:"committed"`
	Rejected  int `json:"rejected"`
}

// HistoryResult holds the complete history output.
type HistoryResult struct {
	VaultID string       `json:"vault_id,omitempty"`
	Steps   []ir.Step    `json:"steps"`
	Stats   HistoryStats `json:"stats"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [vault-id]",
		Short: "Show the step log",
		Long: `Show the step log of one vault, or of every vault when no id is given,
in seq order. Rejected steps are listed with their error code.

Examples:
  vault history 0190...
  vault history 0190... --op withdraw --actor alice
  vault history --rejected --since 40
  vault history --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			vaultID := ""
			if len(args) == 1 {
				vaultID = args[0]
			}
			return runHistory(opts, vaultID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Operation, "op", "", "only show this operation (initialize|deposit|withdraw)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "only show steps signed by this actor")
	cmd.Flags().BoolVar(&opts.Rejected, "rejected", false, "only show rejected steps")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only show steps with seq >= this value")

	return cmd
}

func runHistory(opts *HistoryOptions, vaultID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Operation != "" {
		if _, err := ir.ParseOperation(opts.Operation); err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --op", err)
		}
	}

	st, err := openStore(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer st.Close()

	steps, err := st.QuerySteps(ctx, historyFilter(opts, vaultID))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to read steps", err)
	}

	result := HistoryResult{VaultID: vaultID, Steps: steps}
	for _, step := range steps {
		if step.Committed() {
			result.Stats.Committed++
		} else {
			result.Stats.Rejected++
		}
	}
	result.Stats.Steps = len(result.Steps)

	if opts.Format == "json" {
		return f.Success(result)
	}
	return outputHistoryText(cmd, result, opts.Verbose)
}

// historyFilter turns the command's flags into a step-log filter.
func historyFilter(opts *HistoryOptions, vaultID string) queryir.Predicate {
	var preds []queryir.Predicate
	if vaultID != "" {
		preds = append(preds, queryir.Equals{Field: "vault_id", Value: ir.IRString(vaultID)})
	}
	if opts.Operation != "" {
		preds = append(preds, queryir.Equals{Field: "operation", Value: ir.IRString(opts.Operation)})
	}
	if opts.Actor != "" {
		preds = append(preds, queryir.Equals{Field: "actor", Value: ir.IRString(opts.Actor)})
	}
	if opts.Rejected {
		preds = append(preds, queryir.Equals{Field: "output_case", Value: ir.IRString(ir.CaseRejected)})
	}
	if opts.Since > 0 {
		preds = append(preds, queryir.AtLeast{Field: "seq", Value: ir.IRInt(opts.Since)})
	}
	return queryir.Where(preds...)
}

// outputHistoryText outputs the history as a table.
func outputHistoryText(cmd *cobra.Command, result HistoryResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Steps) == 0 {
		fmt.Fprintln(w, "No steps found.")
		return nil
	}

	header := []string{"SEQ", "VAULT", "OP", "ACTOR", "AMOUNT", "FROM", "TO", "RESULT"}
	if verbose {
		header = append(header, "STEP ID")
	}

	err := writeTable(w, header, func(row func(...any)) {
		for _, s := range result.Steps {
			outcome := s.OutputCase
			if s.ErrorCode != "" {
				outcome = s.ErrorCode
			}
			cells := []any{s.Seq, s.VaultID, s.Operation, s.Actor, s.Amount, dash(s.Source), dash(s.Destination), outcome}
			if verbose {
				cells = append(cells, s.ID)
			}
			row(cells...)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d step(s): %d committed, %d rejected\n",
		result.Stats.Steps, result.Stats.Committed, result.Stats.Rejected)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
