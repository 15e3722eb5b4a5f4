package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vault/internal/engine"
	"github.com/roach88/vault/internal/ir"
)

// BatchFile is a list of steps submitted in order by the run command.
type BatchFile struct {
	Steps []BatchStep `yaml:"steps"`
}

// BatchStep is one request in a batch file. Vault defaults to the vault
// created by the most recent initialize in the same batch.
type BatchStep struct {
	Op       string `yaml:"op"`
	Vault    string `yaml:"vault,omitempty"`
	Actor    string `yaml:"actor"`
	Amount   uint64 `yaml:"amount,omitempty"`
	From     string `yaml:"from,omitempty"`
	To       string `yaml:"to,omitempty"`
	Holding  string `yaml:"holding,omitempty"`
	Capacity *int   `yaml:"capacity,omitempty"`
}

// BatchStepResult is the outcome of one batch step.
type BatchStepResult struct {
	Index     int    `json:"index"`
	Seq       int64  `json:"seq,omitempty"`
	VaultID   string `json:"vault_id,omitempty"`
	Operation string `json:"op"`
	Actor     string `json:"actor"`
	Case      string `json:"case"`
	ErrorCode string `json:"error_code,omitempty"`
	Total     uint64 `json:"total"`
}

// BatchResult holds the overall run result.
type BatchResult struct {
	Steps     []BatchStepResult `json:"steps"`
	Committed int               `json:"committed"`
	Rejected  int               `json:"rejected"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <batch.yaml>",
		Short: "Submit a batch of steps through the engine loop",
		Long: `Start the single-writer engine loop and submit every step of a YAML batch
file to it in order. Rejected steps are reported and the batch continues.

  steps:
    - {op: initialize, actor: manager, holding: vault-wallet}
    - {op: deposit, actor: alice, amount: 100, from: alice-wallet}
    - {op: withdraw, actor: alice, amount: 40, to: alice-wallet}

Exit codes:
  0 - Every step committed
  1 - One or more steps were rejected
  2 - Command error

Example:
  vault run --db ./vault.db batch.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

// LoadBatch reads a batch file. Unknown fields are rejected.
func LoadBatch(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var batch BatchFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, s := range batch.Steps {
		if _, err := ir.ParseOperation(s.Op); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return &batch, nil
}

func runBatch(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	log := opts.logger()

	batch, err := LoadBatch(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid batch file", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	st, err := openStore(opts, f)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	eng, err := newEngine(ctx, opts, st, f)
	if err != nil {
		return err
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- eng.Run(ctx)
	}()

	result, err := submitBatch(ctx, eng, batch)
	eng.Stop()
	if loopErr := <-loopDone; loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return f.Fail(ExitFailure, ErrCodeGeneric, "engine error", loopErr)
	}
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "batch interrupted", err)
	}

	if opts.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		outputBatchText(cmd, result)
	}

	if result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d step(s) rejected", result.Rejected))
	}
	return nil
}

// submitBatch submits each step and waits for it before the next, so
// later steps can target a vault created earlier in the batch.
func submitBatch(ctx context.Context, eng *engine.Engine, batch *BatchFile) (BatchResult, error) {
	result := BatchResult{Steps: []BatchStepResult{}}
	lastVault := ""

	for i, s := range batch.Steps {
		req := engine.Request{
			Operation:    ir.Operation(s.Op),
			VaultID:      s.Vault,
			Actor:        s.Actor,
			Amount:       s.Amount,
			From:         s.From,
			To:           s.To,
			VaultHolding: s.Holding,
			Capacity:     s.Capacity,
		}
		if req.Operation != ir.OpInitialize && req.VaultID == "" {
			req.VaultID = lastVault
		}

		out, err := eng.Submit(ctx, req)
		if err != nil && (ctx.Err() != nil || engine.IsQueueClosed(err)) {
			return result, err
		}

		res := BatchStepResult{
			Index:     i,
			Seq:       out.Step.Seq,
			VaultID:   out.Step.VaultID,
			Operation: s.Op,
			Actor:     s.Actor,
			Case:      ir.CaseSuccess,
			Total:     out.Vault.TotalBalance,
		}
		if err != nil {
			res.Case = ir.CaseRejected
			res.ErrorCode = engine.ErrorCode(err)
			result.Rejected++
		} else {
			result.Committed++
			if req.Operation == ir.OpInitialize {
				lastVault = out.Step.VaultID
			}
		}
		result.Steps = append(result.Steps, res)
	}

	return result, nil
}

// outputBatchText prints one line per step and a summary.
func outputBatchText(cmd *cobra.Command, result BatchResult) {
	w := cmd.OutOrStdout()
	for _, s := range result.Steps {
		status := "✓"
		detail := fmt.Sprintf("total %d", s.Total)
		if s.Case != ir.CaseSuccess {
			status = "✗"
			detail = s.ErrorCode
		}
		fmt.Fprintf(w, "%s [%d] seq %d %s %s on %s: %s\n",
			status, s.Index, s.Seq, s.Operation, s.Actor, dash(s.VaultID), detail)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d committed, %d rejected\n", result.Committed, result.Rejected)
}
