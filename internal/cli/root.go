package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/config"
	"github.com/roach88/vault/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	DB        string // SQLite database path
	LogFormat string // "text" | "json"

	// Capacity is the default capacity for new vaults (VAULT_CAPACITY).
	Capacity int

	// Logger receives engine and command logs. Set from the environment
	// and flags before any command runs; nil discards logs.
	Logger *slog.Logger

	// IDGenerator allows overriding the vault id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.VaultIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vault CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vault",
		Short: "vault - per-depositor balance ledger",
		Long: `A ledger that records how much each depositor placed into a shared vault
and moves the value between holdings through a transfer service.

Settings are read from the environment (VAULT_DB, VAULT_CAPACITY,
VAULT_LOG_LEVEL, VAULT_LOG_FORMAT); flags take precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.applyConfig(cmd.ErrOrStderr())
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to SQLite database (default $VAULT_DB or vault.db)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json, default $VAULT_LOG_FORMAT or text)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewBalancesCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewHoldingsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// Execute runs the command tree. Every failure comes back as an *ExitError;
// errors cobra raises before a command runs (unknown commands or flags,
// missing required flags, wrong argument counts) exit with ExitCommandError.
func Execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(ExitCommandError, "usage error", err)
}

// applyConfig fills every option the flags left unset from the
// environment and builds the logger.
func (o *RootOptions) applyConfig(logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	if o.DB == "" {
		o.DB = cfg.DB
	}
	if o.LogFormat == "" {
		o.LogFormat = cfg.LogFormat
	}
	o.Capacity = cfg.Capacity

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}

	o.Logger, err = config.NewLogger(logOut, o.LogFormat, level)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return nil
}

// logger returns the configured logger or one that discards everything.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
