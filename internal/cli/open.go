package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/vault/internal/engine"
	"github.com/roach88/vault/internal/store"
)

// openStore opens the configured database.
func openStore(opts *RootOptions, f *OutputFormatter) (*store.Store, error) {
	f.VerboseLog("Opening database %s", opts.DB)
	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	return st, nil
}

// newEngine creates an engine whose clock continues the step log in st.
func newEngine(ctx context.Context, opts *RootOptions, st *store.Store, f *OutputFormatter) (*engine.Engine, error) {
	engOpts := []engine.Option{
		engine.WithCapacity(opts.Capacity),
		engine.WithLogger(opts.logger()),
	}
	if opts.IDGenerator != nil {
		engOpts = append(engOpts, engine.WithIDGenerator(opts.IDGenerator))
	}

	eng, err := engine.Resume(ctx, st, engOpts...)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to resume engine", err)
	}
	return eng, nil
}

// commandContext returns the command's context, or Background when the
// command runs without one (direct Execute in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
