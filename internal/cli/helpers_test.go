package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vault/internal/engine"
	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/store"
)

// newTestOptions returns options pointing at a fresh database seeded with
// a vault holding and three depositor wallets of 1000 each.
func newTestOptions(t *testing.T) *RootOptions {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "vault.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.PutHoldings(context.Background(), []ir.Holding{
		{ID: "vault-wallet", Owner: "manager"},
		{ID: "alice-wallet", Owner: "alice", Balance: 1000},
		{ID: "bob-wallet", Owner: "bob", Balance: 1000},
		{ID: "carol-wallet", Owner: "carol", Balance: 1000},
	}))
	require.NoError(t, st.Close())

	return &RootOptions{
		Format:      "text",
		DB:          dbPath,
		Capacity:    100,
		IDGenerator: engine.NewFixedGenerator("vault-1", "vault-2", "vault-3"),
	}
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse decodes a JSON CLIResponse whose data is decoded into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()

	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)

	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

// initVault creates vault-1 managed by manager.
func initVault(t *testing.T, opts *RootOptions, extra ...string) {
	t.Helper()
	args := append([]string{"--actor", "manager", "--holding", "vault-wallet"}, extra...)
	_, err := execute(t, NewInitCommand(opts), args...)
	require.NoError(t, err)
}

func deposit(t *testing.T, opts *RootOptions, actor, amount string) {
	t.Helper()
	_, err := execute(t, NewDepositCommand(opts), "vault-1", amount, "--actor", actor, "--from", actor+"-wallet")
	require.NoError(t, err)
}

func readVault(t *testing.T, opts *RootOptions, id string) ir.VaultSnapshot {
	t.Helper()
	st, err := store.Open(opts.DB)
	require.NoError(t, err)
	defer st.Close()

	snap, err := st.ReadVault(context.Background(), id)
	require.NoError(t, err)
	return snap
}
