package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/store"
)

func TestBalancesText(t *testing.T) {
	opts := newTestOptions(t)
	initVault(t, opts)
	deposit(t, opts, "carol", "30")
	deposit(t, opts, "alice", "10")

	out, err := execute(t, NewBalancesCommand(opts), "vault-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Vault vault-1")
	assert.Contains(t, out, "Total:    40")
	assert.Contains(t, out, "Capacity: 100")

	// Depositors are listed in sorted order
	assert.Less(t, strings.Index(out, "alice"), strings.Index(out, "carol"))
}

func TestBalancesEmptyVault(t *testing.T) {
	opts := newTestOptions(t)
	initVault(t, opts, "--capacity", "0")

	out, err := execute(t, NewBalancesCommand(opts), "vault-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Capacity: unbounded")
	assert.Contains(t, out, "No depositors.")
}

func TestBalancesJSON(t *testing.T) {
	opts := newTestOptions(t)
	initVault(t, opts)
	deposit(t, opts, "bob", "7")
	opts.Format = "json"

	out, err := execute(t, NewBalancesCommand(opts), "vault-1")
	require.NoError(t, err)

	var snap ir.VaultSnapshot
	decodeResponse(t, out, &snap)
	assert.Equal(t, uint64(7), snap.TotalBalance)
	assert.Equal(t, []ir.BalanceEntry{{Depositor: "bob", Amount: 7}}, snap.Balances)
}

func TestBalancesUnknownVault(t *testing.T) {
	opts := newTestOptions(t)

	out, err := execute(t, NewBalancesCommand(opts), "vault-9")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_VAULT_NOT_FOUND")
}

func TestBalancesListVaults(t *testing.T) {
	opts := newTestOptions(t)

	out, err := execute(t, NewBalancesCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "No vaults found")

	initVault(t, opts)
	initVault(t, opts)
	deposit(t, opts, "alice", "3")

	opts.Format = "json"
	out, err = execute(t, NewBalancesCommand(opts))
	require.NoError(t, err)

	var vaults []store.VaultSummary
	decodeResponse(t, out, &vaults)
	require.Len(t, vaults, 2)
	assert.Equal(t, "vault-1", vaults[0].ID)
	assert.Equal(t, uint64(3), vaults[0].TotalBalance)
	assert.Equal(t, 1, vaults[0].Depositors)
	assert.Equal(t, "vault-2", vaults[1].ID)
}
