package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vault/internal/ir"
)

func TestHoldingsCreateAndShow(t *testing.T) {
	opts := newTestOptions(t)

	out, err := execute(t, NewHoldingsCommand(opts), "create", "dave-wallet", "--owner", "dave", "--balance", "18446744073709551615")
	require.NoError(t, err)
	assert.Contains(t, out, "holding dave-wallet (owner dave): 18446744073709551615")

	opts.Format = "json"
	out, err = execute(t, NewHoldingsCommand(opts), "show", "dave-wallet")
	require.NoError(t, err)

	var holdings []ir.Holding
	decodeResponse(t, out, &holdings)
	require.Len(t, holdings, 1)
	assert.Equal(t, ir.Holding{ID: "dave-wallet", Owner: "dave", Balance: 18446744073709551615}, holdings[0])
}

func TestHoldingsCreateInvalidBalance(t *testing.T) {
	opts := newTestOptions(t)

	_, err := execute(t, NewHoldingsCommand(opts), "create", "dave-wallet", "--owner", "dave", "--balance", "lots")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHoldingsShowAll(t *testing.T) {
	opts := newTestOptions(t)

	out, err := execute(t, NewHoldingsCommand(opts), "show")
	require.NoError(t, err)
	assert.Contains(t, out, "HOLDING")
	assert.Contains(t, out, "alice-wallet")
	assert.Contains(t, out, "vault-wallet")
}

func TestHoldingsShowUnknown(t *testing.T) {
	opts := newTestOptions(t)

	out, err := execute(t, NewHoldingsCommand(opts), "show", "nobody-wallet")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_HOLDING_NOT_FOUND")
}

func TestHoldingsLoad(t *testing.T) {
	opts := newTestOptions(t)

	path := filepath.Join(t.TempDir(), "holdings.cue")
	manifest := `capacity: 2
holdings: [
	{id: "alice-wallet", owner: "alice", balance: 5},
	{id: "erin-wallet", owner: "erin"},
]
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))

	opts.Format = "json"
	out, err := execute(t, NewHoldingsCommand(opts), "load", path)
	require.NoError(t, err)

	var result LoadResult
	decodeResponse(t, out, &result)
	assert.Len(t, result.Holdings, 2)
	require.NotNil(t, result.Capacity)
	assert.Equal(t, 2, *result.Capacity)

	out, err = execute(t, NewHoldingsCommand(opts), "show", "alice-wallet")
	require.NoError(t, err)
	var holdings []ir.Holding
	decodeResponse(t, out, &holdings)
	assert.Equal(t, uint64(5), holdings[0].Balance)
}

func TestHoldingsLoadDuplicate(t *testing.T) {
	opts := newTestOptions(t)

	path := filepath.Join(t.TempDir(), "holdings.cue")
	manifest := `holdings: [
	{id: "x", owner: "a"},
	{id: "x", owner: "b"},
]
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))

	out, err := execute(t, NewHoldingsCommand(opts), "load", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "duplicate holding id")
}
