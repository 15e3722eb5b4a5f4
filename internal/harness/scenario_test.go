package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: One vault, one deposit
holdings:
  - id: vault-wallet
    owner: manager
  - id: alice-wallet
    owner: alice
    balance: 10
steps:
  - op: initialize
    actor: manager
    holding: vault-wallet
  - op: deposit
    actor: alice
    amount: 10
    from: alice-wallet
assertions:
  - type: total
    amount: 10
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Holdings, 2)
	assert.Equal(t, uint64(10), s.Holdings[1].Balance)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, "initialize", s.Steps[0].Op)
	assert.Equal(t, "vault-wallet", s.Steps[0].Holding)
	assert.Equal(t, uint64(10), s.Steps[1].Amount)
	assert.Equal(t, "alice-wallet", s.Steps[1].From)
	assert.Nil(t, s.Capacity)
}

func TestParseScenario_MaxAmount(t *testing.T) {
	data := `
name: max
description: Largest amount
steps:
  - op: deposit
    actor: alice
    amount: 18446744073709551615
assertions:
  - type: transfer_count
    count: 0
`
	s, err := ParseScenario([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), s.Steps[0].Amount)
}

func TestParseScenario_UnknownField(t *testing.T) {
	data := `
name: typo
description: Misspelled field
steps:
  - op: deposit
    actor: alice
    ammount: 5
assertions:
  - type: total
`
	_, err := ParseScenario([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ammount")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: x\nsteps: [{op: initialize, actor: m}]\nassertions: [{type: total}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps: [{op: initialize, actor: m}]\nassertions: [{type: total}]",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\ndescription: x\nassertions: [{type: total}]",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: x\ndescription: x\nsteps: [{op: initialize, actor: m}]",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown operation",
			yaml:    "name: x\ndescription: x\nsteps: [{op: borrow, actor: m}]\nassertions: [{type: total}]",
			wantErr: "unknown operation",
		},
		{
			name:    "missing actor",
			yaml:    "name: x\ndescription: x\nsteps: [{op: deposit}]\nassertions: [{type: total}]",
			wantErr: "actor is required",
		},
		{
			name:    "negative capacity",
			yaml:    "name: x\ndescription: x\ncapacity: -1\nsteps: [{op: initialize, actor: m}]\nassertions: [{type: total}]",
			wantErr: "capacity must be >= 0",
		},
		{
			name:    "duplicate holding",
			yaml:    "name: x\ndescription: x\nholdings: [{id: a, owner: o}, {id: a, owner: p}]\nsteps: [{op: initialize, actor: m}]\nassertions: [{type: total}]",
			wantErr: "duplicate id",
		},
		{
			name:    "balances without expect",
			yaml:    "name: x\ndescription: x\nsteps: [{op: initialize, actor: m}]\nassertions: [{type: balances}]",
			wantErr: "balances requires expect",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: x\nsteps: [{op: initialize, actor: m}]\nassertions: [{type: trace_order}]",
			wantErr: "unknown assertion type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadDir_SortedByFileName(t *testing.T) {
	dir := t.TempDir()
	second := []byte("name: b\ndescription: x\nsteps: [{op: initialize, actor: m}]\nassertions: [{type: total}]")
	first := []byte("name: a\ndescription: x\nsteps: [{op: initialize, actor: m}]\nassertions: [{type: total}]")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20_second.yml"), second, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10_first.yaml"), first, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, "b", scenarios[1].Name)
}

func TestLoadDir_ReportsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: x"), 0644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoadDir_Testdata(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	assert.Len(t, scenarios, 5)
}
