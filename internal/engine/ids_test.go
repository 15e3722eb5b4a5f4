package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}

	first := g.Generate()
	second := g.Generate()
	assert.NotEqual(t, first, second)

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Len(t, first, 36)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("vault-a", "vault-b")

	assert.Equal(t, "vault-a", g.Generate())
	assert.Equal(t, "vault-b", g.Generate())
	assert.Panics(t, func() { g.Generate() }, "exhausted generator should panic")
}
