// Package manifest loads holdings manifests written in CUE.
//
// A manifest declares the holdings (external accounts) that vault steps move
// value between, and optionally the default vault capacity:
//
//	capacity: 50
//	holdings: [
//		{id: "vault-wallet", owner: "manager"},
//		{id: "alice-wallet", owner: "alice", balance: 1000},
//	]
//
// The manifest is unified with an embedded schema, so unknown fields,
// negative balances and balances beyond the uint64 range are rejected with
// the position of the offending value.
package manifest

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/vault/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Manifest is a decoded holdings manifest.
type Manifest struct {
	// Capacity is nil when the manifest does not set one.
	Capacity *int
	Holdings []ir.Holding
}

// Error is a manifest validation failure.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles data as CUE, validates it against the manifest schema and
// decodes it. name is used in error positions.
func Parse(name string, data []byte) (*Manifest, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("manifest schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(name, err)
	}

	m := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(v)
	if err := m.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(name, err)
	}

	return decode(m, v)
}

// decode reads the validated value v. raw is the manifest as written, used
// for positions that must point into the manifest rather than the schema.
func decode(v, raw cue.Value) (*Manifest, error) {
	out := &Manifest{Holdings: []ir.Holding{}}

	if c := v.LookupPath(cue.ParsePath("capacity")); c.Exists() {
		n, err := c.Int64()
		if err != nil {
			return nil, &Error{Message: err.Error(), Pos: c.Pos()}
		}
		capacity := int(n)
		out.Capacity = &capacity
	}

	iter, err := v.LookupPath(cue.ParsePath("holdings")).List()
	if err != nil {
		return nil, formatCUEError("", err)
	}

	rawIter, err := raw.LookupPath(cue.ParsePath("holdings")).List()
	if err != nil {
		return nil, formatCUEError("", err)
	}

	seen := make(map[string]token.Pos)
	for iter.Next() {
		hv := iter.Value()
		rawIter.Next()
		pos := rawIter.Value().Pos()

		var h ir.Holding
		if h.ID, err = hv.LookupPath(cue.ParsePath("id")).String(); err != nil {
			return nil, formatCUEError("", err)
		}
		if h.Owner, err = hv.LookupPath(cue.ParsePath("owner")).String(); err != nil {
			return nil, formatCUEError("", err)
		}
		if h.Balance, err = hv.LookupPath(cue.ParsePath("balance")).Uint64(); err != nil {
			return nil, formatCUEError("", err)
		}

		if first, dup := seen[h.ID]; dup {
			return nil, &Error{
				Message: fmt.Sprintf("duplicate holding id %q (first declared at line %d)", h.ID, first.Line()),
				Pos:     pos,
			}
		}
		seen[h.ID] = pos

		out.Holdings = append(out.Holdings, h)
	}

	return out, nil
}

// formatCUEError turns the first CUE error into an *Error, preferring a
// position inside the manifest file over one inside the schema.
func formatCUEError(name string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) == 0 {
		return &Error{Message: first.Error()}
	}

	pos := positions[0]
	for _, p := range positions {
		if p.Filename() == name {
			pos = p
			break
		}
	}
	return &Error{Message: first.Error(), Pos: pos}
}
