package queryir

import "github.com/roach88/vault/internal/ir"

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition in the QueryIR.
//
// Predicate types:
//   - Equals: field = literal_value
//   - AtLeast: field >= literal_int
//   - And: all predicates must be true
//
// There is no OR; callers issue separate queries instead.
type Predicate interface {
	predicateNode()
}

// Select represents a basic table access query with filtering.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <table order key>
//
// Example:
//
//	Select{
//	  From: "steps",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "vault_id", Value: ir.IRString("v1")},
//	    Equals{Field: "operation", Value: ir.IRString("withdraw")},
//	  }},
//	}
//
// Columns lists the columns to return, in order. Empty means every column
// of the table in catalog order; the compiler never emits SELECT *.
type Select struct {
	From    string    // Table name (e.g., "steps")
	Filter  Predicate // WHERE conditions (nil = no filter)
	Columns []string  // Projection (empty = all catalog columns)
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
//	Equals{Field: "actor", Value: ir.IRString("alice")}
//
// Translates to SQL:
//
//	actor = ?
type Equals struct {
	Field string     // Column name in the queried table
	Value ir.IRValue // Literal value (string, int or bool)
}

func (Equals) predicateNode() {}

// AtLeast represents an inclusive lower bound on an integer column.
//
//	AtLeast{Field: "seq", Value: 10}
//
// Translates to SQL:
//
//	seq >= ?
type AtLeast struct {
	Field string
	Value ir.IRInt
}

func (AtLeast) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where combines predicates into a single filter, dropping nils.
// Returns nil when nothing remains and the predicate itself when only one
// remains, so callers can build filters from optional flags.
func Where(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
