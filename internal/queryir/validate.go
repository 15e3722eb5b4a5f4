package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/vault/internal/ir"
)

// Kind is the value kind stored in a column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column describes one queryable column.
type Column struct {
	Name string
	Kind Kind
}

// Table describes a queryable table.
//
// Order lists the columns that give rows a total, deterministic order.
// Backends must sort by them; text columns are compared byte-wise.
type Table struct {
	Name    string
	Columns []Column
	Order   []string
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog maps table names to their descriptions.
type Catalog map[string]Table

// ValidationError lists every problem found in a query.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

// Validate checks a query against a catalog.
//
// Rules:
//  1. The table must exist and declare at least one order column
//  2. Projected and filtered columns must exist in the table
//  3. Equals values must match the column kind
//  4. AtLeast only applies to int columns
//
// Returns nil or a *ValidationError. Validate is a pure function.
func Validate(query Query, cat Catalog) error {
	v := &validator{catalog: cat}
	v.validateQuery(query)
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	catalog  Catalog
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	table, ok := v.catalog[sel.From]
	if !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	if len(table.Order) == 0 {
		v.addProblem("table %q has no order columns", sel.From)
	}
	for _, name := range sel.Columns {
		if _, ok := table.Column(name); !ok {
			v.addProblem("unknown column %q in %s", name, sel.From)
		}
	}
	v.validatePredicate(table, sel.Filter)
}

func (v *validator) validatePredicate(table Table, p Predicate) {
	switch pred := p.(type) {
	case nil:
		// no filter
	case Equals:
		v.validateEquals(table, pred)
	case *Equals:
		v.validateEquals(table, *pred)
	case AtLeast:
		v.validateAtLeast(table, pred)
	case *AtLeast:
		v.validateAtLeast(table, *pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(table, sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(table, sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(table Table, eq Equals) {
	col, ok := table.Column(eq.Field)
	if !ok {
		v.addProblem("unknown column %q in %s", eq.Field, table.Name)
		return
	}
	got, ok := kindOf(eq.Value)
	if !ok {
		v.addProblem("column %q compared to unsupported value %T", eq.Field, eq.Value)
		return
	}
	if got != col.Kind {
		v.addProblem("column %q is %s, compared to %s", eq.Field, col.Kind, got)
	}
}

func (v *validator) validateAtLeast(table Table, ge AtLeast) {
	col, ok := table.Column(ge.Field)
	if !ok {
		v.addProblem("unknown column %q in %s", ge.Field, table.Name)
		return
	}
	if col.Kind != KindInt {
		v.addProblem("column %q is %s, lower bound needs int", ge.Field, col.Kind)
	}
}

// kindOf maps scalar IR values to column kinds.
// Arrays and objects have no column kind.
func kindOf(v ir.IRValue) (Kind, bool) {
	switch v.(type) {
	case ir.IRString:
		return KindText, true
	case ir.IRInt:
		return KindInt, true
	case ir.IRBool:
		return KindBool, true
	default:
		return 0, false
	}
}
