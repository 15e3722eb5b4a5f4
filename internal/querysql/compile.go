package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: every query ends with an ORDER BY over the table's order columns.
// CRITICAL: values are always parameterized, never interpolated.
type SQLCompiler struct {
	Catalog queryir.Catalog
}

// NewSQLCompiler creates a compiler for the given catalog.
func NewSQLCompiler(cat queryir.Catalog) *SQLCompiler {
	return &SQLCompiler{Catalog: cat}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error). The query is validated against the
// catalog first, so column names in the output are known identifiers.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q, c.Catalog); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	table := c.Catalog[q.From]

	columns := q.Columns
	if len(columns) == 0 {
		columns = table.ColumnNames()
	}

	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(columns, ", "),
		table.Name,
		whereClause,
		stableOrderKey(table))

	return sql, params, nil
}

// stableOrderKey renders the table's order columns.
// Text columns use COLLATE BINARY for byte-wise ordering across SQLite versions.
func stableOrderKey(table queryir.Table) string {
	parts := make([]string, 0, len(table.Order))
	for _, name := range table.Order {
		col, _ := table.Column(name)
		if col.Kind == queryir.KindText {
			parts = append(parts, name+" COLLATE BINARY ASC")
		} else {
			parts = append(parts, name+" ASC")
		}
	}
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.AtLeast:
		return fmt.Sprintf("%s >= ?", pred.Field), []any{int64(pred.Value)}, nil
	case *queryir.AtLeast:
		return fmt.Sprintf("%s >= ?", pred.Field), []any{int64(pred.Value)}, nil
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles an Equals predicate to "field = ?".
func compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s = ?", eq.Field), []any{param}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	sqlParts := make([]string, 0, len(and.Predicates))
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
