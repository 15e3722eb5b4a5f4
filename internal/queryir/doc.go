// Package queryir provides a small query intermediate representation (IR)
// for reading the vault step log.
//
// Callers describe what they want (a table, a conjunction of filters and
// an optional column list) and a backend compiles it. The SQLite backend
// lives in internal/querysql:
//
//	[history filters] → [Query IR] → [querysql] → SELECT ... ORDER BY ...
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case AtLeast:
//	case And:
//	}
//
// VALUES:
//
// All literal values use ir.IRValue types. There is no float and no null;
// an unset filter is expressed by leaving the predicate out.
//
// CATALOG:
//
// Field names end up as SQL identifiers, so every query is checked
// against a Catalog (table → column → kind) with Validate before it is
// compiled. Unknown tables, unknown columns and values of the wrong kind
// are rejected.
package queryir
