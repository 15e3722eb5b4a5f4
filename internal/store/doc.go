// Package store provides SQLite-backed durable storage for vaults.
//
// The store keeps:
//   - Vaults: one record per pool instance (manager, holding, capacity, total)
//   - Balances: per-depositor entries, primary key (vault_id, depositor)
//   - Holdings: external accounts moved by the book transfer service
//   - Steps: append-only log of every executed or rejected transition
//
// # Atomic Steps
//
// A ledger step touches the vault, its balances, two holdings and the step
// log. Tx groups all of these in one SQL transaction so a step either
// commits completely or leaves no trace besides its rejected step record.
//
// # Deterministic Reads
//
//   - Balances: ORDER BY depositor COLLATE BINARY
//   - Steps: ORDER BY seq ASC, id COLLATE BINARY ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
