// Package engine hosts vault ledgers and executes their steps.
//
// The ledger package defines what a deposit or withdrawal does to a vault.
// The engine supplies everything around it: persistence, ordering, atomic
// commit and the transfer service each step talks to.
//
// ARCHITECTURE:
//
// Single-Writer Step Loop:
// Steps are processed one at a time. Submit enqueues a request from any
// goroutine; Run dequeues in FIFO order and applies each request. Apply
// may also be called directly by a single caller (the CLI does this).
//
// Step Execution:
//  1. Stamp the request with the next seq from the logical clock
//  2. Begin a store transaction and load the vault
//  3. Run the ledger operation with a transfer.Book bound to the transaction
//  4. Save the new snapshot and append the step record
//  5. Commit, or roll back and append a rejected step record
//
// A rejected step leaves the vault, its balances and every holding exactly
// as they were. Only the rejected step record survives, for audit.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// All steps stamped with a monotonic seq from Sequencer.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Deterministic Replay:
// Replay rebuilds a vault from its step log in seq order against scripted
// transfer outcomes and compares the resulting StateHash with the stored
// snapshot.
package engine
