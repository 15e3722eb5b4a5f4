// Package ledger implements the vault: a per-depositor balance ledger for one
// shared pool.
//
// A Vault is created by Initialize and mutated only by Deposit and Withdraw.
// Each transition validates arithmetic, updates the in-memory ledger, and
// issues exactly one request to a TransferService. If the transfer fails the
// transition is undone, so a failed step never leaves partial state behind.
//
// INVARIANTS (hold after every completed transition):
//   - TotalBalance() equals the sum of all depositor balances
//   - every recorded balance is > 0; a balance reaching zero is removed
//   - no uint64 arithmetic wraps; overflow and underflow fail the step
//   - depositors enumerate in byte-wise ascending order
//
// The ledger performs no locking. The hosting environment (package engine)
// serializes steps against a vault and persists each step atomically.
//
// The manager recorded at Initialize is informational only and is never used
// for access control.
package ledger
