// Package ir provides the canonical record types for the vault ledger.
//
// This package contains type definitions and canonical encoding only. All
// other internal packages import ir; ir imports nothing internal, which keeps
// it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere; amounts are uint64 and travel as decimal
//     strings inside canonical JSON so no precision is lost
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
//   - Balance snapshots are always ordered by depositor (byte-wise ascending)
package ir
