// Package harness provides conformance testing for vault ledgers.
//
// The harness runs YAML scenarios against the real engine on a fresh
// in-memory store, with a deterministic clock and vault ids, and checks the
// ledger invariants after every step.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	holdings:
//	  - { id: vault-wallet, owner: manager }
//	  - { id: alice-wallet, owner: alice, balance: 1000 }
//	steps:
//	  - { op: initialize, actor: manager, holding: vault-wallet }
//	  - { op: deposit, actor: alice, amount: 100, from: alice-wallet }
//	  - { op: withdraw, actor: bob, amount: 1, to: bob-wallet, expect: NO_DEPOSIT_RECORD }
//	  - { op: deposit, actor: alice, amount: 5, from: alice-wallet, fail_transfer: true, expect: TRANSFER_FAILED }
//	assertions:
//	  - { type: total, amount: 100 }
//	  - { type: balances, expect: { alice: 100 } }
//	  - { type: absent, depositor: bob }
//	  - { type: transfer_count, count: 2 }
//	  - { type: holding_balance, holding: alice-wallet, amount: 900 }
//
// Steps without a vault act on the most recently initialized one. Steps
// without expect must succeed; expect names the error code the step must be
// rejected with.
//
// # Golden Traces
//
// RunWithGolden compares the canonical JSON trace of a scenario against
// testdata/golden/<name>.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
