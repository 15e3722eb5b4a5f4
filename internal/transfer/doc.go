// Package transfer provides TransferService implementations for the ledger.
//
// Book moves value between holdings it reads and writes through a Holdings
// interface. Bound to a store transaction, the holdings update commits or
// rolls back together with the ledger step that requested it.
//
// Scripted returns pre-recorded outcomes and is used when replaying the
// step log, where no value may move again.
package transfer
