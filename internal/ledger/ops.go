package ledger

import (
	"context"
	"math/bits"
)

// Deposit credits amount to depositor and requests a transfer of exactly
// amount from acct.From to acct.To authorized by depositor.
//
// Fails with ErrOverflow if the vault total or the depositor balance would
// exceed the uint64 range, and with ErrLedgerFull if depositor is new and
// the vault is at capacity. A zero amount leaves balances unchanged but
// still issues the transfer request. If the transfer fails the vault is
// left exactly as it was.
func Deposit(ctx context.Context, v *Vault, depositor string, amount uint64, acct Accounts, svc TransferService) error {
	newTotal, ok := addChecked(v.total, amount)
	if !ok {
		return newError(CodeOverflow, "vault total would overflow", depositor, amount)
	}

	current, exists := v.Balance(depositor)
	newBalance, ok := addChecked(current, amount)
	if !ok {
		return newError(CodeOverflow, "depositor balance would overflow", depositor, amount)
	}

	if !exists && newBalance > 0 && v.capacity > 0 && v.Len() >= v.capacity {
		return newError(CodeLedgerFull, "vault has no room for a new depositor", depositor, amount)
	}

	prevTotal := v.total
	v.total = newTotal
	v.setBalance(depositor, newBalance)

	err := requestTransfer(ctx, svc, TransferRequest{
		From:      acct.From,
		To:        acct.To,
		Authority: depositor,
		Amount:    amount,
		Direction: DirectionIn,
	})
	if err != nil {
		v.total = prevTotal
		v.setBalance(depositor, current)
		return err
	}
	return nil
}

// Withdraw debits amount from depositor and requests a transfer of exactly
// amount from acct.From to acct.To authorized by depositor.
//
// Fails with ErrNoDepositRecord if depositor has no entry, with
// ErrInsufficientUserBalance if amount exceeds the balance (withdrawing the
// exact balance is allowed and removes the entry), and with ErrUnderflow if
// a subtraction would wrap. If the transfer fails the vault is left exactly
// as it was.
func Withdraw(ctx context.Context, v *Vault, depositor string, amount uint64, acct Accounts, svc TransferService) error {
	current, exists := v.Balance(depositor)
	if !exists {
		return newError(CodeNoDepositRecord, "depositor has no deposit record", depositor, amount)
	}

	if amount > current {
		return newError(CodeInsufficientUserBalance, "amount exceeds depositor balance", depositor, amount)
	}

	// Unreachable after the check above.
	newBalance, ok := subChecked(current, amount)
	if !ok {
		return newError(CodeUnderflow, "depositor balance would underflow", depositor, amount)
	}

	newTotal, ok := subChecked(v.total, amount)
	if !ok {
		return newError(CodeUnderflow, "vault total would underflow", depositor, amount)
	}

	prevTotal := v.total
	v.setBalance(depositor, newBalance)
	v.total = newTotal

	err := requestTransfer(ctx, svc, TransferRequest{
		From:      acct.From,
		To:        acct.To,
		Authority: depositor,
		Amount:    amount,
		Direction: DirectionOut,
	})
	if err != nil {
		v.total = prevTotal
		v.setBalance(depositor, current)
		return err
	}
	return nil
}

func addChecked(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

func subChecked(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}
