package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/ledger"
)

var (
	// ErrUnknownHolding is returned when a transfer names a holding that
	// does not exist. Holdings implementations wrap it for missing ids.
	ErrUnknownHolding = errors.New("unknown holding")

	// ErrSameHolding is returned when source and destination are equal.
	ErrSameHolding = errors.New("source and destination are the same holding")

	// ErrUnauthorized is returned when the authority does not own the
	// depositor-side holding.
	ErrUnauthorized = errors.New("authority does not own holding")

	// ErrInsufficientFunds is returned when the source holding cannot
	// cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceOverflow is returned when the destination balance would
	// exceed the uint64 range.
	ErrBalanceOverflow = errors.New("destination balance would overflow")
)

// Holdings reads and writes holding records.
type Holdings interface {
	Holding(ctx context.Context, id string) (ir.Holding, error)
	PutHolding(ctx context.Context, h ir.Holding) error
}

// Book is a TransferService that moves value between holdings.
type Book struct {
	holdings Holdings
}

// NewBook returns a Book operating on holdings.
func NewBook(holdings Holdings) *Book {
	return &Book{holdings: holdings}
}

// Transfer moves req.Amount from req.From to req.To.
// All checks run before either holding is written.
func (b *Book) Transfer(ctx context.Context, req ledger.TransferRequest) error {
	if req.From == req.To {
		return fmt.Errorf("transfer %s: %w", req.From, ErrSameHolding)
	}

	from, err := b.holdings.Holding(ctx, req.From)
	if err != nil {
		return fmt.Errorf("transfer source: %w", err)
	}
	to, err := b.holdings.Holding(ctx, req.To)
	if err != nil {
		return fmt.Errorf("transfer destination: %w", err)
	}

	owned := from
	if req.Direction == ledger.DirectionOut {
		owned = to
	}
	if owned.Owner != req.Authority {
		return fmt.Errorf("%s on %s (owner %s): %w", req.Authority, owned.ID, owned.Owner, ErrUnauthorized)
	}

	if from.Balance < req.Amount {
		return fmt.Errorf("%s has %d, need %d: %w", from.ID, from.Balance, req.Amount, ErrInsufficientFunds)
	}
	newTo, carry := bits.Add64(to.Balance, req.Amount, 0)
	if carry != 0 {
		return fmt.Errorf("%s: %w", to.ID, ErrBalanceOverflow)
	}

	from.Balance -= req.Amount
	to.Balance = newTo

	if err := b.holdings.PutHolding(ctx, from); err != nil {
		return fmt.Errorf("debit %s: %w", from.ID, err)
	}
	if err := b.holdings.PutHolding(ctx, to); err != nil {
		return fmt.Errorf("credit %s: %w", to.ID, err)
	}
	return nil
}
