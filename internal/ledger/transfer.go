package ledger

import "context"

// Direction is the way value moves relative to the vault.
type Direction string

const (
	// DirectionIn moves value from a depositor holding into the vault holding.
	DirectionIn Direction = "in"

	// DirectionOut moves value from the vault holding to a depositor holding.
	DirectionOut Direction = "out"
)

// Accounts names the two holdings a deposit or withdrawal moves value
// between. For Deposit, From is the depositor's holding and To the vault's;
// for Withdraw it is the reverse. The ledger does not validate them further.
type Accounts struct {
	From string
	To   string
}

// TransferRequest asks the transfer service to move Amount from one holding
// to another on behalf of Authority.
type TransferRequest struct {
	From      string
	To        string
	Authority string
	Amount    uint64
	Direction Direction
}

// DepositorHolding returns the holding on the depositor's side of the transfer.
func (r TransferRequest) DepositorHolding() string {
	if r.Direction == DirectionOut {
		return r.To
	}
	return r.From
}

// TransferService moves value between holdings. A non-nil error means no
// value moved and the calling step must be discarded.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) error
}

// TransferFunc adapts a function to TransferService.
type TransferFunc func(ctx context.Context, req TransferRequest) error

// Transfer calls f(ctx, req).
func (f TransferFunc) Transfer(ctx context.Context, req TransferRequest) error {
	return f(ctx, req)
}

// requestTransfer issues exactly one transfer and maps failure to
// CodeTransferFailed while keeping the cause reachable via errors.Is.
func requestTransfer(ctx context.Context, svc TransferService, req TransferRequest) error {
	if svc == nil {
		return &Error{
			Code:      CodeTransferFailed,
			Message:   "no transfer service",
			Depositor: req.Authority,
			Amount:    req.Amount,
		}
	}
	if err := svc.Transfer(ctx, req); err != nil {
		return &Error{
			Code:      CodeTransferFailed,
			Message:   "transfer failed",
			Depositor: req.Authority,
			Amount:    req.Amount,
			Err:       err,
		}
	}
	return nil
}
