package ir

import (
	"fmt"
	"strconv"
)

// Operation names one of the three ledger transitions.
type Operation string

const (
	OpInitialize Operation = "initialize"
	OpDeposit    Operation = "deposit"
	OpWithdraw   Operation = "withdraw"
)

// ValidOperations defines the allowed operations.
var ValidOperations = map[Operation]bool{
	OpInitialize: true,
	OpDeposit:    true,
	OpWithdraw:   true,
}

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !ValidOperations[op] {
		return "", fmt.Errorf("unknown operation %q", s)
	}
	return op, nil
}

// Output cases recorded on a Step.
const (
	CaseSuccess  = "Success"
	CaseRejected = "Rejected"
)

// Step is one executed (or rejected) ledger transition in the step log.
type Step struct {
	ID          string    `json:"id"` // Content-addressed hash
	VaultID     string    `json:"vault_id"`
	Seq         int64     `json:"seq"` // Logical clock
	Operation   Operation `json:"operation"`
	Actor       string    `json:"actor"` // Signer: creator or depositor
	Amount      uint64    `json:"amount"`
	Source      string    `json:"source,omitempty"`      // Holding value leaves
	Destination string    `json:"destination,omitempty"` // Holding value arrives
	OutputCase  string    `json:"output_case"`           // CaseSuccess or CaseRejected
	ErrorCode   string    `json:"error_code,omitempty"`  // Ledger/engine error code when rejected
}

// Committed reports whether the step mutated the vault.
func (s Step) Committed() bool {
	return s.OutputCase == CaseSuccess
}

// BalanceEntry is one depositor balance in a snapshot.
type BalanceEntry struct {
	Depositor string `json:"depositor"`
	Amount    uint64 `json:"amount"`
}

// VaultSnapshot is the persisted form of a vault.
// Balances MUST be sorted by depositor and contain no zero amounts.
type VaultSnapshot struct {
	ID           string         `json:"id"`
	Manager      string         `json:"manager"`
	Holding      string         `json:"holding"` // The vault's own holding
	Capacity     int            `json:"capacity"`
	TotalBalance uint64         `json:"total_balance"`
	Balances     []BalanceEntry `json:"balances"`
}

// Holding is an external account where value is actually stored.
type Holding struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

// FormatAmount renders an amount as the decimal string used in canonical records.
func FormatAmount(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// ParseAmount parses a decimal amount string.
func ParseAmount(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return n, nil
}
