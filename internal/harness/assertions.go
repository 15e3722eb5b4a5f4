package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vault/internal/store"
)

// AssertionContext carries what assertions read from.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store

	// DefaultVault is used by vault assertions that name no vault.
	DefaultVault string

	// Transfers is the number of requests the transfer service received.
	Transfers int
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, actual %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertTotal:
		return assertTotal(a, actx)
	case AssertBalances:
		return assertBalances(a, actx)
	case AssertAbsent:
		return assertAbsent(a, actx)
	case AssertTransferCount:
		return assertTransferCount(a, actx)
	case AssertHoldingBalance:
		return assertHoldingBalance(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func vaultOf(a Assertion, actx *AssertionContext) (string, error) {
	if a.Vault != "" {
		return a.Vault, nil
	}
	if actx.DefaultVault == "" {
		return "", errNoVault
	}
	return actx.DefaultVault, nil
}

func assertTotal(a Assertion, actx *AssertionContext) error {
	id, err := vaultOf(a, actx)
	if err != nil {
		return err
	}
	snap, err := actx.Store.ReadVault(actx.Ctx, id)
	if err != nil {
		return err
	}
	if snap.TotalBalance != a.Amount {
		return &AssertionError{
			Type:     AssertTotal,
			Expected: fmt.Sprintf("%d", a.Amount),
			Actual:   fmt.Sprintf("%d", snap.TotalBalance),
		}
	}
	return nil
}

// assertBalances requires an exact match: every listed depositor with the
// listed amount and no others.
func assertBalances(a Assertion, actx *AssertionContext) error {
	id, err := vaultOf(a, actx)
	if err != nil {
		return err
	}
	snap, err := actx.Store.ReadVault(actx.Ctx, id)
	if err != nil {
		return err
	}

	got := make(map[string]uint64, len(snap.Balances))
	for _, b := range snap.Balances {
		got[b.Depositor] = b.Amount
	}

	match := len(got) == len(a.Expect)
	for depositor, amount := range a.Expect {
		if have, ok := got[depositor]; !ok || have != amount {
			match = false
		}
	}
	if !match {
		return &AssertionError{
			Type:     AssertBalances,
			Expected: formatBalances(a.Expect),
			Actual:   formatBalances(got),
		}
	}
	return nil
}

func assertAbsent(a Assertion, actx *AssertionContext) error {
	id, err := vaultOf(a, actx)
	if err != nil {
		return err
	}
	snap, err := actx.Store.ReadVault(actx.Ctx, id)
	if err != nil {
		return err
	}
	for _, b := range snap.Balances {
		if b.Depositor == a.Depositor {
			return &AssertionError{
				Type:     AssertAbsent,
				Expected: fmt.Sprintf("no entry for %s", a.Depositor),
				Actual:   fmt.Sprintf("%s has %d", a.Depositor, b.Amount),
			}
		}
	}
	return nil
}

func assertTransferCount(a Assertion, actx *AssertionContext) error {
	if actx.Transfers != a.Count {
		return &AssertionError{
			Type:     AssertTransferCount,
			Expected: fmt.Sprintf("%d transfer requests", a.Count),
			Actual:   fmt.Sprintf("%d", actx.Transfers),
		}
	}
	return nil
}

func assertHoldingBalance(a Assertion, actx *AssertionContext) error {
	h, err := actx.Store.ReadHolding(actx.Ctx, a.Holding)
	if err != nil {
		return err
	}
	if h.Balance != a.Amount {
		return &AssertionError{
			Type:     AssertHoldingBalance,
			Expected: fmt.Sprintf("%s = %d", a.Holding, a.Amount),
			Actual:   fmt.Sprintf("%s = %d", a.Holding, h.Balance),
		}
	}
	return nil
}

// formatBalances renders balances sorted by depositor for stable messages.
func formatBalances(m map[string]uint64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
