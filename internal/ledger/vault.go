package ledger

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/roach88/vault/internal/ir"
)

// DefaultCapacity is the number of depositor entries a vault holds unless
// configured otherwise. It matches the fixed record size the ledger was
// first deployed with: 8 + 32 + 8 + (32 + 8) * 100 bytes.
const DefaultCapacity = 100

// Vault is the ledger record for one pool instance.
type Vault struct {
	manager  string
	holding  string
	capacity int // 0 means unbounded
	total    uint64

	// balances maps depositor (string) to amount (uint64). A red-black tree
	// keyed with the string comparator so enumeration is byte-wise sorted
	// regardless of insertion order.
	balances *treemap.Map
}

// Option configures a Vault at Initialize.
type Option func(*Vault)

// WithCapacity bounds the number of depositor entries. Zero means unbounded.
//
// Default: DefaultCapacity.
func WithCapacity(n int) Option {
	return func(v *Vault) {
		v.capacity = n
	}
}

// WithHolding records the vault's own holding, the destination of deposits
// and the source of withdrawals.
func WithHolding(id string) Option {
	return func(v *Vault) {
		v.holding = id
	}
}

// Initialize creates an empty vault managed by manager.
func Initialize(manager string, opts ...Option) *Vault {
	v := &Vault{
		manager:  manager,
		capacity: DefaultCapacity,
		balances: treemap.NewWithStringComparator(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Restore rebuilds a vault from a persisted snapshot and verifies the
// ledger invariants hold for it.
func Restore(snap ir.VaultSnapshot) (*Vault, error) {
	v := &Vault{
		manager:  snap.Manager,
		holding:  snap.Holding,
		capacity: snap.Capacity,
		total:    snap.TotalBalance,
		balances: treemap.NewWithStringComparator(),
	}
	for _, b := range snap.Balances {
		if _, dup := v.balances.Get(b.Depositor); dup {
			return nil, fmt.Errorf("restore vault %s: duplicate depositor %q", snap.ID, b.Depositor)
		}
		v.balances.Put(b.Depositor, b.Amount)
	}
	if err := v.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("restore vault %s: %w", snap.ID, err)
	}
	return v, nil
}

// Manager returns the identity recorded at creation.
func (v *Vault) Manager() string { return v.manager }

// Holding returns the vault's own holding.
func (v *Vault) Holding() string { return v.holding }

// Capacity returns the maximum number of depositor entries (0 = unbounded).
func (v *Vault) Capacity() int { return v.capacity }

// TotalBalance returns the aggregate of all depositor balances.
func (v *Vault) TotalBalance() uint64 { return v.total }

// Len returns the number of depositors with a recorded balance.
func (v *Vault) Len() int { return v.balances.Size() }

// Balance returns the recorded balance of depositor.
func (v *Vault) Balance(depositor string) (uint64, bool) {
	val, ok := v.balances.Get(depositor)
	if !ok {
		return 0, false
	}
	return val.(uint64), true
}

// Balances returns every entry ordered by depositor.
func (v *Vault) Balances() []ir.BalanceEntry {
	entries := make([]ir.BalanceEntry, 0, v.balances.Size())
	it := v.balances.Iterator()
	for it.Next() {
		entries = append(entries, ir.BalanceEntry{
			Depositor: it.Key().(string),
			Amount:    it.Value().(uint64),
		})
	}
	return entries
}

// Snapshot returns the persisted form of the vault under the given id.
func (v *Vault) Snapshot(id string) ir.VaultSnapshot {
	return ir.VaultSnapshot{
		ID:           id,
		Manager:      v.manager,
		Holding:      v.holding,
		Capacity:     v.capacity,
		TotalBalance: v.total,
		Balances:     v.Balances(),
	}
}

// CheckInvariants verifies the sum and positivity invariants.
func (v *Vault) CheckInvariants() error {
	var sum uint64
	it := v.balances.Iterator()
	for it.Next() {
		amt := it.Value().(uint64)
		if amt == 0 {
			return fmt.Errorf("depositor %q has a zero balance entry", it.Key())
		}
		next, ok := addChecked(sum, amt)
		if !ok {
			return fmt.Errorf("balances overflow uint64")
		}
		sum = next
	}
	if sum != v.total {
		return fmt.Errorf("total balance %d does not match sum of balances %d", v.total, sum)
	}
	if v.capacity > 0 && v.balances.Size() > v.capacity {
		return fmt.Errorf("%d depositors exceed capacity %d", v.balances.Size(), v.capacity)
	}
	return nil
}

// setBalance stores amount for depositor, removing the entry at zero.
func (v *Vault) setBalance(depositor string, amount uint64) {
	if amount == 0 {
		v.balances.Remove(depositor)
		return
	}
	v.balances.Put(depositor, amount)
}
