package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/roach88/vault/internal/engine"
	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/ledger"
	"github.com/roach88/vault/internal/store"
	"github.com/roach88/vault/internal/testutil"
	"github.com/roach88/vault/internal/transfer"
)

// Harness is the scenario execution environment.
// It runs scenarios with a deterministic clock and vault ids.
type Harness struct {
	store     *store.Store
	engine    *engine.Engine
	transfers *testutil.RecordingTransfer
	logger    *slog.Logger

	// lastVault is the most recently initialized vault.
	lastVault string
	vaults    []string

	// value is the sum of all holding balances, which no step may change.
	value decimal.Decimal

	// opening is the balance each vault holding had when the first vault
	// using it was initialized.
	opening map[string]decimal.Decimal
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and seed holdings
// 2. Execute steps through the engine, checking each step's outcome
// 3. Check ledger invariants and value conservation after every step
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	holdings := make([]ir.Holding, len(scenario.Holdings))
	for i, h := range scenario.Holdings {
		holdings[i] = ir.Holding{ID: h.ID, Owner: h.Owner, Balance: h.Balance}
	}
	if err := st.PutHoldings(ctx, holdings); err != nil {
		return nil, fmt.Errorf("failed to seed holdings: %w", err)
	}

	h := &Harness{
		store:     st,
		transfers: testutil.NewRecordingTransfer(nil),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		value:     holdingsValue(holdings),
		opening:   make(map[string]decimal.Decimal),
	}

	opts := []engine.Option{
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithIDGenerator(testutil.NewSequentialIDGenerator("vault")),
		engine.WithLogger(h.logger),
		engine.WithTransfer(func(hs transfer.Holdings) ledger.TransferService {
			h.transfers.Inner = transfer.NewBook(hs)
			return h.transfers
		}),
	}
	if scenario.Capacity != nil {
		opts = append(opts, engine.WithCapacity(*scenario.Capacity))
	}
	h.engine = engine.New(st, opts...)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, id := range h.vaults {
		snap, err := st.ReadVault(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read final vault %s: %w", id, err)
		}
		result.Vaults[id] = snap
	}

	actx := &AssertionContext{
		Ctx:          ctx,
		Store:        st,
		DefaultVault: h.lastVault,
		Transfers:    h.transfers.Count(),
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep applies one scenario step and records it in the trace.
// Only infrastructure failures are returned; step outcomes that differ
// from the scenario are recorded as result errors.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	req := engine.Request{
		Operation:    ir.Operation(step.Op),
		VaultID:      step.Vault,
		Actor:        step.Actor,
		Amount:       step.Amount,
		From:         step.From,
		To:           step.To,
		VaultHolding: step.Holding,
		Capacity:     step.Capacity,
	}
	if req.Operation != ir.OpInitialize && req.VaultID == "" {
		req.VaultID = h.lastVault
	}

	if step.FailTransfer {
		h.transfers.FailNext()
	}

	out, err := h.engine.Apply(ctx, req)

	gotCode := ""
	if err != nil {
		gotCode = engine.ErrorCode(err)
		if gotCode == string(engine.ErrCodeInternal) {
			return err
		}
	}
	if gotCode != step.Expect {
		result.AddError(fmt.Sprintf("step %d (%s by %s, amount %d): expected %s, got %s",
			i, step.Op, step.Actor, step.Amount, describeCode(step.Expect), describeCode(gotCode)))
	}

	if req.Operation == ir.OpInitialize && err == nil {
		h.lastVault = out.Step.VaultID
		h.vaults = append(h.vaults, out.Step.VaultID)
		if _, ok := h.opening[out.Vault.Holding]; !ok {
			bal, err := h.holdingValue(ctx, out.Vault.Holding)
			if err != nil {
				return err
			}
			h.opening[out.Vault.Holding] = bal
		}
	}

	result.Trace = append(result.Trace, TraceEvent{
		Seq:       out.Step.Seq,
		StepID:    out.Step.ID,
		Vault:     out.Step.VaultID,
		Operation: step.Op,
		Actor:     step.Actor,
		Amount:    step.Amount,
		Case:      caseOf(out.Step, err),
		ErrorCode: gotCode,
		Total:     out.Vault.TotalBalance,
	})

	h.logger.Info("scenario step",
		"step", i,
		"op", step.Op,
		"actor", step.Actor,
		"case", caseOf(out.Step, err),
	)

	return h.checkInvariants(ctx, i, result)
}

// checkInvariants verifies every vault against the ledger invariants, that
// each vault holding holds its opening balance plus the totals of the vaults
// using it, and that the total value held across all holdings is unchanged.
func (h *Harness) checkInvariants(ctx context.Context, i int, result *Result) error {
	owed := make(map[string]decimal.Decimal)
	for _, id := range h.vaults {
		snap, err := h.store.ReadVault(ctx, id)
		if err != nil {
			return fmt.Errorf("read vault %s: %w", id, err)
		}
		if _, err := ledger.Restore(snap); err != nil {
			result.AddError(fmt.Sprintf("after step %d: vault %s violates invariants: %v", i, id, err))
		}
		sum, ok := owed[snap.Holding]
		if !ok {
			sum = h.opening[snap.Holding]
		}
		owed[snap.Holding] = sum.Add(amountValue(snap.TotalBalance))
	}

	for _, holding := range sortedKeys(owed) {
		got, err := h.holdingValue(ctx, holding)
		if err != nil {
			return err
		}
		if want := owed[holding]; !got.Equal(want) {
			result.AddError(fmt.Sprintf("after step %d: vault holding %s holds %s, want %s", i, holding, got, want))
		}
	}

	holdings, err := h.store.ListHoldings(ctx)
	if err != nil {
		return fmt.Errorf("list holdings: %w", err)
	}
	if got := holdingsValue(holdings); !got.Equal(h.value) {
		result.AddError(fmt.Sprintf("after step %d: holdings hold %s in total, want %s", i, got, h.value))
	}
	return nil
}

// holdingValue returns a holding's balance; a missing holding holds nothing.
func (h *Harness) holdingValue(ctx context.Context, id string) (decimal.Decimal, error) {
	holding, err := h.store.ReadHolding(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read holding %s: %w", id, err)
	}
	return amountValue(holding.Balance), nil
}

func amountValue(amount uint64) decimal.Decimal {
	return decimal.RequireFromString(ir.FormatAmount(amount))
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// holdingsValue sums balances exactly; the total may exceed uint64.
func holdingsValue(holdings []ir.Holding) decimal.Decimal {
	sum := decimal.Zero
	for _, h := range holdings {
		sum = sum.Add(amountValue(h.Balance))
	}
	return sum
}

func caseOf(step ir.Step, err error) string {
	if step.OutputCase != "" {
		return step.OutputCase
	}
	if err != nil {
		return ir.CaseRejected
	}
	return ir.CaseSuccess
}

func describeCode(code string) string {
	if code == "" {
		return "success"
	}
	return code
}

// errNoVault is reported when an assertion needs a vault and none exists.
var errNoVault = errors.New("no vault has been initialized")
