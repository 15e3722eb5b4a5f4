package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/ledger"
	"github.com/roach88/vault/internal/store"
	"github.com/roach88/vault/internal/testutil"
	"github.com/roach88/vault/internal/transfer"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.PutHoldings(context.Background(), []ir.Holding{
		{ID: "vault-wallet", Owner: "manager"},
		{ID: "alice-wallet", Owner: "alice", Balance: 1000},
		{ID: "bob-wallet", Owner: "bob", Balance: 1000},
		{ID: "carol-wallet", Owner: "carol", Balance: 1000},
	}))
	return s
}

func setupTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s := setupTestStore(t)
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDGenerator("vault")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(s, append(base, opts...)...), s
}

func initVault(t *testing.T, e *Engine) string {
	t.Helper()
	out, err := e.Apply(context.Background(), Request{
		Operation:    ir.OpInitialize,
		Actor:        "manager",
		VaultHolding: "vault-wallet",
	})
	require.NoError(t, err)
	return out.Step.VaultID
}

func deposit(vaultID, actor string, amount uint64) Request {
	return Request{Operation: ir.OpDeposit, VaultID: vaultID, Actor: actor, Amount: amount, From: actor + "-wallet"}
}

func withdraw(vaultID, actor string, amount uint64) Request {
	return Request{Operation: ir.OpWithdraw, VaultID: vaultID, Actor: actor, Amount: amount, To: actor + "-wallet"}
}

func holdingBalance(t *testing.T, s *store.Store, id string) uint64 {
	t.Helper()
	h, err := s.ReadHolding(context.Background(), id)
	require.NoError(t, err)
	return h.Balance
}

func TestEngine_Initialize(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	out, err := e.Apply(ctx, Request{Operation: ir.OpInitialize, Actor: "manager", VaultHolding: "vault-wallet"})
	require.NoError(t, err)

	assert.Equal(t, "vault-1", out.Step.VaultID)
	assert.Equal(t, int64(1), out.Step.Seq)
	assert.Equal(t, ir.CaseSuccess, out.Step.OutputCase)
	assert.Equal(t, "vault-wallet", out.Step.Destination)
	assert.Equal(t, ir.MustStepID(out.Step), out.Step.ID)

	assert.Equal(t, "manager", out.Vault.Manager)
	assert.Equal(t, ledger.DefaultCapacity, out.Vault.Capacity)
	assert.Equal(t, uint64(0), out.Vault.TotalBalance)
	assert.Empty(t, out.Vault.Balances)

	stored, err := s.ReadVault(ctx, "vault-1")
	require.NoError(t, err)
	assert.Equal(t, out.Vault, stored)
}

func TestEngine_DepositAndWithdraw(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()
	id := initVault(t, e)

	out, err := e.Apply(ctx, deposit(id, "alice", 100))
	require.NoError(t, err)
	assert.Equal(t, "alice-wallet", out.Step.Source)
	assert.Equal(t, "vault-wallet", out.Step.Destination, "deposit defaults to the vault holding")
	assert.Equal(t, uint64(100), out.Vault.TotalBalance)
	assert.Equal(t, uint64(900), holdingBalance(t, s, "alice-wallet"))
	assert.Equal(t, uint64(100), holdingBalance(t, s, "vault-wallet"))

	out, err = e.Apply(ctx, withdraw(id, "alice", 40))
	require.NoError(t, err)
	assert.Equal(t, "vault-wallet", out.Step.Source, "withdraw defaults to the vault holding")
	assert.Equal(t, []ir.BalanceEntry{{Depositor: "alice", Amount: 60}}, out.Vault.Balances)

	out, err = e.Apply(ctx, withdraw(id, "alice", 60))
	require.NoError(t, err)
	assert.Empty(t, out.Vault.Balances, "exact withdrawal removes the entry")
	assert.Equal(t, uint64(0), out.Vault.TotalBalance)
	assert.Equal(t, uint64(1000), holdingBalance(t, s, "alice-wallet"))
	assert.Equal(t, uint64(0), holdingBalance(t, s, "vault-wallet"))

	steps, err := s.ReadSteps(ctx, id)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	for i, step := range steps {
		assert.Equal(t, int64(i+1), step.Seq)
		assert.True(t, step.Committed())
	}
}

func TestEngine_RejectedStepLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name     string
		req      func(id string) Request
		wantErr  error
		wantCode string
	}{
		{
			name:     "withdraw without deposit",
			req:      func(id string) Request { return withdraw(id, "bob", 1) },
			wantErr:  ledger.ErrNoDepositRecord,
			wantCode: "NO_DEPOSIT_RECORD",
		},
		{
			name:     "withdraw more than balance",
			req:      func(id string) Request { return withdraw(id, "alice", 51) },
			wantErr:  ledger.ErrInsufficientUserBalance,
			wantCode: "INSUFFICIENT_USER_BALANCE",
		},
		{
			name:     "deposit beyond wallet funds",
			req:      func(id string) Request { return deposit(id, "bob", 1001) },
			wantErr:  transfer.ErrInsufficientFunds,
			wantCode: "TRANSFER_FAILED",
		},
		{
			name: "deposit from someone else's wallet",
			req: func(id string) Request {
				r := deposit(id, "bob", 10)
				r.From = "alice-wallet"
				return r
			},
			wantErr:  transfer.ErrUnauthorized,
			wantCode: "TRANSFER_FAILED",
		},
		{
			name: "withdraw into unknown holding",
			req: func(id string) Request {
				r := withdraw(id, "alice", 10)
				r.To = "nowhere"
				return r
			},
			wantErr:  transfer.ErrUnknownHolding,
			wantCode: "TRANSFER_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s := setupTestEngine(t)
			ctx := context.Background()
			id := initVault(t, e)
			_, err := e.Apply(ctx, deposit(id, "alice", 50))
			require.NoError(t, err)

			before, err := s.ReadVault(ctx, id)
			require.NoError(t, err)
			holdingsBefore, err := s.ListHoldings(ctx)
			require.NoError(t, err)

			out, err := e.Apply(ctx, tt.req(id))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, ir.CaseRejected, out.Step.OutputCase)
			assert.Equal(t, tt.wantCode, out.Step.ErrorCode)
			assert.Equal(t, before, out.Vault, "outcome carries the unchanged vault")

			after, err := s.ReadVault(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			holdingsAfter, err := s.ListHoldings(ctx)
			require.NoError(t, err)
			assert.Equal(t, holdingsBefore, holdingsAfter)

			steps, err := s.ReadSteps(ctx, id)
			require.NoError(t, err)
			require.Len(t, steps, 3)
			assert.Equal(t, out.Step, steps[2], "rejected step is recorded for audit")
		})
	}
}

func TestEngine_VaultSideIsVaultHolding(t *testing.T) {
	tests := []struct {
		name string
		req  func(id string) Request
	}{
		{
			name: "withdraw paid from another wallet",
			req: func(id string) Request {
				r := withdraw(id, "alice", 50)
				r.From = "bob-wallet"
				return r
			},
		},
		{
			name: "deposit paid into another wallet",
			req: func(id string) Request {
				r := deposit(id, "alice", 10)
				r.To = "carol-wallet"
				return r
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s := setupTestEngine(t)
			ctx := context.Background()
			id := initVault(t, e)
			_, err := e.Apply(ctx, deposit(id, "alice", 50))
			require.NoError(t, err)

			before, err := s.ReadVault(ctx, id)
			require.NoError(t, err)
			holdingsBefore, err := s.ListHoldings(ctx)
			require.NoError(t, err)

			out, err := e.Apply(ctx, tt.req(id))
			require.Error(t, err)
			assert.True(t, IsInvalidRequest(err))
			assert.Equal(t, ir.CaseRejected, out.Step.OutputCase)
			assert.Equal(t, "INVALID_REQUEST", out.Step.ErrorCode)

			after, err := s.ReadVault(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, before, after)

			holdingsAfter, err := s.ListHoldings(ctx)
			require.NoError(t, err)
			assert.Equal(t, holdingsBefore, holdingsAfter)
			assert.Equal(t, after.TotalBalance, holdingBalance(t, s, "vault-wallet"))
		})
	}
}

func TestEngine_VaultSideMayBeNamed(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()
	id := initVault(t, e)

	req := deposit(id, "alice", 30)
	req.To = "vault-wallet"
	_, err := e.Apply(ctx, req)
	require.NoError(t, err)

	req = withdraw(id, "alice", 10)
	req.From = "vault-wallet"
	out, err := e.Apply(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, uint64(20), out.Vault.TotalBalance)
	assert.Equal(t, uint64(20), holdingBalance(t, s, "vault-wallet"))
}

func TestEngine_VaultNotFound(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx := context.Background()

	out, err := e.Apply(ctx, deposit("missing", "alice", 5))
	require.Error(t, err)
	assert.True(t, IsVaultNotFound(err))
	assert.Equal(t, "VAULT_NOT_FOUND", out.Step.ErrorCode)
	assert.Equal(t, uint64(1000), holdingBalance(t, s, "alice-wallet"))
}

func TestEngine_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown operation", Request{Operation: "borrow", Actor: "alice"}},
		{"missing actor", Request{Operation: ir.OpInitialize}},
		{"deposit without vault", Request{Operation: ir.OpDeposit, Actor: "alice", Amount: 1}},
		{"initialize with amount", Request{Operation: ir.OpInitialize, Actor: "m", Amount: 1}},
		{"negative capacity", Request{Operation: ir.OpInitialize, Actor: "m", Capacity: intPtr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s := setupTestEngine(t)

			_, err := e.Apply(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsInvalidRequest(err))
			assert.Equal(t, int64(0), e.Clock().Current(), "no seq consumed")

			steps, err := s.ReadAllSteps(context.Background())
			require.NoError(t, err)
			assert.Empty(t, steps)
		})
	}
}

func intPtr(n int) *int { return &n }

func TestEngine_Capacity(t *testing.T) {
	e, _ := setupTestEngine(t, WithCapacity(1))
	ctx := context.Background()
	id := initVault(t, e)

	_, err := e.Apply(ctx, deposit(id, "alice", 10))
	require.NoError(t, err)

	_, err = e.Apply(ctx, deposit(id, "bob", 10))
	assert.ErrorIs(t, err, ledger.ErrLedgerFull)

	_, err = e.Apply(ctx, deposit(id, "alice", 5))
	assert.NoError(t, err, "existing depositors can always top up")

	// A per-request capacity overrides the engine default.
	out, err := e.Apply(ctx, Request{Operation: ir.OpInitialize, Actor: "manager", VaultHolding: "vault-wallet", Capacity: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Vault.Capacity)
	for _, who := range []string{"alice", "bob", "carol"} {
		_, err := e.Apply(ctx, deposit(out.Step.VaultID, who, 1))
		require.NoError(t, err, "unbounded vault accepts %s", who)
	}
}

func TestEngine_ExactlyOneTransferPerCommittedStep(t *testing.T) {
	var rec *testutil.RecordingTransfer
	e, _ := setupTestEngine(t, WithTransfer(func(h transfer.Holdings) ledger.TransferService {
		rec.Inner = transfer.NewBook(h)
		return rec
	}))
	rec = testutil.NewRecordingTransfer(nil)
	ctx := context.Background()
	id := initVault(t, e)

	_, err := e.Apply(ctx, deposit(id, "alice", 10))
	require.NoError(t, err)
	_, err = e.Apply(ctx, withdraw(id, "alice", 4))
	require.NoError(t, err)
	_, err = e.Apply(ctx, withdraw(id, "bob", 4))
	require.Error(t, err)

	calls := rec.Calls()
	require.Len(t, calls, 2, "ledger rejections never reach the transfer service")
	assert.Equal(t, ledger.TransferRequest{
		From: "alice-wallet", To: "vault-wallet", Authority: "alice", Amount: 10, Direction: ledger.DirectionIn,
	}, calls[0])
	assert.Equal(t, ledger.TransferRequest{
		From: "vault-wallet", To: "alice-wallet", Authority: "alice", Amount: 4, Direction: ledger.DirectionOut,
	}, calls[1])
}

func TestEngine_InjectedTransferFailure(t *testing.T) {
	rec := testutil.NewRecordingTransfer(nil)
	e, s := setupTestEngine(t, WithTransfer(func(transfer.Holdings) ledger.TransferService { return rec }))
	ctx := context.Background()
	id := initVault(t, e)

	rec.FailNext()
	_, err := e.Apply(ctx, deposit(id, "alice", 10))
	assert.ErrorIs(t, err, ledger.ErrTransferFailed)
	assert.ErrorIs(t, err, testutil.ErrInjectedTransfer)

	snap, err := s.ReadVault(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.TotalBalance)
	assert.Empty(t, snap.Balances)
}

func TestEngine_Resume(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	first := New(s, WithLogger(logger))
	out, err := first.Apply(ctx, Request{Operation: ir.OpInitialize, Actor: "manager", VaultHolding: "vault-wallet"})
	require.NoError(t, err)
	_, err = first.Apply(ctx, deposit(out.Step.VaultID, "alice", 1))
	require.NoError(t, err)

	second, err := Resume(ctx, s, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Clock().Current())

	next, err := second.Apply(ctx, deposit(out.Step.VaultID, "alice", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.Step.Seq)

	third := New(s, WithLogger(logger), WithClock(testutil.NewDeterministicClockAt(3)))
	last, err := third.Apply(ctx, withdraw(out.Step.VaultID, "alice", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(4), last.Step.Seq)
	assert.Equal(t, uint64(0), last.Vault.TotalBalance)
}

func TestEngine_RunProcessesSubmissions(t *testing.T) {
	e, s := setupTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	out, err := e.Submit(ctx, Request{Operation: ir.OpInitialize, Actor: "manager", VaultHolding: "vault-wallet"})
	require.NoError(t, err)
	id := out.Step.VaultID

	const perDepositor = 20
	var wg sync.WaitGroup
	for _, who := range []string{"alice", "bob", "carol"} {
		wg.Add(1)
		go func(who string) {
			defer wg.Done()
			for i := 0; i < perDepositor; i++ {
				_, err := e.Submit(ctx, deposit(id, who, 1))
				assert.NoError(t, err, fmt.Sprintf("%s deposit %d", who, i))
			}
		}(who)
	}
	wg.Wait()

	snap, err := s.ReadVault(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3*perDepositor), snap.TotalBalance)

	steps, err := s.ReadSteps(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, steps, 1+3*perDepositor)
	for i, step := range steps {
		assert.Equal(t, int64(i+1), step.Seq, "steps are totally ordered")
	}

	e.Stop()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err = e.Submit(context.Background(), deposit(id, "alice", 1))
	assert.True(t, IsQueueClosed(err))
}

func TestEngine_RunStopsOnContextCancel(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
