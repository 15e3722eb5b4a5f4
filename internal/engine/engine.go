package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/vault/internal/ir"
	"github.com/roach88/vault/internal/ledger"
	"github.com/roach88/vault/internal/store"
	"github.com/roach88/vault/internal/transfer"
)

// TransferFactory builds the transfer service for one step from the
// holdings visible inside that step's transaction.
type TransferFactory func(h transfer.Holdings) ledger.TransferService

// BookTransfer is the default TransferFactory.
func BookTransfer(h transfer.Holdings) ledger.TransferService {
	return transfer.NewBook(h)
}

// Engine executes ledger steps against a store.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Apply(): single caller only; do not mix with a running Run loop
type Engine struct {
	store    *store.Store
	clock    Sequencer
	ids      VaultIDGenerator
	capacity int
	transfer TransferFactory
	log      *slog.Logger
	queue    *jobQueue
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithClock sets the sequencer used to stamp steps.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the generator for new vault ids.
func WithIDGenerator(g VaultIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithCapacity sets the capacity given to new vaults when the request does
// not name one. Zero means unbounded.
//
// Default: ledger.DefaultCapacity
func WithCapacity(n int) Option {
	return func(e *Engine) {
		e.capacity = n
	}
}

// WithTransfer replaces the transfer service factory.
func WithTransfer(f TransferFactory) Option {
	return func(e *Engine) {
		e.transfer = f
	}
}

// WithLogger sets the logger for step events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// New creates an Engine over s. Without WithClock the clock starts at 0;
// use Resume to continue an existing step log.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		capacity: ledger.DefaultCapacity,
		transfer: BookTransfer,
		log:      slog.Default(),
		queue:    newJobQueue(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Resume creates an Engine whose clock continues after the last seq in the
// step log. A WithClock option overrides the resumed clock.
func Resume(ctx context.Context, s *store.Store, opts ...Option) (*Engine, error) {
	clock, err := ResumeClock(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("resume engine: %w", err)
	}
	return New(s, append([]Option{WithClock(clock)}, opts...)...), nil
}

// Request asks the engine to execute one ledger operation.
type Request struct {
	Operation ir.Operation

	// VaultID names the vault for deposit and withdraw. Ignored by
	// initialize, which generates a new id.
	VaultID string

	// Actor is the signer: the creator for initialize, the depositor
	// otherwise.
	Actor string

	Amount uint64

	// From and To name the holdings value moves between. The vault side
	// (To for deposit, From for withdraw) is always the vault holding; it
	// may be left empty or must name that holding exactly.
	From string
	To   string

	// VaultHolding is the holding a new vault receives deposits into.
	// Initialize only.
	VaultHolding string

	// Capacity overrides the engine default for a new vault.
	// Initialize only.
	Capacity *int
}

func (r Request) validate() error {
	if !ir.ValidOperations[r.Operation] {
		return newInvalidRequestError("unknown operation %q", r.Operation)
	}
	if r.Actor == "" {
		return newInvalidRequestError("actor is required")
	}

	switch r.Operation {
	case ir.OpInitialize:
		if r.Amount != 0 {
			return newInvalidRequestError("initialize takes no amount")
		}
		if r.Capacity != nil && *r.Capacity < 0 {
			return newInvalidRequestError("capacity must be >= 0, got %d", *r.Capacity)
		}
	default:
		if r.VaultID == "" {
			return newInvalidRequestError("%s requires a vault id", r.Operation)
		}
	}
	return nil
}

// Outcome is the result of one applied step.
type Outcome struct {
	// Step is the recorded step. OutputCase tells whether it committed.
	Step ir.Step

	// Vault is the vault state after the step. Zero for a rejected
	// initialize.
	Vault ir.VaultSnapshot
}

// Apply executes one request as an atomic step.
//
// On success the vault, balances, holdings and step record are committed
// together. On failure everything is rolled back, a rejected step record is
// appended, and the error is returned along with an Outcome describing the
// rejected step. Ledger rule violations are *ledger.Error; engine rule
// violations are *RuntimeError.
//
// Malformed requests are refused before a seq is assigned and leave no step
// record.
func (e *Engine) Apply(ctx context.Context, req Request) (Outcome, error) {
	if err := req.validate(); err != nil {
		return Outcome{}, err
	}

	step := ir.Step{
		VaultID:   req.VaultID,
		Seq:       e.clock.Next(),
		Operation: req.Operation,
		Actor:     req.Actor,
		Amount:    req.Amount,
		Source:    req.From,
	}
	if req.Operation == ir.OpInitialize {
		step.VaultID = e.ids.Generate()
		step.Source = ""
		step.Destination = req.VaultHolding
	} else {
		step.Destination = req.To
	}

	snap, err := e.execute(ctx, &step, req)
	if err != nil {
		return e.reject(ctx, step, err)
	}

	e.log.Info("step committed",
		"vault", step.VaultID,
		"seq", step.Seq,
		"op", step.Operation,
		"actor", step.Actor,
		"amount", step.Amount,
		"case", step.OutputCase,
	)

	return Outcome{Step: step, Vault: snap}, nil
}

// execute runs the step inside one store transaction. step is completed in
// place (resolved holdings, id, output case) so a rejection records the
// same request.
func (e *Engine) execute(ctx context.Context, step *ir.Step, req Request) (ir.VaultSnapshot, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return ir.VaultSnapshot{}, err
	}
	defer tx.Rollback() // No-op if committed

	var v *ledger.Vault
	if step.Operation == ir.OpInitialize {
		capacity := e.capacity
		if req.Capacity != nil {
			capacity = *req.Capacity
		}
		v = ledger.Initialize(step.Actor,
			ledger.WithCapacity(capacity),
			ledger.WithHolding(step.Destination),
		)
	} else {
		stored, _, err := tx.LoadVault(step.VaultID)
		if errors.Is(err, store.ErrNotFound) {
			return ir.VaultSnapshot{}, NewVaultNotFoundError(step.VaultID)
		}
		if err != nil {
			return ir.VaultSnapshot{}, err
		}

		v, err = ledger.Restore(stored)
		if err != nil {
			return ir.VaultSnapshot{}, fmt.Errorf("restore vault %s: %w", step.VaultID, err)
		}

		if err := pinVaultHolding(step, v.Holding()); err != nil {
			return ir.VaultSnapshot{}, err
		}

		svc := e.transfer(txHoldings{tx})
		acct := ledger.Accounts{From: step.Source, To: step.Destination}

		switch step.Operation {
		case ir.OpDeposit:
			err = ledger.Deposit(ctx, v, step.Actor, step.Amount, acct, svc)
		case ir.OpWithdraw:
			err = ledger.Withdraw(ctx, v, step.Actor, step.Amount, acct, svc)
		}
		if err != nil {
			return ir.VaultSnapshot{}, err
		}
	}

	if err := v.CheckInvariants(); err != nil {
		return ir.VaultSnapshot{}, fmt.Errorf("vault %s after %s: %w", step.VaultID, step.Operation, err)
	}

	step.OutputCase = ir.CaseSuccess
	step.ID, err = ir.StepID(*step)
	if err != nil {
		return ir.VaultSnapshot{}, err
	}

	snap := v.Snapshot(step.VaultID)
	if err := tx.SaveVault(snap, step.Seq); err != nil {
		return ir.VaultSnapshot{}, err
	}
	if err := tx.AppendStep(*step); err != nil {
		return ir.VaultSnapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return ir.VaultSnapshot{}, err
	}

	return snap, nil
}

// pinVaultHolding fills the vault side of a transfer with the vault's own
// holding: deposits pay into it, withdrawals pay out of it. A request naming
// any other holding on that side is refused.
func pinVaultHolding(step *ir.Step, holding string) error {
	side := &step.Destination
	if step.Operation == ir.OpWithdraw {
		side = &step.Source
	}
	if *side == "" {
		*side = holding
		return nil
	}
	if *side != holding {
		return &RuntimeError{
			Code:    ErrCodeInvalidRequest,
			Message: fmt.Sprintf("%s must use vault holding %q, got %q", step.Operation, holding, *side),
			VaultID: step.VaultID,
		}
	}
	return nil
}

// reject records a failed step after its transaction rolled back.
func (e *Engine) reject(ctx context.Context, step ir.Step, cause error) (Outcome, error) {
	step.OutputCase = ir.CaseRejected
	step.ErrorCode = ErrorCode(cause)

	id, err := ir.StepID(step)
	if err != nil {
		return Outcome{Step: step}, errors.Join(cause, err)
	}
	step.ID = id

	e.log.Info("step rejected",
		"vault", step.VaultID,
		"seq", step.Seq,
		"op", step.Operation,
		"actor", step.Actor,
		"amount", step.Amount,
		"case", step.OutputCase,
		"error", cause,
	)

	if err := e.store.AppendStep(ctx, step); err != nil {
		e.log.Error("failed to record rejected step",
			"vault", step.VaultID,
			"seq", step.Seq,
			"error", err,
		)
		return Outcome{Step: step}, errors.Join(cause, err)
	}

	var out Outcome
	out.Step = step
	if step.Operation != ir.OpInitialize {
		if snap, err := e.store.ReadVault(ctx, step.VaultID); err == nil {
			out.Vault = snap
		}
	}
	return out, cause
}

// Submit enqueues req for the Run loop and waits for its outcome.
// Thread-safe: may be called from any goroutine.
func (e *Engine) Submit(ctx context.Context, req Request) (Outcome, error) {
	j := &job{ctx: ctx, req: req, done: make(chan result, 1)}
	if !e.queue.Enqueue(j) {
		return Outcome{}, &RuntimeError{Code: ErrCodeQueueClosed, Message: "engine stopped"}
	}

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case r := <-j.done:
		return r.outcome, r.err
	}
}

// Run starts the single-writer step loop.
// Blocks until ctx is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// A rejected step is returned to its submitter and processing continues;
// steps are never retried.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine starting", "seq", e.clock.Current())

	for {
		if j, ok := e.queue.TryDequeue(); ok {
			e.process(j)
			continue
		}

		select {
		case <-ctx.Done():
			e.log.Info("engine stopping: context cancelled")
			e.Stop()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, which makes
			// this case fire immediately.
			if e.queue.Len() == 0 && e.queue.Closed() {
				e.log.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

func (e *Engine) process(j *job) {
	if err := j.ctx.Err(); err != nil {
		// The submitter gave up; do not execute a step nobody waits for.
		j.done <- result{err: err}
		return
	}
	out, err := e.Apply(j.ctx, j.req)
	j.done <- result{outcome: out, err: err}
}

// Stop gracefully shuts down the engine. Requests still queued fail with
// QUEUE_CLOSED and Run returns.
func (e *Engine) Stop() {
	for _, j := range e.queue.Close() {
		j.done <- result{err: &RuntimeError{Code: ErrCodeQueueClosed, Message: "engine stopped"}}
	}
}

// QueueLen returns the number of requests waiting for the Run loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Clock returns the engine's sequencer.
func (e *Engine) Clock() Sequencer {
	return e.clock
}

// Store returns the engine's store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// txHoldings adapts a store transaction to transfer.Holdings.
type txHoldings struct {
	tx *store.Tx
}

func (h txHoldings) Holding(ctx context.Context, id string) (ir.Holding, error) {
	got, err := h.tx.Holding(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ir.Holding{}, fmt.Errorf("holding %s: %w", id, transfer.ErrUnknownHolding)
	}
	return got, err
}

func (h txHoldings) PutHolding(ctx context.Context, holding ir.Holding) error {
	return h.tx.PutHolding(ctx, holding)
}
