// Package executor orchestrates one buyback attempt end to end:
// breaker check → trigger → amount → safety guard → atomic pull/swap,
// then records the outcome and updates usage and breaker state.
package executor

import (
	"context"
	"errors"
	"log"
	"math/big"
	"os"
	"sync"
	"time"

	"buyback-engine/internal/amount"
	"buyback-engine/internal/breaker"
	"buyback-engine/internal/domain"
	"buyback-engine/internal/guard"
	"buyback-engine/internal/ledger"
	"buyback-engine/internal/market"
	"buyback-engine/internal/observability"
	"buyback-engine/internal/storage"
	"buyback-engine/internal/trigger"
)

// Action classifies the outcome of one attempt cycle.
type Action string

// Action constants
const (
	ActionExecuted Action = "EXECUTED"
	ActionFailed   Action = "FAILED"
	ActionSkipped  Action = "SKIPPED" // benign no-op, nothing recorded
)

// Result is what every ExecuteBuyback call returns: a definite outcome,
// never a partial state. Record is nil for skipped cycles.
type Result struct {
	Action     Action
	SkipReason string // TRIGGER_NOT_MET or NO_EXECUTABLE_AMOUNT
	Record     *domain.ExecutionRecord
}

// Options for creating an Engine.
type Options struct {
	Config domain.BuybackConfig

	// Collaborators
	Treasury market.Treasury
	Pool     market.Pool
	Router   market.Router
	Oracle   market.Oracle // optional; deviation guard is skipped without it

	// Audit trail
	Records storage.ExecutionRecordStore
	Archive storage.ExecutionRecordStore // optional analytics mirror, best effort

	// Options
	Events   EventSink // optional, defaults to LogSink
	Logger   *log.Logger
	Executor string // identity stamped on records
}

// Engine is the execution orchestrator. One engine instance owns its
// ledger and breaker state; a single execution lock serializes attempts
// while the read-only condition checks stay lock-free.
type Engine struct {
	cfg domain.BuybackConfig

	treasury market.Treasury
	router   market.Router
	records  storage.ExecutionRecordStore
	archive  storage.ExecutionRecordStore

	trigger *trigger.Evaluator
	calc    *amount.Calculator
	guard   *guard.Guard
	ledger  *ledger.UsageLedger
	breaker *breaker.CircuitBreaker

	events   EventSink
	logger   *log.Logger
	executor string

	execMu sync.Mutex
	nextID int64 // guarded by execMu
}

// New creates an Engine. The config is validated and cloned; nothing can
// mutate it afterwards. The execution id sequence resumes from the highest
// id already in the record store.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	cfg := opts.Config.Clone()

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[executor] ", log.LstdFlags)
	}
	events := opts.Events
	if events == nil {
		events = &LogSink{Logger: logger}
	}

	led := ledger.New(ledger.DefaultWindow)

	maxID, err := opts.Records.MaxExecutionID(ctx)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		treasury: opts.Treasury,
		router:   opts.Router,
		records:  opts.Records,
		archive:  opts.Archive,
		trigger:  trigger.New(cfg, led, opts.Pool),
		calc:     amount.New(cfg),
		guard:    guard.New(cfg, opts.Pool, opts.Oracle),
		ledger:   led,
		breaker: breaker.New(
			cfg.BreakerEnabled,
			cfg.MaxConsecutiveFailures,
			time.Duration(cfg.FailureCooldownSec)*time.Second,
			time.Duration(cfg.DeviationCooldownSec)*time.Second,
		),
		events:   events,
		logger:   logger,
		executor: opts.Executor,
		nextID:   maxID,
	}, nil
}

// Config returns a copy of the immutable configuration.
func (e *Engine) Config() domain.BuybackConfig {
	return e.cfg.Clone()
}

// ExecuteBuyback runs one attempt at now. Exactly one attempt is in
// flight at a time; the call runs to a definite outcome and all
// rejections are converted into records, never propagated as errors.
// The returned error is reserved for record-store write failures.
func (e *Engine) ExecuteBuyback(ctx context.Context, now time.Time) (*Result, error) {
	e.execMu.Lock()
	defer e.execMu.Unlock()

	// Step 1: circuit breaker. Recorded, but never counted toward the
	// failure tally (the breaker is already open).
	if e.breaker.Active(now) {
		rec := e.registerFailure(ctx, now, nil, domain.ReasonCircuitBreakerActive)
		return &Result{Action: ActionFailed, Record: rec}, nil
	}

	// Step 2: trigger. Not met is a benign no-op with zero mutation.
	ok, err := e.trigger.CanExecute(ctx, now)
	if err != nil {
		rec := e.registerFailure(ctx, now, nil, domain.ReasonMarketUnavailable)
		return &Result{Action: ActionFailed, Record: rec}, nil
	}
	if !ok {
		observability.RecordSkip(domain.ReasonTriggerNotMet)
		return &Result{Action: ActionSkipped, SkipReason: domain.ReasonTriggerNotMet}, nil
	}

	// Step 3: amount. Caps or balance leaving nothing is also a no-op.
	balance, err := e.treasury.Balance(ctx)
	if err != nil {
		rec := e.registerFailure(ctx, now, nil, domain.ReasonMarketUnavailable)
		return &Result{Action: ActionFailed, Record: rec}, nil
	}
	amt := e.calc.Compute(balance, e.ledger.RollingSpend(now))
	if amt.Sign() <= 0 {
		observability.RecordSkip(domain.ReasonNoExecutableAmount)
		return &Result{Action: ActionSkipped, SkipReason: domain.ReasonNoExecutableAmount}, nil
	}

	// Step 4: safety guards.
	minOut, reason, err := e.guard.Validate(ctx, amt)
	if err != nil {
		rec := e.registerFailure(ctx, now, amt, domain.ReasonMarketUnavailable)
		return &Result{Action: ActionFailed, Record: rec}, nil
	}
	if reason != "" {
		rec := e.registerFailure(ctx, now, amt, reason)
		return &Result{Action: ActionFailed, Record: rec}, nil
	}

	// Step 5: atomic pull/swap. All-or-nothing: a withdraw that is not
	// followed by a successful swap is reversed before returning.
	out, reason := e.executeAtomic(ctx, amt, minOut)
	if reason != "" {
		rec := e.registerFailure(ctx, now, amt, reason)
		return &Result{Action: ActionFailed, Record: rec}, nil
	}

	// Steps 6-7: record success, update ledger and breaker.
	e.ledger.RecordExecution(now, amt, out)
	e.breaker.RecordSuccess()

	rec := e.appendRecord(ctx, now, amt, out, "")
	e.events.BuybackExecuted(rec)

	inF, _ := new(big.Float).SetInt(amt).Float64()
	outF, _ := new(big.Float).SetInt(out).Float64()
	observability.RecordAttempt(string(domain.OutcomeSuccess), "")
	observability.RecordSpend(inF, outF)
	observability.DefaultMetrics.LastExecutionTS.Set(float64(now.Unix()))

	return &Result{Action: ActionExecuted, Record: rec}, nil
}

// executeAtomic runs the pull → swap-to-sink unit. The router delivers
// output directly to the sink and reverts as a whole on failure, so the
// only compensation needed is refunding the pull.
func (e *Engine) executeAtomic(ctx context.Context, amt, minOut *big.Int) (*big.Int, string) {
	swapCtx := ctx
	if e.cfg.SwapTimeout > 0 {
		var cancel context.CancelFunc
		swapCtx, cancel = context.WithTimeout(ctx, e.cfg.SwapTimeout)
		defer cancel()
	}

	if err := e.treasury.Withdraw(swapCtx, amt); err != nil {
		return nil, domain.ReasonTransferFailed
	}

	start := time.Now()
	out, err := e.router.Swap(swapCtx, amt, minOut, e.cfg.Sink)
	observability.ObserveSwapDuration(time.Since(start).Seconds())

	if err == nil && out.Cmp(minOut) < 0 {
		// Defensive: a conforming router errors instead.
		err = market.ErrSlippage
		out = nil
	}
	if err != nil {
		e.refund(amt)
		switch {
		case errors.Is(err, market.ErrSlippage):
			return nil, domain.ReasonSlippageExceeded
		case errors.Is(err, context.DeadlineExceeded):
			return nil, domain.ReasonExecutionTimeout
		default:
			return nil, domain.ReasonTransferFailed
		}
	}

	return out, ""
}

// refund reverses a pull after a failed swap. The refund must not be
// bound to the (possibly expired) swap context.
func (e *Engine) refund(amt *big.Int) {
	refundCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.treasury.Deposit(refundCtx, amt); err != nil {
		// The external ledger's atomic semantics make this unreachable
		// for a conforming treasury; log loudly if it ever happens.
		e.logger.Printf("ERROR: refund of %s failed: %v", amt, err)
	}
}

// registerFailure appends a FAILED record and feeds the breaker according
// to the failure reason.
func (e *Engine) registerFailure(ctx context.Context, now time.Time, amt *big.Int, reason string) *domain.ExecutionRecord {
	rec := e.appendRecord(ctx, now, amt, nil, reason)
	e.events.ExecutionFailed(rec)
	observability.RecordAttempt(string(domain.OutcomeFailed), reason)

	switch reason {
	case domain.ReasonCircuitBreakerActive:
		// The breaker is already open; the rejection is recorded and
		// signaled but must not extend the outage.
	case domain.ReasonPriceDeviationExceeded:
		// Arms the breaker directly, bypassing the tally.
		e.breaker.TripDeviation(now)
		_, until := e.breaker.Status(now)
		e.events.CircuitBreakerTriggered(breaker.TripReasonPriceDeviation, until, now.Unix())
		observability.RecordBreakerTrip(breaker.TripReasonPriceDeviation)
		observability.SetBreakerActive(true)
	case domain.ReasonInsufficientLiquidity, domain.ReasonMarketUnavailable:
		if !e.cfg.TallySwapFailuresOnly {
			e.countFailure(now)
		}
	default:
		e.countFailure(now)
	}

	return rec
}

// countFailure feeds the consecutive-failure tally.
func (e *Engine) countFailure(now time.Time) {
	if e.breaker.RecordFailure(now) {
		_, until := e.breaker.Status(now)
		e.events.CircuitBreakerTriggered(breaker.TripReasonConsecutiveFailures, until, now.Unix())
		observability.RecordBreakerTrip(breaker.TripReasonConsecutiveFailures)
		observability.SetBreakerActive(true)
	}
}

// appendRecord writes the audit record. A store failure cannot be allowed
// to lose the attempt silently, so it is logged and surfaced via metrics;
// the archive mirror is best effort.
func (e *Engine) appendRecord(ctx context.Context, now time.Time, amtIn, amtOut *big.Int, reason string) *domain.ExecutionRecord {
	e.nextID++

	outcome := domain.OutcomeSuccess
	if reason != "" {
		outcome = domain.OutcomeFailed
	}
	rec := domain.NewExecutionRecord(e.nextID, now.Unix(), amtIn, amtOut, outcome, reason, e.executor)

	if err := e.records.Insert(ctx, rec); err != nil {
		e.logger.Printf("ERROR: append execution record %d: %v", rec.ExecutionID, err)
		observability.RecordStoreError("records")
	}
	if e.archive != nil {
		if err := e.archive.Insert(ctx, rec); err != nil {
			e.logger.Printf("archive execution record %d: %v", rec.ExecutionID, err)
			observability.RecordStoreError("archive")
		}
	}

	return rec
}
