// Package invest submits batch purchase orders and drives the bounded
// reconciliation loop for loans that received no funding on the first pass.
package invest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pickvest/internal/lendingclub"
	"pickvest/internal/logger"
	"pickvest/internal/pkg/apierr"
)

// State is the orchestrator's position in the order lifecycle.
type State int

const (
	StateIdle State = iota
	StateNoCandidates
	StateSubmitted
	StatePartiallyFulfilled
	StateReconciling
	StateAllFulfilled
	StateExhausted
	StateCashDepleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateNoCandidates:
		return "NO_CANDIDATES"
	case StateSubmitted:
		return "SUBMITTED"
	case StatePartiallyFulfilled:
		return "PARTIALLY_FULFILLED"
	case StateReconciling:
		return "RECONCILING"
	case StateAllFulfilled:
		return "ALL_FULFILLED"
	case StateExhausted:
		return "EXHAUSTED"
	case StateCashDepleted:
		return "CASH_DEPLETED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state ends a cycle.
func (s State) Terminal() bool {
	switch s {
	case StateNoCandidates, StateAllFulfilled, StateExhausted, StateCashDepleted:
		return true
	default:
		return false
	}
}

// Options tune one orchestrator. Zero durations fall back to defaults.
type Options struct {
	AmountPerLoan decimal.Decimal
	PortfolioID   *int64

	// ReconcileWindow bounds the wall-clock time spent retrying unfulfilled
	// loans. Loans fully subscribed by other investors may free up capacity
	// as orders fail elsewhere, so it pays to keep trying for a while.
	ReconcileWindow time.Duration

	// RetryBaseDelay is the first inter-attempt sleep; each attempt adds
	// RetryDelayStep up to RetryMaxDelay. Spacing retries avoids hammering
	// the API while still catching late availability.
	RetryBaseDelay time.Duration
	RetryDelayStep time.Duration
	RetryMaxDelay  time.Duration
}

const (
	defaultReconcileWindow = 30 * time.Minute
	defaultRetryBaseDelay  = 5 * time.Second
	defaultRetryDelayStep  = 5 * time.Second
	defaultRetryMaxDelay   = 30 * time.Second
)

// Outcome summarizes a finished cycle. Confirmations holds the latest
// per-loan confirmation seen across all passes.
type Outcome struct {
	State         State
	Fulfilled     []int64
	Unfulfilled   []int64
	Confirmations map[int64]lendingclub.OrderConfirmation
	TotalInvested decimal.Decimal
	Attempts      int
}

// Orchestrator owns the submit/reconcile state machine for one cycle.
type Orchestrator struct {
	submitter OrderSubmitter
	reporter  OutcomeReporter
	guard     *BalanceGuard
	opts      Options

	nowFn   func() time.Time
	sleepFn func(context.Context, time.Duration) error

	state State
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(submitter OrderSubmitter, reporter OutcomeReporter, guard *BalanceGuard, opts Options) *Orchestrator {
	if opts.ReconcileWindow <= 0 {
		opts.ReconcileWindow = defaultReconcileWindow
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaultRetryBaseDelay
	}
	if opts.RetryDelayStep < 0 {
		opts.RetryDelayStep = 0
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = defaultRetryMaxDelay
	}
	return &Orchestrator{
		submitter: submitter,
		reporter:  reporter,
		guard:     guard,
		opts:      opts,
		nowFn:     time.Now,
		sleepFn:   sleepCtx,
		state:     StateIdle,
	}
}

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// Invest submits a single batch order covering loanIDs and reports the
// outcome to the underwriter. The report is fire-and-forget: an investment
// must never be undone by a reporting failure, so report errors are logged
// and swallowed.
func (o *Orchestrator) Invest(ctx context.Context, loanIDs []int64) (lendingclub.OrderResult, error) {
	if len(loanIDs) == 0 {
		return lendingclub.OrderResult{}, fmt.Errorf("invest: empty candidate list (callers must skip submission)")
	}
	result, err := o.submitter.SubmitOrder(ctx, loanIDs, o.opts.AmountPerLoan, o.opts.PortfolioID)
	if err != nil {
		return lendingclub.OrderResult{}, err
	}
	o.transition(StateSubmitted)
	if o.reporter != nil {
		if err := o.reporter.Report(ctx, result.Confirmations); err != nil {
			logger.Warnf("invest: outcome report failed (continuing): %v", err)
		}
	}
	return result, nil
}

// Execute runs the full cycle for a candidate list: submit, then reconcile
// whatever came back unfulfilled. An empty candidate list is a no-op.
func (o *Orchestrator) Execute(ctx context.Context, loanIDs []int64) (Outcome, error) {
	if len(loanIDs) == 0 {
		o.transition(StateNoCandidates)
		return Outcome{State: StateNoCandidates}, nil
	}
	result, err := o.Invest(ctx, loanIDs)
	if err != nil {
		return Outcome{State: o.state}, err
	}
	return o.Reconcile(ctx, loanIDs, result.Confirmations)
}

// Reconcile retries the loans that received zero investment until all are
// funded, the retry window closes, or cash runs out. Each pass queries the
// live balance first and resubmits exactly the current unfulfilled set, so
// the set shrinks monotonically. Cancellation propagates out immediately;
// already-submitted orders stay as-is (the marketplace offers no
// compensating cancellation).
func (o *Orchestrator) Reconcile(ctx context.Context, requested []int64, confirmations []lendingclub.OrderConfirmation) (Outcome, error) {
	latest := make(map[int64]lendingclub.OrderConfirmation, len(requested))
	unfulfilled := applyConfirmations(requested, confirmations, latest)

	if len(unfulfilled) == 0 {
		o.transition(StateAllFulfilled)
		return o.outcome(requested, latest, unfulfilled, 0), nil
	}
	o.transition(StatePartiallyFulfilled)
	o.transition(StateReconciling)
	logger.Infof("reconcile: %d of %d loans unfulfilled, retrying for up to %s",
		len(unfulfilled), len(requested), o.opts.ReconcileWindow)

	deadline := o.nowFn().Add(o.opts.ReconcileWindow)
	attempts := 0
	for len(unfulfilled) > 0 {
		if o.nowFn().After(deadline) {
			// Non-fatal: money remains that could not be placed this cycle.
			o.transition(StateExhausted)
			logger.Infof("reconcile: retry window exhausted with %d loans unfulfilled", len(unfulfilled))
			return o.outcome(requested, latest, unfulfilled, attempts), nil
		}

		available, affordable, err := o.guard.CanAfford(ctx, o.opts.AmountPerLoan)
		if err != nil {
			if ctx.Err() != nil {
				return o.outcome(requested, latest, unfulfilled, attempts), ctx.Err()
			}
			logger.Errorf("reconcile: balance check failed: %v", err)
			if apierr.IsNonRetryable(err) {
				return o.outcome(requested, latest, unfulfilled, attempts), err
			}
		} else if !affordable {
			o.transition(StateCashDepleted)
			logger.Infof("reconcile: insufficient cash ($%s < $%s), stopping with %d loans unfulfilled",
				available.StringFixed(2), o.opts.AmountPerLoan.StringFixed(2), len(unfulfilled))
			return o.outcome(requested, latest, unfulfilled, attempts), nil
		}

		if err := o.sleepFn(ctx, o.retryDelay(attempts)); err != nil {
			return o.outcome(requested, latest, unfulfilled, attempts), err
		}
		attempts++

		result, err := o.submitter.SubmitOrder(ctx, unfulfilled, o.opts.AmountPerLoan, o.opts.PortfolioID)
		if err != nil {
			if ctx.Err() != nil {
				return o.outcome(requested, latest, unfulfilled, attempts), ctx.Err()
			}
			if apierr.IsNonRetryable(err) {
				return o.outcome(requested, latest, unfulfilled, attempts), err
			}
			logger.Errorf("reconcile: resubmission failed (attempt %d): %v", attempts, err)
			continue
		}
		if o.reporter != nil {
			if err := o.reporter.Report(ctx, result.Confirmations); err != nil {
				logger.Warnf("reconcile: outcome report failed (continuing): %v", err)
			}
		}

		before := len(unfulfilled)
		unfulfilled = applyConfirmations(unfulfilled, result.Confirmations, latest)
		if filled := before - len(unfulfilled); filled > 0 {
			logger.Infof("reconcile: attempt %d fulfilled %d more loans (%d remaining)",
				attempts, filled, len(unfulfilled))
		}
	}

	o.transition(StateAllFulfilled)
	logger.Infof("reconcile: all loans fulfilled after %d retries", attempts)
	return o.outcome(requested, latest, unfulfilled, attempts), nil
}

// applyConfirmations folds a confirmation batch into latest and returns the
// ids from pending that remain unfulfilled. Only ids in pending are
// considered; a confirmation for any other loan is ignored, and a pending id
// the batch does not cover stays unfulfilled.
func applyConfirmations(pending []int64, confirmations []lendingclub.OrderConfirmation, latest map[int64]lendingclub.OrderConfirmation) []int64 {
	pendingSet := make(map[int64]struct{}, len(pending))
	for _, id := range pending {
		pendingSet[id] = struct{}{}
	}
	for _, conf := range confirmations {
		if _, ok := pendingSet[conf.LoanID]; !ok {
			continue
		}
		latest[conf.LoanID] = conf
		if conf.Fulfilled() {
			logger.Infof("invest: $%s placed in loan %d", conf.InvestedAmount.StringFixed(2), conf.LoanID)
			delete(pendingSet, conf.LoanID)
		}
	}
	remaining := make([]int64, 0, len(pendingSet))
	for _, id := range pending {
		if _, ok := pendingSet[id]; ok {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

func (o *Orchestrator) retryDelay(attempt int) time.Duration {
	delay := o.opts.RetryBaseDelay + time.Duration(attempt)*o.opts.RetryDelayStep
	if delay > o.opts.RetryMaxDelay {
		delay = o.opts.RetryMaxDelay
	}
	return delay
}

func (o *Orchestrator) outcome(requested []int64, latest map[int64]lendingclub.OrderConfirmation, unfulfilled []int64, attempts int) Outcome {
	unfulfilledSet := make(map[int64]struct{}, len(unfulfilled))
	for _, id := range unfulfilled {
		unfulfilledSet[id] = struct{}{}
	}
	out := Outcome{
		State:         o.state,
		Unfulfilled:   unfulfilled,
		Confirmations: latest,
		TotalInvested: decimal.Zero,
		Attempts:      attempts,
	}
	for _, id := range requested {
		if _, ok := unfulfilledSet[id]; ok {
			continue
		}
		out.Fulfilled = append(out.Fulfilled, id)
		if conf, ok := latest[id]; ok {
			out.TotalInvested = out.TotalInvested.Add(conf.InvestedAmount)
		}
	}
	return out
}

func (o *Orchestrator) transition(to State) {
	if o.state == to {
		return
	}
	logger.Debugf("invest: state %s -> %s", o.state, to)
	o.state = to
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
