// Package app wires the collaborator clients to the polling, selection and
// order machinery, and runs one investment cycle end to end.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pickvest/internal/config"
	"pickvest/internal/invest"
	"pickvest/internal/journal"
	"pickvest/internal/lendingclub"
	"pickvest/internal/logger"
	"pickvest/internal/notifier"
	"pickvest/internal/p2ppicks"
	"pickvest/internal/poller"
	"pickvest/internal/schedule"
	"pickvest/internal/selector"
)

// Marketplace is the capability set the cycle needs from the lending
// marketplace.
type Marketplace interface {
	ListedLoans(ctx context.Context, showAll bool) (lendingclub.LoanSnapshot, error)
	AvailableCash(ctx context.Context) (decimal.Decimal, error)
	PortfoliosOwned(ctx context.Context) ([]lendingclub.Portfolio, error)
	CreatePortfolio(ctx context.Context, name, desc string) (lendingclub.Portfolio, error)
	SubmitOrder(ctx context.Context, loanIDs []int64, amountPerLoan decimal.Decimal, portfolioID *int64) (lendingclub.OrderResult, error)
}

// Underwriter is the capability set the cycle needs from the underwriting
// service.
type Underwriter interface {
	Picks(ctx context.Context) (p2ppicks.PicksSnapshot, error)
	Report(ctx context.Context, confirmations []lendingclub.OrderConfirmation) error
	SubscriberActive(ctx context.Context) (bool, error)
}

// RunJournal records finished cycles.
type RunJournal interface {
	RecordRun(ctx context.Context, run journal.RunModel, outcomes []journal.OrderOutcomeModel) error
}

// Options are the per-invocation CLI switches.
type Options struct {
	// Poll waits for both feeds to advance to a new snapshot before
	// selecting. When false the currently published snapshots are used.
	Poll bool

	// Wait sleeps until shortly before the next hour boundary first.
	Wait bool
}

// App runs investment cycles.
type App struct {
	cfg     *config.Config
	lc      Marketplace
	p2p     Underwriter
	journal RunJournal
	notify  notifier.TextNotifier
	aligner *schedule.HourAligner
	nowFn   func() time.Time
}

// New builds an App with real collaborator clients.
func New(cfg *config.Config, sec *config.Secrets) (*App, error) {
	lc, err := lendingclub.NewClient(lendingclub.Config{
		BaseURL:      cfg.LendingClub.BaseURL,
		InvestorID:   sec.LCInvestorID,
		APIKey:       sec.LCAPIKey,
		Timeout:      time.Duration(cfg.LendingClub.TimeoutSeconds) * time.Second,
		RateInterval: time.Duration(cfg.LendingClub.RateIntervalMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	p2p, err := p2ppicks.NewClient(p2ppicks.Config{
		BaseURL:      cfg.P2PPicks.BaseURL,
		Key:          sec.P2PKey,
		Secret:       sec.P2PSecret,
		SID:          sec.P2PSID,
		Product:      cfg.P2PPicks.Product,
		Timeout:      time.Duration(cfg.P2PPicks.TimeoutSeconds) * time.Second,
		RateInterval: time.Duration(cfg.P2PPicks.RateIntervalMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	app := &App{
		cfg:     cfg,
		lc:      lc,
		p2p:     p2p,
		aligner: schedule.NewHourAligner(time.Duration(cfg.Schedule.HourMarkOffsetSeconds) * time.Second),
		nowFn:   time.Now,
	}
	if cfg.Journal.Enabled {
		store, err := journal.NewStore(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("opening journal failed: %w", err)
		}
		app.journal = store
	}
	if cfg.Notify.Telegram.Enabled {
		app.notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}
	return app, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if closer, ok := a.journal.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Run executes one investment cycle. A poll timeout or a startup identity
// problem is returned as an error; running out of cash or finding no
// matching picks are normal outcomes.
func (a *App) Run(ctx context.Context, opts Options) error {
	traceID := uuid.NewString()
	startedAt := a.nowFn()
	logger.Infof("run %s: starting (poll=%v wait=%v)", traceID, opts.Poll, opts.Wait)

	active, err := a.p2p.SubscriberActive(ctx)
	if err != nil {
		return fmt.Errorf("checking underwriter subscription failed: %w", err)
	}
	if !active {
		return errors.New("underwriter subscription is not active")
	}

	amount := decimal.NewFromFloat(a.cfg.Strategy.AmountPerLoan)

	// Not enough for a single note: stop before touching the order path.
	cash, err := a.lc.AvailableCash(ctx)
	if err != nil {
		return fmt.Errorf("initial cash check failed: %w", err)
	}
	if cash.LessThan(amount) {
		logger.Infof("run %s: insufficient cash ($%s < $%s), nothing to do",
			traceID, cash.StringFixed(2), amount.StringFixed(2))
		a.recordRun(ctx, traceID, startedAt, invest.Outcome{State: invest.StateCashDepleted}, nil, cash)
		return nil
	}

	portfolioID, err := a.resolvePortfolio(ctx)
	if err != nil {
		return err
	}

	// The picks baseline must be captured before any waiting, otherwise an
	// update published while we sleep would go undetected.
	var picksBaseline time.Time
	if opts.Poll {
		current, err := a.p2p.Picks(ctx)
		if err != nil {
			return fmt.Errorf("fetching picks baseline failed: %w", err)
		}
		picksBaseline = current.AsOf()
		logger.Debugf("run %s: picks baseline %s", traceID, picksBaseline.Format(time.RFC3339))
	}

	if opts.Wait {
		if err := a.aligner.Wait(ctx); err != nil {
			return err
		}
	}

	loans, picks, err := a.fetchSnapshots(ctx, opts.Poll, picksBaseline)
	if err != nil {
		return err
	}

	criteria := selector.Criteria{
		MinRate:          decimal.NewFromFloat(a.cfg.Strategy.MinInterestRate),
		MinRateExclusive: a.cfg.Strategy.MinRateExclusive,
		MaxSubGrade:      a.cfg.Strategy.MaxSubGrade,
		Tiers:            a.cfg.Strategy.PickTiers,
		Grades:           a.cfg.Strategy.Grades,
	}
	candidates := selector.Select(loans, picks, criteria)
	if len(candidates) == 0 {
		logger.Infof("run %s: no matching picks (loans=%d picks=%d)", traceID, len(loans.Loans), len(picks.Picks))
		a.recordRun(ctx, traceID, startedAt, invest.Outcome{State: invest.StateNoCandidates}, picks.Picks, cash)
		return nil
	}
	logger.Infof("run %s: %d candidate loans selected", traceID, len(candidates))

	orchestrator := invest.NewOrchestrator(a.lc, a.p2p, invest.NewBalanceGuard(a.lc), invest.Options{
		AmountPerLoan:   amount,
		PortfolioID:     portfolioID,
		ReconcileWindow: time.Duration(a.cfg.Reconcile.WindowMinutes) * time.Minute,
		RetryBaseDelay:  time.Duration(a.cfg.Reconcile.BaseDelaySeconds) * time.Second,
		RetryDelayStep:  time.Duration(a.cfg.Reconcile.DelayStepSeconds) * time.Second,
		RetryMaxDelay:   time.Duration(a.cfg.Reconcile.MaxDelaySeconds) * time.Second,
	})
	outcome, err := orchestrator.Execute(ctx, candidates)
	if err != nil {
		return err
	}
	a.logOutcome(traceID, outcome, picks.Picks)

	finalCash, cashErr := a.lc.AvailableCash(ctx)
	if cashErr != nil {
		logger.Warnf("run %s: final cash check failed: %v", traceID, cashErr)
	} else {
		logger.Infof("run %s: done, $%s cash remaining", traceID, finalCash.StringFixed(2))
	}

	a.recordRun(ctx, traceID, startedAt, outcome, picks.Picks, finalCash)
	a.sendSummary(traceID, outcome, finalCash)
	return nil
}

// fetchSnapshots obtains one loan snapshot and one picks snapshot. The two
// feeds are fetched independently; they may reflect slightly different
// real-world instants, which is an accepted tradeoff.
func (a *App) fetchSnapshots(ctx context.Context, poll bool, picksBaseline time.Time) (lendingclub.LoanSnapshot, p2ppicks.PicksSnapshot, error) {
	var (
		loans lendingclub.LoanSnapshot
		picks p2ppicks.PicksSnapshot
		err   error
	)
	if !poll {
		if loans, err = a.lc.ListedLoans(ctx, false); err != nil {
			return loans, picks, fmt.Errorf("fetching loans failed: %w", err)
		}
		if picks, err = a.p2p.Picks(ctx); err != nil {
			return loans, picks, fmt.Errorf("fetching picks failed: %w", err)
		}
		return loans, picks, nil
	}

	pollOpts := poller.Options{
		MinInterval: time.Duration(a.cfg.Poll.IntervalMS) * time.Millisecond,
		ErrBackoff:  time.Duration(a.cfg.Poll.ErrorBackoffSeconds) * time.Second,
		MaxWait:     time.Duration(a.cfg.Poll.TimeoutSeconds) * time.Second,
	}
	loanPoller := poller.New("loans", func(ctx context.Context) (lendingclub.LoanSnapshot, error) {
		return a.lc.ListedLoans(ctx, false)
	}, pollOpts)
	if loans, err = poller.WaitForNew(ctx, loanPoller, time.Time{}); err != nil {
		return loans, picks, fmt.Errorf("waiting for new loans: %w", err)
	}

	pickPoller := poller.New("picks", func(ctx context.Context) (p2ppicks.PicksSnapshot, error) {
		return a.p2p.Picks(ctx)
	}, pollOpts)
	if picks, err = poller.WaitForNew(ctx, pickPoller, picksBaseline); err != nil {
		return loans, picks, fmt.Errorf("waiting for new picks: %w", err)
	}
	return loans, picks, nil
}

// resolvePortfolio maps the configured portfolio name to its id, creating
// the portfolio when it does not exist yet. The lookup retries transient
// failures inside a short window. No configured name means no assignment.
func (a *App) resolvePortfolio(ctx context.Context) (*int64, error) {
	name := strings.TrimSpace(a.cfg.Strategy.Portfolio)
	if name == "" {
		return nil, nil
	}
	deadline := a.nowFn().Add(20 * time.Second)
	var lastErr error
	for a.nowFn().Before(deadline) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		portfolios, err := a.lc.PortfoliosOwned(ctx)
		if err != nil {
			lastErr = err
			logger.Debugf("portfolio lookup failed, retrying: %v", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}
		for _, p := range portfolios {
			if p.Name == name {
				logger.Infof("portfolio %q resolved to id %d", name, p.ID)
				id := p.ID
				return &id, nil
			}
		}
		created, err := a.lc.CreatePortfolio(ctx, name, "created by pickvest")
		if err != nil {
			return nil, fmt.Errorf("portfolio %q not found and creating it failed: %w", name, err)
		}
		logger.Infof("portfolio %q created with id %d", name, created.ID)
		id := created.ID
		return &id, nil
	}
	return nil, fmt.Errorf("portfolio %q could not be resolved: %w", name, lastErr)
}

func (a *App) logOutcome(traceID string, outcome invest.Outcome, picks []p2ppicks.Pick) {
	grades := make(map[int64]string, len(picks))
	for _, p := range picks {
		grades[p.LoanID] = p.Grade
	}
	for id, conf := range outcome.Confirmations {
		if conf.Fulfilled() {
			logger.Infof("run %s: invested $%s in grade %s loan %d",
				traceID, conf.InvestedAmount.StringFixed(2), grades[id], id)
		}
	}
	logger.Infof("run %s: outcome %s (fulfilled=%d unfulfilled=%d invested=$%s attempts=%d)",
		traceID, outcome.State, len(outcome.Fulfilled), len(outcome.Unfulfilled),
		outcome.TotalInvested.StringFixed(2), outcome.Attempts)
}

func (a *App) recordRun(ctx context.Context, traceID string, startedAt time.Time, outcome invest.Outcome, picks []p2ppicks.Pick, finalCash decimal.Decimal) {
	if a.journal == nil {
		return
	}
	grades := make(map[int64]string, len(picks))
	for _, p := range picks {
		grades[p.LoanID] = p.Grade
	}
	run := journal.RunModel{
		TraceID:       traceID,
		StartedAt:     startedAt,
		FinishedAt:    a.nowFn(),
		State:         outcome.State.String(),
		Candidates:    len(outcome.Fulfilled) + len(outcome.Unfulfilled),
		Fulfilled:     len(outcome.Fulfilled),
		Unfulfilled:   len(outcome.Unfulfilled),
		TotalInvested: outcome.TotalInvested.StringFixed(2),
		FinalCash:     finalCash.StringFixed(2),
	}
	outcomes := make([]journal.OrderOutcomeModel, 0, len(outcome.Confirmations))
	for id, conf := range outcome.Confirmations {
		raw, err := json.Marshal(map[string]any{
			"loanId":          conf.LoanID,
			"requestedAmount": conf.RequestedAmount,
			"investedAmount":  conf.InvestedAmount,
			"executionStatus": conf.ExecutionStatus,
		})
		if err != nil {
			raw = nil
		}
		outcomes = append(outcomes, journal.OrderOutcomeModel{
			LoanID:         id,
			Grade:          grades[id],
			InvestedAmount: conf.InvestedAmount.StringFixed(2),
			Fulfilled:      conf.Fulfilled(),
			Raw:            raw,
		})
	}
	if err := a.journal.RecordRun(ctx, run, outcomes); err != nil {
		logger.Warnf("run %s: journal write failed: %v", traceID, err)
	}
}

func (a *App) sendSummary(traceID string, outcome invest.Outcome, finalCash decimal.Decimal) {
	if a.notify == nil {
		return
	}
	msg := fmt.Sprintf("*pickvest* run `%s`\noutcome: %s\nfulfilled: %d, unfulfilled: %d\ninvested: $%s\ncash remaining: $%s",
		traceID, outcome.State, len(outcome.Fulfilled), len(outcome.Unfulfilled),
		outcome.TotalInvested.StringFixed(2), finalCash.StringFixed(2))
	if err := a.notify.SendText(msg); err != nil {
		logger.Warnf("run %s: notification failed: %v", traceID, err)
	}
}
