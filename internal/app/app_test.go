package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pickvest/internal/config"
	"pickvest/internal/lendingclub"
	"pickvest/internal/p2ppicks"
	"pickvest/internal/schedule"
)

type MockMarketplace struct {
	mock.Mock
}

func (m *MockMarketplace) ListedLoans(ctx context.Context, showAll bool) (lendingclub.LoanSnapshot, error) {
	args := m.Called(ctx, showAll)
	return args.Get(0).(lendingclub.LoanSnapshot), args.Error(1)
}

func (m *MockMarketplace) AvailableCash(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockMarketplace) PortfoliosOwned(ctx context.Context) ([]lendingclub.Portfolio, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]lendingclub.Portfolio), args.Error(1)
}

func (m *MockMarketplace) CreatePortfolio(ctx context.Context, name, desc string) (lendingclub.Portfolio, error) {
	args := m.Called(ctx, name, desc)
	return args.Get(0).(lendingclub.Portfolio), args.Error(1)
}

func (m *MockMarketplace) SubmitOrder(ctx context.Context, loanIDs []int64, amountPerLoan decimal.Decimal, portfolioID *int64) (lendingclub.OrderResult, error) {
	args := m.Called(ctx, loanIDs, amountPerLoan, portfolioID)
	return args.Get(0).(lendingclub.OrderResult), args.Error(1)
}

type MockUnderwriter struct {
	mock.Mock
}

func (m *MockUnderwriter) Picks(ctx context.Context) (p2ppicks.PicksSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(p2ppicks.PicksSnapshot), args.Error(1)
}

func (m *MockUnderwriter) Report(ctx context.Context, confirmations []lendingclub.OrderConfirmation) error {
	args := m.Called(ctx, confirmations)
	return args.Error(0)
}

func (m *MockUnderwriter) SubscriberActive(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Strategy: config.StrategyConfig{
			MinInterestRate: 16.95,
			MaxSubGrade:     "F2",
			PickTiers:       []string{"5%"},
			AmountPerLoan:   25,
		},
		Poll:      config.PollConfig{IntervalMS: 1000, ErrorBackoffSeconds: 2, TimeoutSeconds: 60},
		Reconcile: config.ReconcileConfig{WindowMinutes: 30, BaseDelaySeconds: 5, DelayStepSeconds: 5, MaxDelaySeconds: 30},
	}
}

func newTestApp(cfg *config.Config, lc Marketplace, p2p Underwriter) *App {
	return &App{
		cfg:     cfg,
		lc:      lc,
		p2p:     p2p,
		aligner: schedule.NewHourAligner(5 * time.Second),
		nowFn:   time.Now,
	}
}

func marketSnapshot() lendingclub.LoanSnapshot {
	asOf := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	return lendingclub.LoanSnapshot{
		AsOfDate: asOf,
		Loans: []lendingclub.Loan{
			{ID: 101, InterestRate: decimal.RequireFromString("18.5"), SubGrade: "D3"},
			{ID: 102, InterestRate: decimal.RequireFromString("12.0"), SubGrade: "B1"},
		},
	}
}

func picksSnapshot() p2ppicks.PicksSnapshot {
	return p2ppicks.PicksSnapshot{
		Timestamp: time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC),
		Picks:     []p2ppicks.Pick{{LoanID: 101, Grade: "D", Term: 36, Tier: "5%"}},
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Inactive Subscription Is Fatal", func(t *testing.T) {
		lc := new(MockMarketplace)
		p2p := new(MockUnderwriter)
		p2p.On("SubscriberActive", mock.Anything).Return(false, nil)

		err := newTestApp(testConfig(), lc, p2p).Run(ctx, Options{})
		assert.Error(t, err)
		lc.AssertNotCalled(t, "SubmitOrder")
	})

	t.Run("Insufficient Cash Exits Cleanly", func(t *testing.T) {
		lc := new(MockMarketplace)
		p2p := new(MockUnderwriter)
		p2p.On("SubscriberActive", mock.Anything).Return(true, nil)
		lc.On("AvailableCash", mock.Anything).Return(decimal.RequireFromString("10"), nil)

		err := newTestApp(testConfig(), lc, p2p).Run(ctx, Options{})
		assert.NoError(t, err, "having no money is a normal outcome")
		lc.AssertNotCalled(t, "SubmitOrder")
		lc.AssertNotCalled(t, "ListedLoans")
	})

	t.Run("No Candidates Is A Clean Noop", func(t *testing.T) {
		lc := new(MockMarketplace)
		p2p := new(MockUnderwriter)
		p2p.On("SubscriberActive", mock.Anything).Return(true, nil)
		lc.On("AvailableCash", mock.Anything).Return(decimal.RequireFromString("500"), nil)
		lc.On("ListedLoans", mock.Anything, false).Return(marketSnapshot(), nil)
		// Picks for a loan that is not listed.
		p2p.On("Picks", mock.Anything).Return(p2ppicks.PicksSnapshot{
			Timestamp: time.Now(),
			Picks:     []p2ppicks.Pick{{LoanID: 999, Grade: "D", Tier: "5%"}},
		}, nil)

		err := newTestApp(testConfig(), lc, p2p).Run(ctx, Options{})
		assert.NoError(t, err)
		lc.AssertNotCalled(t, "SubmitOrder")
	})

	t.Run("Invests In Selected Loans", func(t *testing.T) {
		lc := new(MockMarketplace)
		p2p := new(MockUnderwriter)
		p2p.On("SubscriberActive", mock.Anything).Return(true, nil)
		lc.On("AvailableCash", mock.Anything).Return(decimal.RequireFromString("500"), nil)
		lc.On("ListedLoans", mock.Anything, false).Return(marketSnapshot(), nil)
		p2p.On("Picks", mock.Anything).Return(picksSnapshot(), nil)
		lc.On("SubmitOrder", mock.Anything, []int64{101}, mock.Anything, (*int64)(nil)).
			Return(lendingclub.OrderResult{Confirmations: []lendingclub.OrderConfirmation{{
				LoanID:          101,
				RequestedAmount: decimal.RequireFromString("25"),
				InvestedAmount:  decimal.RequireFromString("25"),
				ExecutionStatus: []string{"ORDER_FULFILLED"},
			}}}, nil).Once()
		p2p.On("Report", mock.Anything, mock.Anything).Return(nil)

		err := newTestApp(testConfig(), lc, p2p).Run(ctx, Options{})
		assert.NoError(t, err)
		lc.AssertExpectations(t)
	})

	t.Run("Resolves Portfolio By Name", func(t *testing.T) {
		cfg := testConfig()
		cfg.Strategy.Portfolio = "Picks"
		lc := new(MockMarketplace)
		p2p := new(MockUnderwriter)
		p2p.On("SubscriberActive", mock.Anything).Return(true, nil)
		lc.On("AvailableCash", mock.Anything).Return(decimal.RequireFromString("500"), nil)
		lc.On("PortfoliosOwned", mock.Anything).Return([]lendingclub.Portfolio{{ID: 9, Name: "Picks"}}, nil)
		lc.On("ListedLoans", mock.Anything, false).Return(marketSnapshot(), nil)
		p2p.On("Picks", mock.Anything).Return(picksSnapshot(), nil)
		portfolioID := int64(9)
		lc.On("SubmitOrder", mock.Anything, []int64{101}, mock.Anything, &portfolioID).
			Return(lendingclub.OrderResult{Confirmations: []lendingclub.OrderConfirmation{{
				LoanID:         101,
				InvestedAmount: decimal.RequireFromString("25"),
			}}}, nil).Once()
		p2p.On("Report", mock.Anything, mock.Anything).Return(nil)

		err := newTestApp(cfg, lc, p2p).Run(ctx, Options{})
		assert.NoError(t, err)
		lc.AssertExpectations(t)
		lc.AssertNotCalled(t, "CreatePortfolio")
	})

	t.Run("Creates Missing Portfolio", func(t *testing.T) {
		cfg := testConfig()
		cfg.Strategy.Portfolio = "Fresh"
		lc := new(MockMarketplace)
		p2p := new(MockUnderwriter)
		p2p.On("SubscriberActive", mock.Anything).Return(true, nil)
		lc.On("AvailableCash", mock.Anything).Return(decimal.RequireFromString("500"), nil)
		lc.On("PortfoliosOwned", mock.Anything).Return([]lendingclub.Portfolio{}, nil)
		lc.On("CreatePortfolio", mock.Anything, "Fresh", mock.Anything).
			Return(lendingclub.Portfolio{ID: 42, Name: "Fresh"}, nil).Once()
		lc.On("ListedLoans", mock.Anything, false).Return(marketSnapshot(), nil)
		p2p.On("Picks", mock.Anything).Return(picksSnapshot(), nil)
		portfolioID := int64(42)
		lc.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything, &portfolioID).
			Return(lendingclub.OrderResult{Confirmations: []lendingclub.OrderConfirmation{{
				LoanID:         101,
				InvestedAmount: decimal.RequireFromString("25"),
			}}}, nil).Once()
		p2p.On("Report", mock.Anything, mock.Anything).Return(nil)

		err := newTestApp(cfg, lc, p2p).Run(ctx, Options{})
		assert.NoError(t, err)
		lc.AssertExpectations(t)
	})

	t.Run("Unresolvable Portfolio Is Fatal", func(t *testing.T) {
		cfg := testConfig()
		cfg.Strategy.Portfolio = "Broken"
		lc := new(MockMarketplace)
		p2p := new(MockUnderwriter)
		p2p.On("SubscriberActive", mock.Anything).Return(true, nil)
		lc.On("AvailableCash", mock.Anything).Return(decimal.RequireFromString("500"), nil)
		lc.On("PortfoliosOwned", mock.Anything).Return([]lendingclub.Portfolio{}, nil)
		lc.On("CreatePortfolio", mock.Anything, "Broken", mock.Anything).
			Return(lendingclub.Portfolio{}, assert.AnError)

		err := newTestApp(cfg, lc, p2p).Run(ctx, Options{})
		assert.Error(t, err)
		lc.AssertNotCalled(t, "SubmitOrder")
	})
}
