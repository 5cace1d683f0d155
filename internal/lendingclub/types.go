package lendingclub

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pickvest/internal/pkg/apierr"
)

// Loan is one listed note on the marketplace.
type Loan struct {
	ID           int64
	InterestRate decimal.Decimal
	SubGrade     string
	ListedAt     time.Time
}

// LoanSnapshot is one atomic fetch of the loan listing together with the
// marketplace's as-of timestamp.
type LoanSnapshot struct {
	Loans     []Loan
	AsOfDate  time.Time
	FetchedAt time.Time
}

// AsOf reports the snapshot timestamp used for change detection.
func (s LoanSnapshot) AsOf() time.Time { return s.AsOfDate }

// Portfolio is a named note grouping in the investor account.
type Portfolio struct {
	ID   int64
	Name string
}

// OrderConfirmation is the marketplace's per-loan answer to an order.
type OrderConfirmation struct {
	LoanID          int64
	RequestedAmount decimal.Decimal
	InvestedAmount  decimal.Decimal
	ExecutionStatus []string
}

// Fulfilled reports whether any money was placed in the loan. The
// marketplace may fund less than requested; partial fills still count.
func (c OrderConfirmation) Fulfilled() bool {
	return c.InvestedAmount.IsPositive()
}

// OrderResult is the full response to a batch order submission.
type OrderResult struct {
	OrderInstructID *int64
	Confirmations   []OrderConfirmation
}

type loanWire struct {
	ID       *int64           `json:"id"`
	IntRate  *decimal.Decimal `json:"intRate"`
	SubGrade string           `json:"subGrade"`
	ListD    string           `json:"listD"`
}

type loanListingWire struct {
	AsOfDate string     `json:"asOfDate"`
	Loans    []loanWire `json:"loans"`
}

func (w loanListingWire) toSnapshot(now time.Time) (LoanSnapshot, error) {
	asOf, err := parseAPITime(w.AsOfDate)
	if err != nil {
		return LoanSnapshot{}, apierr.NonRetryablef("loan listing: bad asOfDate %q: %w", w.AsOfDate, err)
	}
	snap := LoanSnapshot{AsOfDate: asOf, FetchedAt: now, Loans: make([]Loan, 0, len(w.Loans))}
	for i, lw := range w.Loans {
		loan, err := lw.toLoan()
		if err != nil {
			return LoanSnapshot{}, apierr.NonRetryablef("loan listing: entry %d: %w", i, err)
		}
		snap.Loans = append(snap.Loans, loan)
	}
	return snap, nil
}

func (w loanWire) toLoan() (Loan, error) {
	if w.ID == nil {
		return Loan{}, fmt.Errorf("missing id")
	}
	if w.IntRate == nil {
		return Loan{}, fmt.Errorf("loan %d: missing intRate", *w.ID)
	}
	sub := strings.ToUpper(strings.TrimSpace(w.SubGrade))
	if sub == "" {
		return Loan{}, fmt.Errorf("loan %d: missing subGrade", *w.ID)
	}
	listedAt, err := parseAPITime(w.ListD)
	if err != nil {
		return Loan{}, fmt.Errorf("loan %d: bad listD %q: %w", *w.ID, w.ListD, err)
	}
	return Loan{ID: *w.ID, InterestRate: *w.IntRate, SubGrade: sub, ListedAt: listedAt}, nil
}

type portfolioWire struct {
	PortfolioID   *int64 `json:"portfolioId"`
	PortfolioName string `json:"portfolioName"`
}

func (w portfolioWire) toPortfolio() (Portfolio, error) {
	if w.PortfolioID == nil {
		return Portfolio{}, fmt.Errorf("portfolio %q: missing portfolioId", w.PortfolioName)
	}
	return Portfolio{ID: *w.PortfolioID, Name: w.PortfolioName}, nil
}

type confirmationWire struct {
	LoanID          *int64           `json:"loanId"`
	RequestedAmount *decimal.Decimal `json:"requestedAmount"`
	InvestedAmount  *decimal.Decimal `json:"investedAmount"`
	ExecutionStatus []string         `json:"executionStatus"`
}

func (w confirmationWire) toConfirmation() (OrderConfirmation, error) {
	if w.LoanID == nil {
		return OrderConfirmation{}, fmt.Errorf("order confirmation missing loanId")
	}
	if w.InvestedAmount == nil {
		return OrderConfirmation{}, fmt.Errorf("order confirmation for loan %d missing investedAmount", *w.LoanID)
	}
	conf := OrderConfirmation{
		LoanID:          *w.LoanID,
		InvestedAmount:  *w.InvestedAmount,
		ExecutionStatus: w.ExecutionStatus,
	}
	if w.RequestedAmount != nil {
		conf.RequestedAmount = *w.RequestedAmount
	}
	return conf, nil
}

// parseAPITime handles the marketplace's RFC3339 timestamps, with or without
// fractional seconds.
func parseAPITime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
