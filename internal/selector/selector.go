// Package selector picks the loans eligible for investment out of one loan
// snapshot and one picks snapshot. Selection is a pure function: identical
// inputs always yield the identical ordered output.
package selector

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"pickvest/internal/lendingclub"
	"pickvest/internal/p2ppicks"
)

// Criteria is the rate/grade/tier filter applied to a cycle.
type Criteria struct {
	// MinRate is the lower interest-rate bound. MinRateExclusive selects
	// strict comparison; the default is inclusive.
	MinRate          decimal.Decimal
	MinRateExclusive bool

	// MaxRate, when non-nil, is the upper interest-rate bound (inclusive).
	MaxRate *decimal.Decimal

	// MaxSubGrade is the worst acceptable sub-grade (e.g. "F2").
	MaxSubGrade string

	// Tiers is the set of acceptable underwriter confidence buckets
	// (e.g. "5%" for the top bucket).
	Tiers []string

	// Grades optionally restricts picks to a set of letter grades. Empty
	// means any grade.
	Grades []string
}

func (c Criteria) rateOK(rate decimal.Decimal) bool {
	if c.MinRateExclusive {
		if !rate.GreaterThan(c.MinRate) {
			return false
		}
	} else if rate.LessThan(c.MinRate) {
		return false
	}
	if c.MaxRate != nil && rate.GreaterThan(*c.MaxRate) {
		return false
	}
	return true
}

func (c Criteria) subGradeOK(subGrade string) bool {
	if !ValidSubGrade(subGrade) {
		return false
	}
	ceiling := strings.ToUpper(strings.TrimSpace(c.MaxSubGrade))
	if ceiling == "" {
		return true
	}
	return CompareSubGrades(subGrade, ceiling) <= 0
}

func (c Criteria) tierOK(tier string) bool {
	for _, t := range c.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

func (c Criteria) gradeOK(grade string) bool {
	if len(c.Grades) == 0 {
		return true
	}
	for _, g := range c.Grades {
		if strings.EqualFold(g, grade) {
			return true
		}
	}
	return false
}

// Select returns the ids of loans that pass the rate/sub-grade filter and
// carry a matching underwriter pick, ordered by interest rate descending
// (snapshot order breaks ties). Downstream funds may not cover every
// candidate, so the highest-yield loans come first. An empty result is a
// valid outcome, not an error.
func Select(loans lendingclub.LoanSnapshot, picks p2ppicks.PicksSnapshot, crit Criteria) []int64 {
	eligible := make([]lendingclub.Loan, 0, len(loans.Loans))
	for _, loan := range loans.Loans {
		if crit.rateOK(loan.InterestRate) && crit.subGradeOK(loan.SubGrade) {
			eligible = append(eligible, loan)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].InterestRate.GreaterThan(eligible[j].InterestRate)
	})

	picked := make(map[int64]struct{}, len(picks.Picks))
	for _, pick := range picks.Picks {
		if crit.tierOK(pick.Tier) && crit.gradeOK(pick.Grade) {
			picked[pick.LoanID] = struct{}{}
		}
	}

	out := make([]int64, 0, len(eligible))
	for _, loan := range eligible {
		if _, ok := picked[loan.ID]; ok {
			out = append(out, loan.ID)
		}
	}
	return out
}
