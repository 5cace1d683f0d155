package invest

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceGuard answers "can we afford one more note" questions. Every call
// issues a fresh query: the account balance is mutated externally (other
// orders, deposits), and a stale cached value risks either quitting early or
// attempting an overdraft.
type BalanceGuard struct {
	cash CashSource
}

func NewBalanceGuard(cash CashSource) *BalanceGuard {
	return &BalanceGuard{cash: cash}
}

// Available returns the current investable cash.
func (g *BalanceGuard) Available(ctx context.Context) (decimal.Decimal, error) {
	return g.cash.AvailableCash(ctx)
}

// CanAfford reports whether the balance covers amount, along with the
// queried balance.
func (g *BalanceGuard) CanAfford(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	available, err := g.cash.AvailableCash(ctx)
	if err != nil {
		return decimal.Zero, false, err
	}
	return available, available.GreaterThanOrEqual(amount), nil
}
