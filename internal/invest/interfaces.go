package invest

import (
	"context"

	"github.com/shopspring/decimal"

	"pickvest/internal/lendingclub"
)

// OrderSubmitter places batch purchase orders with the marketplace.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, loanIDs []int64, amountPerLoan decimal.Decimal, portfolioID *int64) (lendingclub.OrderResult, error)
}

// CashSource answers fresh available-cash queries.
type CashSource interface {
	AvailableCash(ctx context.Context) (decimal.Decimal, error)
}

// OutcomeReporter receives best-effort reports of investment outcomes.
type OutcomeReporter interface {
	Report(ctx context.Context, confirmations []lendingclub.OrderConfirmation) error
}
