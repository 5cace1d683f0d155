package journal

import (
	"time"

	"gorm.io/datatypes"
)

// RunModel is one completed investment cycle.
type RunModel struct {
	ID            uint   `gorm:"primaryKey"`
	TraceID       string `gorm:"size:64;index"`
	StartedAt     time.Time
	FinishedAt    time.Time
	State         string `gorm:"size:32"`
	Candidates    int
	Fulfilled     int
	Unfulfilled   int
	TotalInvested string `gorm:"size:32"`
	FinalCash     string `gorm:"size:32"`
}

func (RunModel) TableName() string { return "runs" }

// OrderOutcomeModel is the final confirmation state of one requested loan
// within a run. Raw keeps the marketplace's confirmation verbatim for
// later inspection.
type OrderOutcomeModel struct {
	ID             uint   `gorm:"primaryKey"`
	TraceID        string `gorm:"size:64;index"`
	LoanID         int64  `gorm:"index"`
	Grade          string `gorm:"size:8"`
	InvestedAmount string `gorm:"size:32"`
	Fulfilled      bool
	Raw            datatypes.JSON
	CreatedAt      time.Time
}

func (OrderOutcomeModel) TableName() string { return "order_outcomes" }
