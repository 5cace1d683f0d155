// Package schedule provides the pre-hour alignment wait. The underwriter
// publishes new picks on the hour, so the investor sleeps until shortly
// before the boundary and starts polling from there.
package schedule

import (
	"context"
	"time"

	"pickvest/internal/logger"
)

// HourAligner waits until Offset before the next top of the hour.
type HourAligner struct {
	// Offset is how long before the hour boundary to wake (e.g. 5s wakes
	// at hh:59:55).
	Offset time.Duration

	nowFn func() time.Time
}

func NewHourAligner(offset time.Duration) *HourAligner {
	if offset < 0 {
		offset = 0
	}
	return &HourAligner{Offset: offset, nowFn: time.Now}
}

// NextMark returns the next wake-up instant strictly after now.
func (a *HourAligner) NextMark(now time.Time) time.Time {
	mark := now.Truncate(time.Hour).Add(time.Hour - a.Offset)
	if !mark.After(now) {
		mark = mark.Add(time.Hour)
	}
	return mark
}

// Wait sleeps until the next mark. It returns ctx.Err() on cancellation.
func (a *HourAligner) Wait(ctx context.Context) error {
	now := a.nowFn()
	mark := a.NextMark(now)
	wait := mark.Sub(now)
	logger.Infof("schedule: sleeping %s until %s", wait.Truncate(time.Second), mark.Format(time.RFC3339))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
