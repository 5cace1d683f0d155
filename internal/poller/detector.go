package poller

import (
	"time"

	"context"

	"pickvest/internal/logger"
)

// Snapshot is a fetch result carrying its as-of timestamp.
type Snapshot interface {
	AsOf() time.Time
}

// WaitForNew pulls from p until a snapshot's timestamp strictly exceeds
// baseline, then returns that snapshot. A zero baseline means "wait for the
// next change": the first fetched snapshot only establishes the baseline.
//
// ErrPollTimeout from the underlying poller is surfaced unchanged; acting on
// stale data is worse than skipping the cycle.
func WaitForNew[T Snapshot](ctx context.Context, p *Poller[T], baseline time.Time) (T, error) {
	var zero T
	if baseline.IsZero() {
		current, err := p.Next(ctx)
		if err != nil {
			return zero, err
		}
		baseline = current.AsOf()
		logger.Debugf("%s: baseline set to %s", p.name, baseline.Format(time.RFC3339))
	}

	lastSeen := time.Time{}
	for {
		snap, err := p.Next(ctx)
		if err != nil {
			return zero, err
		}
		asOf := snap.AsOf()
		// Upstream timestamps are expected to be monotonic non-decreasing; a
		// regression is a data-quality anomaly, not a crash.
		if !lastSeen.IsZero() && asOf.Before(lastSeen) {
			logger.Warnf("%s: snapshot timestamp went backwards (%s -> %s)",
				p.name, lastSeen.Format(time.RFC3339), asOf.Format(time.RFC3339))
		}
		lastSeen = asOf
		if asOf.After(baseline) {
			logger.Infof("%s: new snapshot detected as_of=%s after %d polls",
				p.name, asOf.Format(time.RFC3339), p.attempts)
			return snap, nil
		}
	}
}
