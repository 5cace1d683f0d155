package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stamped struct {
	asOf  time.Time
	value string
}

func (s stamped) AsOf() time.Time { return s.asOf }

func stampedPoller(results []stamped) *Poller[stamped] {
	i := 0
	p := New("feed", func(ctx context.Context) (stamped, error) {
		r := results[i]
		if i < len(results)-1 {
			i++
		}
		return r, nil
	}, Options{MinInterval: time.Second})
	now := time.Unix(20000, 0)
	p.nowFn = func() time.Time { return now }
	p.sleepFn = func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	return p
}

func TestWaitForNew(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	t.Run("Returns Snapshot Strictly After Baseline", func(t *testing.T) {
		p := stampedPoller([]stamped{
			{asOf: base, value: "stale"},
			{asOf: base, value: "stale"},
			{asOf: base.Add(time.Hour), value: "fresh"},
		})

		snap, err := WaitForNew(context.Background(), p, base)
		assert.NoError(t, err)
		assert.Equal(t, "fresh", snap.value)
	})

	t.Run("Equal Timestamp Is Not New", func(t *testing.T) {
		p := stampedPoller([]stamped{
			{asOf: base, value: "same"},
			{asOf: base.Add(time.Minute), value: "newer"},
		})

		snap, err := WaitForNew(context.Background(), p, base)
		assert.NoError(t, err)
		assert.Equal(t, "newer", snap.value)
	})

	t.Run("Zero Baseline Primes From First Fetch", func(t *testing.T) {
		p := stampedPoller([]stamped{
			{asOf: base, value: "baseline"},
			{asOf: base, value: "baseline"},
			{asOf: base.Add(time.Minute), value: "change"},
		})

		snap, err := WaitForNew(context.Background(), p, time.Time{})
		assert.NoError(t, err)
		assert.Equal(t, "change", snap.value, "the priming snapshot itself must not be returned")
	})

	t.Run("Timeout Propagates", func(t *testing.T) {
		p := stampedPoller([]stamped{{asOf: base, value: "stale"}})
		p.opts.MaxWait = 5 * time.Second

		_, err := WaitForNew(context.Background(), p, base)
		assert.ErrorIs(t, err, ErrPollTimeout)
	})
}
