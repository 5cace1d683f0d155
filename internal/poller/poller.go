// Package poller implements the rate-limited polling loop and the snapshot
// change detector that drive the investment cycle.
package poller

import (
	"context"
	"errors"
	"time"

	"pickvest/internal/logger"
	"pickvest/internal/pkg/apierr"
)

var (
	// ErrPollTimeout reports that the poll window elapsed before the caller's
	// stopping condition was met. The cycle must abort rather than act on
	// stale data.
	ErrPollTimeout = errors.New("poll timeout")

	// ErrPollCancelled reports an operator abort. No further fetches are
	// issued once it is returned.
	ErrPollCancelled = errors.New("poll cancelled")
)

// FetchFunc is one attempt to fetch a value from a collaborator.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Options tune a Poller. Zero values fall back to defaults.
type Options struct {
	// MinInterval is the minimum spacing between consecutive fetches. The
	// aggregate call rate must never exceed the collaborator's limit.
	MinInterval time.Duration

	// ErrBackoff is the fixed sleep after a transient error.
	ErrBackoff time.Duration

	// MaxWait bounds the total wall-clock time spent polling. Zero means
	// unbounded.
	MaxWait time.Duration
}

const (
	defaultMinInterval = time.Second
	defaultErrBackoff  = 2 * time.Second
)

// Poller repeatedly invokes a fetch operation no faster than MinInterval,
// backing off on transient errors. One Poller instance is owned by a single
// caller for its lifetime; its state (last fetch time, attempt count,
// deadline) is not shared.
type Poller[T any] struct {
	name  string
	fetch FetchFunc[T]
	opts  Options

	nowFn   func() time.Time
	sleepFn func(context.Context, time.Duration) error

	started   bool
	deadline  time.Time
	lastFetch time.Time
	attempts  int
}

// New constructs a Poller over fetch. The name only appears in logs.
func New[T any](name string, fetch FetchFunc[T], opts Options) *Poller[T] {
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.ErrBackoff <= 0 {
		opts.ErrBackoff = defaultErrBackoff
	}
	return &Poller[T]{
		name:    name,
		fetch:   fetch,
		opts:    opts,
		nowFn:   time.Now,
		sleepFn: sleepCtx,
	}
}

// Attempts reports how many fetches have been issued so far.
func (p *Poller[T]) Attempts() int { return p.attempts }

// Next blocks until the next successful fetch and returns its result.
//
// Transient errors are logged and retried after ErrBackoff. Unrecognized
// errors are logged at critical severity and retried as well: for an
// unattended job, a loop that stops polling is a worse outcome than one that
// logs noise. Only three things end the sequence: a non-retryable error
// (e.g. a malformed response, which retrying cannot fix), cancellation
// (ErrPollCancelled), and the MaxWait deadline (ErrPollTimeout).
func (p *Poller[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if !p.started {
		p.started = true
		if p.opts.MaxWait > 0 {
			p.deadline = p.nowFn().Add(p.opts.MaxWait)
		}
	}
	for {
		if ctx.Err() != nil {
			return zero, ErrPollCancelled
		}
		if !p.deadline.IsZero() && p.nowFn().After(p.deadline) {
			return zero, ErrPollTimeout
		}

		if !p.lastFetch.IsZero() {
			if wait := p.opts.MinInterval - p.nowFn().Sub(p.lastFetch); wait > 0 {
				if err := p.sleepFn(ctx, wait); err != nil {
					return zero, ErrPollCancelled
				}
			}
		}
		p.lastFetch = p.nowFn()
		p.attempts++
		if p.attempts%10 == 0 {
			logger.Debugf("%s: poll attempt %d", p.name, p.attempts)
		}

		value, err := p.fetch(ctx)
		if err == nil {
			return value, nil
		}

		switch {
		case errors.Is(err, context.Canceled), ctx.Err() != nil:
			return zero, ErrPollCancelled
		case apierr.IsNonRetryable(err):
			return zero, err
		case apierr.IsTransient(err):
			logger.Errorf("%s: transient error, backing off %s: %v", p.name, p.opts.ErrBackoff, err)
		default:
			logger.Criticalf("%s: unexpected error, continuing: %v", p.name, err)
		}
		if err := p.sleepFn(ctx, p.opts.ErrBackoff); err != nil {
			return zero, ErrPollCancelled
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
