// Package ratelimit provides a minimal client-side call gate.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Gate spaces calls at least MinInterval apart. The marketplace imposes one
// aggregate limit across all of its endpoints, so a single Gate instance is
// shared by every method of a client.
type Gate struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    time.Time

	nowFn   func() time.Time
	sleepFn func(context.Context, time.Duration) error
}

func NewGate(minInterval time.Duration) *Gate {
	return &Gate{
		minInterval: minInterval,
		nowFn:       time.Now,
		sleepFn:     sleepCtx,
	}
}

// Wait blocks until at least MinInterval has passed since the previous call,
// then records the call time. It returns early with ctx.Err() on cancellation.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.minInterval <= 0 {
		return nil
	}
	g.mu.Lock()
	now := g.nowFn()
	wait := g.minInterval - now.Sub(g.lastCall)
	if wait > 0 {
		g.mu.Unlock()
		if err := g.sleepFn(ctx, wait); err != nil {
			return err
		}
		g.mu.Lock()
	}
	g.lastCall = g.nowFn()
	g.mu.Unlock()
	return nil
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
