// Package pacer implements the Mutation Pacer (spec §4.2): the single
// choke point every forge-mutating call must pass through so that no two
// writes — regardless of which worker stream issues them — land closer
// together than T_gap. It is constructed once per process and threaded
// through explicitly (spec §9 Design Notes: "pass a Pacer value through
// construction, never a process-global"), never reached via a package
// singleton.
package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer gates mutating forge calls to at most one per interval.
type Pacer interface {
	// Acquire blocks until it is this caller's turn to mutate, or until
	// ctx is cancelled. A cancelled ctx returns ctx.Err() and does not
	// consume a slot.
	Acquire(ctx context.Context) error
}

// limiterPacer is the production Pacer: a single-slot token bucket
// refilling every interval, so Acquire(ctx) is exactly Wait(ctx) on a
// limiter built with burst 1 (spec's "at most one every T_gap").
type limiterPacer struct {
	limiter *rate.Limiter
}

// New returns a Pacer enforcing interval as the minimum gap between
// successive mutations.
func New(interval time.Duration) Pacer {
	return &limiterPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *limiterPacer) Acquire(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NullPacer never blocks. It exists for unit tests of components that
// take a Pacer but whose test does not care about pacing (spec §9 Design
// Notes test double).
type NullPacer struct{}

func (NullPacer) Acquire(ctx context.Context) error { return ctx.Err() }

// FixedPacer is a deterministic test double that records every Acquire
// call instead of actually sleeping, so tests can assert call order and
// count without real wall-clock delay.
type FixedPacer struct {
	Calls int
}

func (f *FixedPacer) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Calls++
	return nil
}
