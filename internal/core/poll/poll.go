// Package poll drives bounded, fixed-interval status polling
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned once MaxPolls calls finished without a terminal result
var ErrExhausted = errors.New("poll: attempts exhausted")

// Policy fixes the cadence and the cutoff
type Policy struct {
	Interval time.Duration
	MaxPolls int
}

// Default is 30 polls, 10 seconds apart
func Default() Policy { return Policy{Interval: 10 * time.Second, MaxPolls: 30} }

// Normalize fills zero fields from Default
func (p Policy) Normalize() Policy {
	d := Default()
	if p.Interval <= 0 {
		p.Interval = d.Interval
	}
	if p.MaxPolls <= 0 {
		p.MaxPolls = d.MaxPolls
	}
	return p
}

// Exhausted reports whether attempts polls have used up the budget
func (p Policy) Exhausted(attempts int) bool { return attempts >= p.MaxPolls }

// Next is when the poll after one made at now is due
func (p Policy) Next(now time.Time) time.Time { return now.Add(p.Interval) }

// Budget is the longest a full run can wait between the first and last call
func (p Policy) Budget() time.Duration {
	if p.MaxPolls <= 1 {
		return 0
	}
	return time.Duration(p.MaxPolls-1) * p.Interval
}

// newTimer is swapped in tests
var newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Until calls fn right away and then every Interval until fn reports done,
// fn fails, ctx ends or MaxPolls calls have been made
// attempt counts from 1; there is no wait after the last call
func Until[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, bool, error)) (T, error) {
	p = p.Normalize()
	var last T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		v, done, err := fn(ctx, attempt)
		last = v
		if err != nil || done {
			return v, err
		}
		if p.Exhausted(attempt) {
			return last, ErrExhausted
		}

		c, stop := newTimer(p.Interval)
		select {
		case <-ctx.Done():
			stop()
			return last, ctx.Err()
		case <-c:
		}
	}
}
