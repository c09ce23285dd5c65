// Package probe checks whether a MySQL endpoint answers, polling until a
// bounded timeout. Probing never wraps a data transfer.
package probe

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"dbshuttle/internal/config"
)

// Polling parameters
const (
	DefaultInterval = time.Second
	MinTimeout      = time.Second
	MinAttempt      = 500 * time.Millisecond // floor for the budget of any single attempt
)

// Pinger performs one liveness check against an endpoint
type Pinger interface {
	Ping(ctx context.Context, ep config.Endpoint) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context, ep config.Endpoint) error

// Ping calls f
func (f PingerFunc) Ping(ctx context.Context, ep config.Endpoint) error {
	return f(ctx, ep)
}

// Result describes one Probe call
type Result struct {
	Reachable bool
	Attempts  int
	Elapsed   time.Duration
	LastErr   error
}

// Prober polls at a fixed interval
type Prober struct {
	Interval time.Duration
}

// Probe polls ep with the default one-second interval
func Probe(ctx context.Context, pinger Pinger, ep config.Endpoint, timeout time.Duration) Result {
	return (&Prober{Interval: DefaultInterval}).Probe(ctx, pinger, ep, timeout)
}

// Probe attempts a ping at t=0 and then once per interval. It succeeds on the
// first good attempt and gives up once the elapsed time since the first
// attempt reaches timeout. Each attempt is bounded by the remaining budget,
// but never by less than MinAttempt, so the attempt made at the deadline
// still reaches the server. A timeout below MinTimeout is raised to MinTimeout.
func (p *Prober) Probe(ctx context.Context, pinger Pinger, ep config.Endpoint, timeout time.Duration) Result {
	if timeout < MinTimeout {
		timeout = MinTimeout
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	deadline := start.Add(timeout)
	var res Result

	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	defer ticker.Stop()

	for range ticker.C {
		res.Attempts++

		attemptDeadline := deadline
		if floor := time.Now().Add(MinAttempt); attemptDeadline.Before(floor) {
			attemptDeadline = floor
		}
		attemptCtx, cancel := context.WithDeadline(ctx, attemptDeadline)
		err := pinger.Ping(attemptCtx, ep)
		cancel()

		res.Elapsed = time.Since(start)
		if err == nil {
			res.Reachable = true
			res.LastErr = nil
			return res
		}
		res.LastErr = err

		if res.Elapsed >= timeout {
			return res
		}
	}

	// The ticker only closes early when ctx is done
	res.Elapsed = time.Since(start)
	if res.LastErr == nil {
		res.LastErr = ctx.Err()
	}
	if res.LastErr == nil {
		res.LastErr = errors.New("probe stopped")
	}
	return res
}
