// Package ratelimit enforces a minimum spacing between admitted requests,
// either by rejecting requests that arrive too soon or by blocking the
// caller until enough time has passed, depending on configuration.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/copilot-gateway/copilot-api/internal/errors"
)

// Limiter enforces a minimum number of seconds between successive admitted
// requests. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	seconds  int64
	wait     bool
	lastSeen time.Time
	hasSeen  bool
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// New constructs a Limiter. seconds <= 0 disables the limiter entirely.
func New(seconds int64, wait bool) *Limiter {
	return &Limiter{
		seconds: seconds,
		wait:    wait,
		now:     time.Now,
		sleep:   defaultSleep,
	}
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Admit blocks (in wait mode) or returns a 400 bad-request AppError
// (in reject mode) if the configured spacing hasn't elapsed since the
// previous admitted request, then records this request as the new
// baseline.
func (l *Limiter) Admit(ctx context.Context) error {
	if l.seconds <= 0 {
		return nil
	}

	l.mu.Lock()
	now := l.now()
	var elapsed time.Duration
	if l.hasSeen {
		elapsed = now.Sub(l.lastSeen)
	} else {
		elapsed = time.Duration(l.seconds) * time.Second
	}
	minInterval := time.Duration(l.seconds) * time.Second

	if elapsed >= minInterval {
		l.lastSeen = now
		l.hasSeen = true
		l.mu.Unlock()
		return nil
	}

	remaining := minInterval - elapsed
	if !l.wait {
		l.mu.Unlock()
		remainingSeconds := math.Ceil(remaining.Seconds())
		return errors.BadRequest(fmt.Sprintf("rate limit exceeded, retry in %g seconds", remainingSeconds), nil)
	}

	// Wait mode: the decision to proceed is made now, so the new baseline is
	// stamped now — before the sleep, not after it — per the concurrency
	// model's "compares and updates, and releases before any sleep" rule.
	// The lock is released before sleeping so it is never held across an
	// await.
	waitSeconds := time.Duration(math.Ceil(remaining.Seconds())) * time.Second
	l.lastSeen = now.Add(waitSeconds)
	l.hasSeen = true
	l.mu.Unlock()

	return l.sleep(ctx, waitSeconds)
}
