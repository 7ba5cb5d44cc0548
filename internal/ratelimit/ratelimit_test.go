package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterDisabledWhenZero(t *testing.T) {
	l := New(0, false)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(context.Background()))
	}
}

func TestLimiterRejectsWithinWindow(t *testing.T) {
	l := New(10, false)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	require.NoError(t, l.Admit(context.Background()))

	l.now = func() time.Time { return fixed.Add(2 * time.Second) }
	err := l.Admit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestLimiterWaitModeSleepsCeilRounded(t *testing.T) {
	l := New(10, true)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	var slept time.Duration
	l.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	require.NoError(t, l.Admit(context.Background()))

	l.now = func() time.Time { return fixed.Add(3*time.Second + 200*time.Millisecond) }
	require.NoError(t, l.Admit(context.Background()))

	// 10s window, 3.2s elapsed -> 6.8s remaining, ceil'd to 7s.
	assert.Equal(t, 7*time.Second, slept)
}
