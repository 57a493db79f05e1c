package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow_AdmitsUpToCapacityImmediately(t *testing.T) {
	lim := New(30*time.Second, 3, 10*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, lim.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first `capacity` calls must not block")
}

func TestSlidingWindow_BlocksPastCapacityWithinWindow(t *testing.T) {
	lim := New(150*time.Millisecond, 2, 5*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, lim.Wait(ctx))
	require.NoError(t, lim.Wait(ctx))

	start := time.Now()
	require.NoError(t, lim.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond, "the third call must wait for the window to slide")
}

func TestSlidingWindow_RespectsContextCancellation(t *testing.T) {
	lim := New(time.Minute, 1, 0)
	ctx := context.Background()
	require.NoError(t, lim.Wait(ctx))

	cancelCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := lim.Wait(cancelCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSlidingWindow_NoMoreThanCapacityCompletedInAnyWindow(t *testing.T) {
	lim := New(100*time.Millisecond, 5, 2*time.Millisecond)
	ctx := context.Background()

	var completions []time.Time
	for i := 0; i < 12; i++ {
		require.NoError(t, lim.Wait(ctx))
		completions = append(completions, time.Now())
	}

	for i := range completions {
		count := 0
		for j := i; j < len(completions); j++ {
			if completions[j].Sub(completions[i]) < 100*time.Millisecond {
				count++
			}
		}
		assert.LessOrEqual(t, count, 5, "window starting at completion %d admitted more than capacity", i)
	}
}
