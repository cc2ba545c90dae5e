package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitPacesSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://nitjsr.ac.in/a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://nitjsr.ac.in/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://nitjsr.ac.in/"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://other.example/"))
	require.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestLimiterWaitHonorsCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://nitjsr.ac.in/"))
	require.Error(t, l.Wait(ctx, "https://nitjsr.ac.in/"))
}

func TestFromDelayDisabledWhenZero(t *testing.T) {
	t.Parallel()

	l := FromDelay(0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(ctx, "https://nitjsr.ac.in/"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterSharesBucketAcrossWWW(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://www.nitjsr.ac.in/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://NITJSR.ac.in/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestHostKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "nitjsr.ac.in", hostKey("https://www.nitjsr.ac.in/Academic/Notices"))
	require.Equal(t, "nitjsr.ac.in", hostKey("http://nitjsr.ac.in:8080/"))
	require.Equal(t, "unknown", hostKey("/relative/path"))
	require.Equal(t, "unknown", hostKey("::bad"))
}
