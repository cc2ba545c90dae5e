package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
)

func TestWorker_RetryLogic(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{items: []Job{{ID: "job-retry", Kind: progress.KindCrawl}}}
	// Fails 2 times, succeeds on 3rd attempt
	runner := &fakeRunner{crawlFails: 2}
	clock := &fakeClock{}
	w := New(queue, runner, clock, Config{MaxRetries: 3, RetryBackoffBase: time.Millisecond}, zap.NewNop())

	runWorker(t, w, func() bool { return len(runner.snapshot()) == 3 })

	require.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, clock.slept())
	for _, c := range runner.snapshot() {
		require.Equal(t, "job-retry", c.runID)
	}
}

func TestWorker_RetryExhausted(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{items: []Job{
		{ID: "job-retry-fail", Kind: progress.KindCrawl},
		{ID: "job-next", Kind: progress.KindIndex},
	}}
	// Fails 5 times, max retries is 3
	runner := &fakeRunner{crawlFails: 5}
	clock := &fakeClock{}
	w := New(queue, runner, clock, Config{MaxRetries: 3, RetryBackoffBase: time.Millisecond}, zap.NewNop())

	// Initial attempt + 3 retries = 4 attempts, then the next job runs.
	runWorker(t, w, func() bool { return len(runner.snapshot()) == 5 })

	calls := runner.snapshot()
	for _, c := range calls[:4] {
		require.Equal(t, call{op: "crawl", runID: "job-retry-fail"}, c)
	}
	require.Equal(t, "job-next", calls[4].runID)
	require.Len(t, clock.slept(), 3)
}

func TestWorker_CancelDuringBackoff(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{items: []Job{{ID: "job-cancel", Kind: progress.KindCrawl}}}
	runner := &fakeRunner{crawlFails: 10}
	w := New(queue, runner, &fakeClock{}, Config{MaxRetries: 5}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(runner.snapshot()) >= 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	require.LessOrEqual(t, len(runner.snapshot()), 6)
}
