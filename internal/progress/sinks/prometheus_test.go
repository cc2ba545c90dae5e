package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{RunID: "run-1", Kind: progress.KindCrawl, TS: now, Stage: progress.StageRunStart},
		{RunID: "run-1", Kind: progress.KindCrawl, TS: now, Stage: progress.StagePage, URL: "https://nitjsr.ac.in/", Status: progress.StatusOK},
		{RunID: "run-1", Kind: progress.KindCrawl, TS: now, Stage: progress.StagePage, URL: "https://nitjsr.ac.in/x", Status: progress.StatusFailed},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.InDelta(t, 1, testutil.ToFloat64(sink.runsRunning.WithLabelValues("crawl")), 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(sink.events.WithLabelValues("PAGE", "ok")), 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(sink.events.WithLabelValues("PAGE", "failed")), 0.0001)

	done := []progress.Event{
		{RunID: "run-1", Kind: progress.KindCrawl, TS: now.Add(time.Minute), Stage: progress.StageRunDone, Dur: time.Minute},
	}
	require.NoError(t, sink.Consume(context.Background(), done))
	require.InDelta(t, 1, testutil.ToFloat64(sink.runsStarted.WithLabelValues("crawl")), 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("crawl", "success")), 0.0001)
	require.InDelta(t, 0, testutil.ToFloat64(sink.runsRunning.WithLabelValues("crawl")), 0.0001)
	require.Equal(t, 1, testutil.CollectAndCount(sink.runRuntime))
}

func TestPrometheusSinkIgnoresUnknownCompletion(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "ghost", Kind: progress.KindIndex, TS: time.Now(), Stage: progress.StageRunError, Note: "boom"},
	}))
	require.InDelta(t, 1, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("index", "error")), 0.0001)
	require.InDelta(t, 0, testutil.ToFloat64(sink.runsRunning.WithLabelValues("index")), 0.0001)
}

func TestPrometheusSinkReusesRegisteredCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	second, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, second.Consume(context.Background(), []progress.Event{
		{RunID: "r", Kind: progress.KindCrawl, TS: time.Now(), Stage: progress.StageRunStart},
	}))
	require.InDelta(t, 1, testutil.ToFloat64(first.runsStarted.WithLabelValues("crawl")), 0.0001)
}
