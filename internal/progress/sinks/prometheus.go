package sinks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
)

// PrometheusSink exports run-level progress metrics: runs started, completed
// and running, run wall time and per-stage event counts. Per-item counters
// live in the metrics package.
type PrometheusSink struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runsRunning   *prometheus.GaugeVec
	runRuntime    *prometheus.HistogramVec
	events        *prometheus.CounterVec

	tracker *runningSet
}

// NewPrometheusSink registers the collectors against reg. Collectors already
// registered by an earlier sink are reused, so several sinks can share one
// registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{tracker: newRunningSet()}
	var err error
	if s.runsStarted, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_started_total",
		Help: "Total crawl and index runs that have started.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.runsCompleted, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_completed_total",
		Help: "Total runs completed partitioned by kind and result.",
	}, []string{"kind", "result"})); err != nil {
		return nil, err
	}
	if s.runsRunning, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_runs_running",
		Help: "Current number of running runs.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.runRuntime, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_run_runtime_seconds",
		Help:    "Wall time per completed run.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
	}, []string{"kind", "result"})); err != nil {
		return nil, err
	}
	if s.events, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_progress_events_total",
		Help: "Progress events partitioned by stage and status.",
	}, []string{"stage", "status"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register progress collector: %w", err)
	}
	return c, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	kind := string(evt.Kind)
	if kind == "" {
		kind = "unknown"
	}
	s.events.WithLabelValues(string(evt.Stage), evt.Status).Inc()
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.WithLabelValues(kind).Inc()
		if s.tracker.start(evt.RunID, kind) {
			s.runsRunning.WithLabelValues(kind).Inc()
		}
	case progress.StageRunDone:
		s.complete(evt, kind, "success")
	case progress.StageRunError:
		s.complete(evt, kind, "error")
	}
}

func (s *PrometheusSink) complete(evt progress.Event, kind, result string) {
	s.runsCompleted.WithLabelValues(kind, result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(kind, result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID, kind) {
		s.runsRunning.WithLabelValues(kind).Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runningSet struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunningSet() *runningSet {
	return &runningSet{running: make(map[string]struct{})}
}

func (t *runningSet) start(id, kind string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := kind + "/" + id
	if _, ok := t.running[key]; ok {
		return false
	}
	t.running[key] = struct{}{}
	return true
}

func (t *runningSet) complete(id, kind string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := kind + "/" + id
	if _, ok := t.running[key]; !ok {
		return false
	}
	delete(t.running, key)
	return true
}
