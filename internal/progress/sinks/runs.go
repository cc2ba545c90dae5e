package sinks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
)

const defaultRunRetention = 50

// RunState is the lifecycle state of a tracked run.
type RunState string

// Run states.
const (
	RunQueued    RunState = "queued"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// RunStatus is the aggregated view of one run. A job that crawls and then
// indexes under one ID accumulates both kinds' counters.
type RunStatus struct {
	RunID         string        `json:"runId"`
	Kind          progress.Kind `json:"kind"`
	State         RunState      `json:"state"`
	Phase         string        `json:"phase,omitempty"`
	QueuedAt      *time.Time    `json:"queuedAt,omitempty"`
	StartedAt     *time.Time    `json:"startedAt,omitempty"`
	FinishedAt    *time.Time    `json:"finishedAt,omitempty"`
	Pages         int           `json:"pages"`
	FailedPages   int           `json:"failedPages"`
	Duplicates    int           `json:"duplicatePages"`
	PDFs          int           `json:"pdfs"`
	FailedPDFs    int           `json:"failedPdfs"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failedBatches"`
	Stored        int           `json:"storedChunks"`
	Error         string        `json:"error,omitempty"`
	LastUpdate    time.Time     `json:"lastUpdate"`
}

// RunTracker keeps the most recent runs in memory for the jobs API. Older
// runs are evicted once the retention limit is reached.
type RunTracker struct {
	mu        sync.RWMutex
	runs      map[string]*RunStatus
	order     []string
	retention int
}

// NewRunTracker creates a tracker keeping at most retention runs; zero
// selects the default.
func NewRunTracker(retention int) *RunTracker {
	if retention <= 0 {
		retention = defaultRunRetention
	}
	return &RunTracker{runs: make(map[string]*RunStatus), retention: retention}
}

// Consume folds the batch into the tracked runs.
func (t *RunTracker) Consume(_ context.Context, batch []progress.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, evt := range batch {
		t.apply(evt)
	}
	return nil
}

func (t *RunTracker) apply(evt progress.Event) {
	run := t.runs[evt.RunID]
	if run == nil {
		run = &RunStatus{RunID: evt.RunID, State: RunQueued}
		t.runs[evt.RunID] = run
		t.order = append(t.order, evt.RunID)
		t.evict()
	}
	if evt.Kind != "" {
		run.Kind = evt.Kind
	}
	ts := evt.TS
	run.LastUpdate = ts

	switch evt.Stage {
	case progress.StageRunQueued:
		run.QueuedAt = &ts
	case progress.StageRunStart:
		run.State = RunRunning
		run.FinishedAt = nil
		run.Error = ""
		if run.StartedAt == nil {
			run.StartedAt = &ts
		}
	case progress.StageRunDone:
		run.State = RunSucceeded
		run.FinishedAt = &ts
	case progress.StageRunError:
		run.State = RunFailed
		run.FinishedAt = &ts
		run.Error = evt.Note
	case progress.StagePhase:
		run.Phase = evt.Note
	case progress.StagePage:
		switch evt.Status {
		case progress.StatusOK:
			run.Pages++
		case progress.StatusDuplicate:
			run.Duplicates++
		default:
			run.FailedPages++
		}
	case progress.StagePDF:
		if evt.Status == progress.StatusOK {
			run.PDFs++
		} else {
			run.FailedPDFs++
		}
	case progress.StageBatch:
		run.Batches++
		if evt.Status == progress.StatusOK {
			run.Stored += evt.Count
		} else {
			run.FailedBatches++
		}
	}
}

func (t *RunTracker) evict() {
	for len(t.order) > t.retention {
		delete(t.runs, t.order[0])
		t.order = t.order[1:]
	}
}

// Get returns a copy of the run with id.
func (t *RunTracker) Get(id string) (RunStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[id]
	if !ok {
		return RunStatus{}, false
	}
	return *run, true
}

// List returns the tracked runs, most recently updated first.
func (t *RunTracker) List() []RunStatus {
	t.mu.RLock()
	out := make([]RunStatus, 0, len(t.runs))
	for _, id := range t.order {
		out = append(out, *t.runs[id])
	}
	t.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUpdate.After(out[j].LastUpdate)
	})
	return out
}

// Close implements the Sink interface; it performs no action.
func (t *RunTracker) Close(context.Context) error {
	return nil
}
