// Package dispatcher accepts jobs and fans queued work out to workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue    worker.Queue
	workers  []*worker.Worker
	ids      crawler.IDGenerator
	clock    crawler.Clock
	progress progress.Emitter
}

// New creates a Dispatcher. em may be nil.
func New(queue worker.Queue, workers []*worker.Worker, ids crawler.IDGenerator, clock crawler.Clock, em progress.Emitter) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		workers:  workers,
		ids:      ids,
		clock:    clock,
		progress: em,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.progress != nil {
		ctx = progress.WithEmitter(ctx, d.progress)
	}
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit validates job, assigns its ID and queues it. The returned ID
// identifies the run in progress reports.
func (d *Dispatcher) Submit(ctx context.Context, job worker.Job) (string, error) {
	if err := job.Validate(); err != nil {
		return "", fmt.Errorf("invalid job: %w", err)
	}
	if job.ID == "" {
		id, err := d.ids.NewID()
		if err != nil {
			return "", fmt.Errorf("generate job id: %w", err)
		}
		job.ID = id
	}
	job.SubmittedAt = d.clock.Now().UTC()

	runCtx := progress.WithRun(ctx, job.ID, job.Kind)
	if d.progress != nil {
		runCtx = progress.WithEmitter(runCtx, d.progress)
	}
	progress.Report(runCtx, progress.Event{Stage: progress.StageRunQueued, TS: job.SubmittedAt})
	if err := d.queue.Enqueue(ctx, job); err != nil {
		progress.Report(runCtx, progress.Event{Stage: progress.StageRunError, Note: "not queued: " + err.Error()})
		return "", fmt.Errorf("queue enqueue: %w", err)
	}
	return job.ID, nil
}
