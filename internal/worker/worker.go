// Package worker executes queued crawl and index jobs against the pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pipeline"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
)

// Job is one unit of queued work. A crawl job with IndexAfterCrawl set
// indexes the snapshot it produced under the same ID.
type Job struct {
	ID              string        `json:"id"`
	Kind            progress.Kind `json:"kind"`
	IndexAfterCrawl bool          `json:"indexAfterCrawl,omitempty"`
	Snapshot        string        `json:"snapshot,omitempty"`
	Reset           bool          `json:"reset,omitempty"`
	SubmittedAt     time.Time     `json:"submittedAt"`
}

// Validate reports whether the job can be executed.
func (j Job) Validate() error {
	switch j.Kind {
	case progress.KindCrawl:
		if j.Snapshot != "" {
			return errors.New("crawl jobs cannot name a snapshot")
		}
	case progress.KindIndex:
		if j.IndexAfterCrawl {
			return errors.New("index jobs cannot index after crawl")
		}
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return nil
}

// Queue hands jobs from submitters to workers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
}

// Runner executes the pipeline phases.
type Runner interface {
	Crawl(ctx context.Context) (pipeline.CrawlReport, error)
	Index(ctx context.Context, opts pipeline.IndexOptions) (pipeline.IndexReport, error)
}

// Config controls Worker behavior.
type Config struct {
	// MaxRetries is the number of extra attempts after a failed job.
	MaxRetries int
	// RetryBackoffBase is doubled on every retry.
	RetryBackoffBase time.Duration
}

// Worker consumes jobs one at a time.
type Worker struct {
	queue  Queue
	runner Runner
	clock  crawler.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(queue Queue, runner Runner, clock crawler.Clock, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Worker{
		queue:  queue,
		runner: runner,
		clock:  clock,
		cfg:    cfg,
		logger: logger.Named("worker"),
	}
}

// Run blocks, consuming jobs until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			if sleepErr := w.clock.Sleep(ctx, w.cfg.RetryBackoffBase); sleepErr != nil {
				return
			}
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	log := w.logger.With(zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))
	if err := job.Validate(); err != nil {
		progress.Report(progress.WithRun(ctx, job.ID, job.Kind), progress.Event{
			Stage: progress.StageRunError,
			Note:  err.Error(),
		})
		log.Error("invalid job", zap.Error(err))
		return
	}
	ctx = progress.WithRun(ctx, job.ID, job.Kind)

	var err error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.cfg.RetryBackoffBase * time.Duration(1<<(attempt-1))
			log.Warn("retrying job", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
			if sleepErr := w.clock.Sleep(ctx, backoff); sleepErr != nil {
				log.Warn("job abandoned", zap.Error(sleepErr))
				return
			}
		}
		if err = w.execute(ctx, job, log); err == nil {
			return
		}
		if ctx.Err() != nil {
			log.Warn("job canceled", zap.Error(err))
			return
		}
	}
	log.Error("job failed", zap.Int("attempts", w.cfg.MaxRetries+1), zap.Error(err))
}

func (w *Worker) execute(ctx context.Context, job Job, log *zap.Logger) error {
	if job.Kind == progress.KindIndex {
		report, err := w.runner.Index(ctx, pipeline.IndexOptions{Snapshot: job.Snapshot, Reset: job.Reset})
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}
		log.Info("index job finished", zap.String("snapshot", report.Snapshot), zap.Int("stored", report.Result.Stored))
		return nil
	}

	report, err := w.runner.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	log.Info("crawl job finished", zap.String("snapshot", report.Snapshot), zap.Int("pages", report.Statistics.TotalPages))
	if !job.IndexAfterCrawl {
		return nil
	}
	indexed, err := w.runner.Index(ctx, pipeline.IndexOptions{Snapshot: report.Snapshot, Reset: job.Reset})
	if err != nil {
		// The snapshot is saved; a retry re-crawls, so index failures are
		// reported without another attempt.
		log.Error("post-crawl index failed", zap.String("snapshot", report.Snapshot), zap.Error(err))
		return nil
	}
	log.Info("post-crawl index finished", zap.Int("stored", indexed.Result.Stored))
	return nil
}
