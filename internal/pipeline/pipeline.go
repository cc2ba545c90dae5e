// Package pipeline owns the crawl and index phases and the crawl state machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/chunk"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/indexer"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/linkdb"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pdf"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/rag"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/snapshot"
)

// SnapshotReadyEvent is the event name published after a snapshot is saved.
const SnapshotReadyEvent = "snapshot.ready"

// ErrCrawlInProgress is returned when a crawl is requested while one runs.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// State is the phase of the crawl controller.
type State string

// State values. A crawl moves Idle → Running → DrainingPDFs → Saved → Idle.
const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateDrainingPDFs State = "draining_pdfs"
	StateSaved        State = "saved"
)

// Config carries values recorded in snapshot metadata and notifications.
type Config struct {
	BaseURL string
	Domain  string
	// Topic enables the snapshot-ready notification when non-empty.
	Topic string
}

// Deps are the components the pipeline drives. Publisher, Composer and
// Progress are optional.
type Deps struct {
	Engine    *crawler.Engine
	Ingestor  *pdf.Ingestor
	Snapshots *snapshot.Store
	Builder   *chunk.Builder
	Indexer   *indexer.Indexer
	Store     crawler.VectorStore
	Composer  *rag.Composer
	Publisher crawler.Publisher
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
	Progress  progress.Emitter
	Logger    *zap.Logger
}

// CrawlReport summarizes a finished crawl.
type CrawlReport struct {
	RunID      string             `json:"runId"`
	Snapshot   string             `json:"snapshot"`
	URI        string             `json:"uri"`
	Statistics crawler.Statistics `json:"statistics"`
	Duration   time.Duration      `json:"duration"`
}

// IndexOptions selects the snapshot to index.
type IndexOptions struct {
	// Snapshot names a stored snapshot; empty selects the newest.
	Snapshot string
	// Reset clears the vector store before storing.
	Reset bool
}

// IndexReport summarizes an index run.
type IndexReport struct {
	Snapshot string         `json:"snapshot"`
	Chunks   int            `json:"chunks"`
	Links    int            `json:"links"`
	Result   indexer.Result `json:"result"`
}

// SnapshotReady is the notification payload.
type SnapshotReady struct {
	Event    string    `json:"event"`
	RunID    string    `json:"runId"`
	Snapshot string    `json:"snapshot"`
	URI      string    `json:"uri"`
	Pages    int       `json:"pages"`
	PDFs     int       `json:"pdfs"`
	SavedAt  time.Time `json:"savedAt"`
}

// Pipeline runs crawl and index phases.
type Pipeline struct {
	cfg  Config
	deps Deps

	mu    sync.Mutex
	state State
}

// New validates deps and returns an idle Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Snapshots == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("pipeline")
	return &Pipeline{cfg: cfg, deps: deps, state: StateIdle}, nil
}

// State reports the current crawl phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return ErrCrawlInProgress
	}
	p.state = StateRunning
	return nil
}

func (p *Pipeline) transition(ctx context.Context, s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	progress.Report(ctx, progress.Event{Stage: progress.StagePhase, Note: string(s)})
}

// startRun scopes ctx to a run of kind, reusing the run ID already in ctx
// (set by the job worker) or generating one, and reports the start.
func (p *Pipeline) startRun(ctx context.Context, kind progress.Kind) (context.Context, string, error) {
	if p.deps.Progress != nil {
		ctx = progress.WithEmitter(ctx, p.deps.Progress)
	}
	runID := progress.RunID(ctx)
	if runID == "" {
		var err error
		if runID, err = p.newRunID(); err != nil {
			return ctx, "", err
		}
	}
	ctx = progress.WithRun(ctx, runID, kind)
	progress.Report(ctx, progress.Event{Stage: progress.StageRunStart})
	return ctx, runID, nil
}

func (p *Pipeline) finishRun(ctx context.Context, started time.Time, err error) {
	evt := progress.Event{Stage: progress.StageRunDone, Dur: max(p.deps.Clock.Now().Sub(started), 0)}
	if err != nil {
		evt.Stage = progress.StageRunError
		evt.Note = err.Error()
	}
	progress.Report(ctx, evt)
}

const tracerName = "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pipeline"

// Crawl fetches the site, drains PDFs, saves a snapshot and notifies.
// Only one crawl runs at a time.
func (p *Pipeline) Crawl(ctx context.Context) (CrawlReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Crawl")
	defer span.End()
	report, err := p.crawl(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	span.SetAttributes(
		attribute.String("snapshot", report.Snapshot),
		attribute.Int("pages", report.Statistics.TotalPages),
	)
	return report, nil
}

func (p *Pipeline) crawl(ctx context.Context) (CrawlReport, error) {
	if p.deps.Engine == nil {
		return CrawlReport{}, fmt.Errorf("crawl engine is not configured")
	}
	if err := p.begin(); err != nil {
		return CrawlReport{}, err
	}
	started := p.deps.Clock.Now()
	ctx, runID, err := p.startRun(ctx, progress.KindCrawl)
	if err != nil {
		p.transition(ctx, StateIdle)
		return CrawlReport{}, err
	}
	report, err := p.runCrawl(ctx, runID, started)
	p.finishRun(ctx, started, err)
	p.transition(ctx, StateIdle)
	return report, err
}

func (p *Pipeline) runCrawl(ctx context.Context, runID string, started time.Time) (CrawlReport, error) {
	log := p.deps.Logger.With(zap.String("run_id", runID))
	session := crawler.NewSession(runID, started)

	log.Info("crawl started", zap.String("base_url", p.cfg.BaseURL))
	if err := p.deps.Engine.Run(ctx, session); err != nil {
		return CrawlReport{}, err
	}

	engineCfg := p.deps.Engine.Config()
	if engineCfg.Features.IngestPDFs && p.deps.Ingestor != nil {
		p.transition(ctx, StateDrainingPDFs)
		docs := p.deps.Ingestor.Ingest(ctx, session)
		log.Info("pdfs ingested", zap.Int("pdfs", len(docs)))
		if err := ctx.Err(); err != nil {
			return CrawlReport{}, fmt.Errorf("crawl canceled: %w", err)
		}
	}

	savedAt := p.deps.Clock.Now()
	snap := session.Snapshot(crawler.SnapshotMetadata{
		BaseURL:  p.cfg.BaseURL,
		Domain:   p.cfg.Domain,
		SavedAt:  savedAt,
		MaxPages: engineCfg.MaxPages,
		MaxDepth: engineCfg.MaxDepth,
		Features: engineCfg.Features,
	})
	name, uri, err := p.deps.Snapshots.Save(ctx, snap)
	if err != nil {
		return CrawlReport{}, fmt.Errorf("save snapshot: %w", err)
	}
	p.transition(ctx, StateSaved)
	log.Info("snapshot saved", zap.String("snapshot", name), zap.String("uri", uri))

	p.notify(ctx, log, SnapshotReady{
		Event:    SnapshotReadyEvent,
		RunID:    runID,
		Snapshot: name,
		URI:      uri,
		Pages:    snap.Statistics.TotalPages,
		PDFs:     snap.Statistics.TotalPDFs,
		SavedAt:  savedAt,
	})

	return CrawlReport{
		RunID:      runID,
		Snapshot:   name,
		URI:        uri,
		Statistics: snap.Statistics,
		Duration:   savedAt.Sub(started),
	}, nil
}

func (p *Pipeline) newRunID() (string, error) {
	if p.deps.IDs == nil {
		return p.deps.Clock.Now().UTC().Format("20060102T150405Z"), nil
	}
	id, err := p.deps.IDs.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

// notify is best effort; a failed publish does not fail the crawl.
func (p *Pipeline) notify(ctx context.Context, log *zap.Logger, event SnapshotReady) {
	if p.deps.Publisher == nil || p.cfg.Topic == "" {
		return
	}
	id, err := p.deps.Publisher.Publish(ctx, p.cfg.Topic, event)
	if err != nil {
		log.Warn("snapshot notification failed", zap.Error(err))
		return
	}
	log.Debug("snapshot notification sent", zap.String("message_id", id))
}

// Index loads a snapshot, builds the link database and chunks, stores the
// chunks and hands the link database to the composer.
func (p *Pipeline) Index(ctx context.Context, opts IndexOptions) (IndexReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Index")
	defer span.End()
	report, err := p.index(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	span.SetAttributes(
		attribute.String("snapshot", report.Snapshot),
		attribute.Int("chunks", report.Chunks),
		attribute.Int("stored", report.Result.Stored),
	)
	return report, nil
}

func (p *Pipeline) index(ctx context.Context, opts IndexOptions) (IndexReport, error) {
	if p.deps.Builder == nil || p.deps.Indexer == nil {
		return IndexReport{}, fmt.Errorf("indexer is not configured")
	}
	started := p.deps.Clock.Now()
	ctx, _, err := p.startRun(ctx, progress.KindIndex)
	if err != nil {
		return IndexReport{}, err
	}
	report, err := p.runIndex(ctx, opts)
	p.finishRun(ctx, started, err)
	return report, err
}

func (p *Pipeline) runIndex(ctx context.Context, opts IndexOptions) (IndexReport, error) {
	snap, name, err := p.load(ctx, opts.Snapshot)
	if err != nil {
		return IndexReport{}, err
	}
	log := p.deps.Logger.With(zap.String("snapshot", name))

	links := linkdb.Build(snap)
	chunks := p.deps.Builder.Build(snap)
	log.Info("snapshot prepared", zap.Int("chunks", len(chunks)), zap.Int("links", links.Len()))

	if opts.Reset {
		if p.deps.Store == nil {
			return IndexReport{}, fmt.Errorf("vector store is not configured")
		}
		if err := p.deps.Store.DeleteAll(ctx); err != nil {
			return IndexReport{}, fmt.Errorf("reset vector store: %w", err)
		}
		log.Info("vector store cleared")
	}

	result, err := p.deps.Indexer.Store(ctx, chunks)
	if err != nil {
		return IndexReport{}, err
	}
	if p.deps.Composer != nil {
		p.deps.Composer.SetLinks(links)
	}
	if result.Partial() {
		log.Warn("index stored partially",
			zap.Int("attempted", result.Attempted),
			zap.Int("stored", result.Stored),
			zap.Int("failed_batches", result.FailedBatches),
		)
	}
	return IndexReport{Snapshot: name, Chunks: len(chunks), Links: links.Len(), Result: result}, nil
}

// LoadLinks rebuilds the composer's link database from a stored snapshot
// without re-indexing. A missing snapshot leaves the composer unchanged.
func (p *Pipeline) LoadLinks(ctx context.Context, name string) (int, error) {
	if p.deps.Composer == nil {
		return 0, fmt.Errorf("composer is not configured")
	}
	snap, name, err := p.load(ctx, name)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			p.deps.Logger.Warn("no snapshot available for link database")
			return 0, nil
		}
		return 0, err
	}
	links := linkdb.Build(snap)
	p.deps.Composer.SetLinks(links)
	p.deps.Logger.Info("link database loaded", zap.String("snapshot", name), zap.Int("links", links.Len()))
	return links.Len(), nil
}

func (p *Pipeline) load(ctx context.Context, name string) (crawler.Snapshot, string, error) {
	if name == "" {
		snap, latest, err := p.deps.Snapshots.LoadLatest(ctx)
		if err != nil {
			return crawler.Snapshot{}, "", fmt.Errorf("load latest snapshot: %w", err)
		}
		return snap, latest, nil
	}
	snap, err := p.deps.Snapshots.Load(ctx, name)
	if err != nil {
		return crawler.Snapshot{}, "", fmt.Errorf("load snapshot: %w", err)
	}
	return snap, name, nil
}
