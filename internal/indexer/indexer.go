// Package indexer embeds document chunks and upserts them in paced batches.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/metrics"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
)

// Defaults for Config.
const (
	DefaultBatchSize         = 5
	DefaultBatchDelay        = 2 * time.Second
	DefaultMetadataTextLimit = 1000
)

// Config controls batching. Zero values take the defaults above.
type Config struct {
	BatchSize         int
	BatchDelay        time.Duration
	MetadataTextLimit int
}

// Result separates what was attempted from what landed in the store.
type Result struct {
	Attempted     int `json:"attempted"`
	Stored        int `json:"stored"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failedBatches"`
}

// Partial reports whether some chunks were not stored.
func (r Result) Partial() bool {
	return r.Stored < r.Attempted
}

// Indexer drives embedding and upserts.
type Indexer struct {
	cfg      Config
	embedder crawler.Embedder
	store    crawler.VectorStore
	clock    crawler.Clock
	logger   *zap.Logger
}

// New wires an Indexer.
func New(cfg Config, embedder crawler.Embedder, store crawler.VectorStore, clock crawler.Clock, logger *zap.Logger) (*Indexer, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		return nil, errors.New("batch delay must be >= 0")
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if cfg.MetadataTextLimit <= 0 {
		cfg.MetadataTextLimit = DefaultMetadataTextLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		clock:    clock,
		logger:   logger.Named("indexer"),
	}, nil
}

// Store embeds and upserts chunks batch by batch. A failed batch is logged
// and skipped; only cancellation of ctx is returned as an error, alongside
// the partial result so far.
func (ix *Indexer) Store(ctx context.Context, chunks []crawler.DocumentChunk) (Result, error) {
	res := Result{Attempted: len(chunks)}
	for start := 0; start < len(chunks); start += ix.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("store canceled: %w", err)
		}
		end := min(start+ix.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]
		batchNo := res.Batches + 1
		res.Batches++

		if err := ix.storeBatch(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("store canceled: %w", ctx.Err())
			}
			res.FailedBatches++
			metrics.ObserveBatch("failed", 0)
			progress.Report(ctx, progress.Event{Stage: progress.StageBatch, Status: progress.StatusFailed, Note: err.Error()})
			ix.logger.Warn("batch failed",
				zap.Int("batch", batchNo),
				zap.String("first_id", batch[0].ID),
				zap.Error(err),
			)
		} else {
			res.Stored += len(batch)
			metrics.ObserveBatch("ok", len(batch))
			progress.Report(ctx, progress.Event{Stage: progress.StageBatch, Status: progress.StatusOK, Count: len(batch)})
			ix.logger.Debug("batch stored", zap.Int("batch", batchNo), zap.Int("size", len(batch)))
		}

		if end < len(chunks) {
			if err := ix.clock.Sleep(ctx, ix.cfg.BatchDelay); err != nil {
				return res, fmt.Errorf("store canceled: %w", err)
			}
		}
	}

	ix.logger.Info("index store finished",
		zap.Int("attempted", res.Attempted),
		zap.Int("stored", res.Stored),
		zap.Int("failed_batches", res.FailedBatches),
	)
	return res, nil
}

func (ix *Indexer) storeBatch(ctx context.Context, batch []crawler.DocumentChunk) error {
	records := make([]crawler.VectorRecord, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range batch {
		g.Go(func() error {
			vec, err := ix.embedder.Embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed %s: %w", c.ID, err)
			}
			meta := c.Metadata
			meta.Text = crawler.TruncateRunes(meta.Text, ix.cfg.MetadataTextLimit)
			records[i] = crawler.VectorRecord{ID: c.ID, Values: vec, Metadata: meta}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ix.store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	return nil
}
