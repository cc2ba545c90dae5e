// Package app builds the long-lived services from configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/api"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/chunk"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/clock/system"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/config"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/dispatcher"
	collyfetcher "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/fetcher/colly"
	headlessfetcher "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/fetcher/headless"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/hash/sha256"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/headless/detector"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/id/uuid"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/indexer"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/metrics"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pdf"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pdf/pdfcpu"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pipeline"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/policy/ratelimit"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress/sinks"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/provider/gemini"
	memoryqueue "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/queue/memory"
	openaiprovider "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/provider/openai"
	memorypublisher "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/publisher/memory"
	gcppublisher "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/publisher/pubsub"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/rag"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/snapshot"
	gcsstorage "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/storage/gcs"
	localstorage "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/storage/local"
	memorystorage "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/storage/memory"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/telemetry"
	memoryvectors "github.com/HiiiiiPritam/NITJSR-Chatbot/internal/vectorstore/memory"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/vectorstore/pgvector"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/vectorstore/weaviate"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/worker"
)

// Options selects which parts of the graph a command needs.
type Options struct {
	// Models wires the embedder, generator, vector store, indexer and composer.
	Models bool
	// Crawl wires the renderer, engine and PDF ingestor.
	Crawl bool
}

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	pipeline  *pipeline.Pipeline
	composer  *rag.Composer
	vectors   crawler.VectorStore
	snapshots *snapshot.Store
	progress  *progress.Hub
	runs      *sinks.RunTracker
	clock     crawler.Clock

	closers []func(context.Context) error
}

// Pipeline returns the crawl/index controller.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Composer returns the answer composer, nil unless Options.Models was set.
func (a *App) Composer() *rag.Composer { return a.composer }

// VectorStore returns the configured vector store, nil unless Options.Models was set.
func (a *App) VectorStore() crawler.VectorStore { return a.vectors }

// Snapshots returns the snapshot store.
func (a *App) Snapshots() *snapshot.Store { return a.snapshots }

// Runs returns the tracker of recent crawl and index runs.
func (a *App) Runs() *sinks.RunTracker { return a.runs }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Build creates the application's dependencies. On error everything built so
// far is closed.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	metrics.Init()
	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	clock := system.New()
	a.clock = clock
	if err := a.setupProgress(); err != nil {
		return nil, err
	}
	blobs, err := a.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	a.snapshots, err = snapshot.New(blobs, cfg.Storage.Prefix)
	if err != nil {
		return nil, fmt.Errorf("snapshot store init failed: %w", err)
	}

	deps := pipeline.Deps{
		Snapshots: a.snapshots,
		Clock:     clock,
		IDs:       uuid.New(),
		Progress:  a.progress,
		Logger:    logger,
	}

	if opts.Crawl {
		if err := a.setupCrawl(ctx, clock, &deps); err != nil {
			return nil, err
		}
	}
	if opts.Models {
		if err := a.setupModels(ctx, clock, &deps); err != nil {
			return nil, err
		}
	}

	a.pipeline, err = pipeline.New(pipeline.Config{
		BaseURL: cfg.Site.BaseURL,
		Domain:  cfg.Domain(),
		Topic:   cfg.PubSub.TopicName,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("pipeline init failed: %w", err)
	}
	return a, nil
}

func (a *App) setupProgress() error {
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	a.runs = sinks.NewRunTracker(a.cfg.Jobs.RunRetention)
	a.progress = progress.NewHub(progress.Config{Logger: a.logger}, sinks.NewLogSink(a.logger), promSink, a.runs)
	a.closers = append(a.closers, func(ctx context.Context) error {
		if dropped := a.progress.Dropped(); dropped > 0 {
			a.logger.Warn("progress events dropped", zap.Int64("count", dropped))
		}
		return a.progress.Close(ctx)
	})
	return nil
}

func (a *App) setupStorage(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case config.StorageLocal:
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.LocalDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	default:
		a.logger.Warn("using in-memory storage backend; snapshots do not outlive the process")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupCrawl(ctx context.Context, clock crawler.Clock, deps *pipeline.Deps) error {
	cfg := a.cfg
	classifier, err := crawler.NewClassifier(cfg.Site.BaseURL, cfg.Site.SocialDomains)
	if err != nil {
		return fmt.Errorf("classifier init failed: %w", err)
	}
	a.logger.Debug("crawl scope",
		zap.String("domain", classifier.Domain()),
		zap.Strings("excluded_hosts", classifier.ExcludedHosts()),
	)

	renderer, err := a.setupRenderer()
	if err != nil {
		return err
	}

	engine, err := crawler.NewEngine(crawler.EngineConfig{
		SeedURLs: cfg.Crawler.SeedURLs,
		MaxPages: cfg.Crawler.MaxPages,
		MaxDepth: cfg.Crawler.MaxDepth,
		Features: cfg.Features,
	}, crawler.EngineDeps{
		Classifier: classifier,
		Renderer:   renderer,
		Waiter:     ratelimit.FromDelay(cfg.Crawler.InterPageDelay),
		Clock:      clock,
		Hasher:     sha256.New(),
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("crawl engine init failed: %w", err)
	}
	deps.Engine = engine

	downloader := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.PDF.DownloadTimeout,
		MaxBodyBytes:  cfg.PDF.MaxBytes,
	})
	deps.Ingestor, err = pdf.NewIngestor(pdf.Config{
		MaxDocuments:    cfg.PDF.MaxDocuments,
		DownloadTimeout: cfg.PDF.DownloadTimeout,
	}, downloader, pdfcpu.New(), clock, a.logger)
	if err != nil {
		return fmt.Errorf("pdf ingestor init failed: %w", err)
	}

	if cfg.PubSub.Enabled() {
		publisher, err := gcppublisher.New(ctx, gcppublisher.Config{
			ProjectID: cfg.PubSub.ProjectID,
			TopicID:   cfg.PubSub.TopicName,
		})
		if err != nil {
			return fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return publisher.Close() })
		deps.Publisher = publisher
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.TopicName),
		)
	} else if cfg.PubSub.TopicName != "" {
		deps.Publisher = memorypublisher.New(memorypublisher.WithLogger(a.logger))
		a.logger.Info("no GCP project set; snapshot notifications are logged locally",
			zap.String("topic", cfg.PubSub.TopicName),
		)
	}
	return nil
}

func (a *App) setupRenderer() (crawler.Renderer, error) {
	cfg := a.cfg
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.Crawler.NavigationTimeout,
	})
	if cfg.Crawler.Renderer == config.RendererStatic {
		a.logger.Info("using static renderer", zap.String("user_agent", cfg.Crawler.UserAgent))
		return static, nil
	}

	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: cfg.Crawler.NavigationTimeout,
		SettleDelay:       cfg.Crawler.SettleDelay,
		AutoScroll:        cfg.Features.AutoScroll,
		ScrollPasses:      cfg.Crawler.ScrollPasses,
		ScrollPause:       cfg.Crawler.ScrollPause,
	})
	if err != nil {
		return nil, fmt.Errorf("headless renderer init failed: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		headless.Close()
		return nil
	})
	if cfg.Crawler.Renderer == config.RendererAuto {
		a.logger.Info("using auto renderer", zap.Int("promote_min_words", cfg.Crawler.PromoteMinWords))
		return detector.NewRenderer(static, headless, detector.NewHeuristic(cfg.Crawler.PromoteMinWords), a.logger), nil
	}
	a.logger.Info("using headless renderer", zap.Duration("settle_delay", cfg.Crawler.SettleDelay))
	return headless, nil
}

func (a *App) setupModels(ctx context.Context, clock crawler.Clock, deps *pipeline.Deps) error {
	cfg := a.cfg
	if err := cfg.ValidateModels(); err != nil {
		return err
	}
	embedder, err := newEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return err
	}
	generator, err := newGenerator(ctx, cfg.Generation)
	if err != nil {
		return err
	}
	a.vectors, err = a.setupVectorStore(ctx)
	if err != nil {
		return err
	}

	deps.Store = a.vectors
	deps.Builder, err = chunk.NewBuilder(chunk.Config{
		Size:              cfg.Chunking.Size,
		Overlap:           cfg.Chunking.Overlap,
		MinTextLength:     cfg.Chunking.MinTextLength,
		DirectoryPages:    cfg.Chunking.DirectoryPages,
		MetadataTextLimit: cfg.Chunking.MetadataTextLimit,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("chunk builder init failed: %w", err)
	}
	deps.Indexer, err = indexer.New(indexer.Config{
		BatchSize:         cfg.Indexing.BatchSize,
		BatchDelay:        cfg.Indexing.BatchDelay,
		MetadataTextLimit: cfg.Chunking.MetadataTextLimit,
	}, embedder, a.vectors, clock, a.logger)
	if err != nil {
		return fmt.Errorf("indexer init failed: %w", err)
	}
	a.composer, err = rag.NewComposer(rag.Config{
		TopK:     cfg.Retrieval.TopK,
		SiteName: cfg.Site.Name,
		SiteURL:  cfg.Site.BaseURL,
	}, embedder, a.vectors, generator, nil, a.logger)
	if err != nil {
		return fmt.Errorf("composer init failed: %w", err)
	}
	deps.Composer = a.composer
	return nil
}

func (a *App) setupVectorStore(ctx context.Context) (crawler.VectorStore, error) {
	cfg := a.cfg
	switch cfg.VectorStore.Backend {
	case config.VectorStorePgvector:
		pg := cfg.VectorStore.Pgvector
		store, err := pgvector.New(ctx, pgvector.Config{
			DSN:             pg.DSN,
			Table:           pg.Table,
			Dimension:       cfg.Embedding.Dimension,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: pg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("pgvector store init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		a.logger.Info("using pgvector store", zap.String("table", pg.Table))
		return store, nil
	case config.VectorStoreWeaviate:
		wv := cfg.VectorStore.Weaviate
		store, err := weaviate.New(ctx, weaviate.Config{
			Host:      wv.Host,
			APIKey:    wv.APIKey,
			Class:     wv.Class,
			Dimension: cfg.Embedding.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("weaviate store init failed: %w", err)
		}
		a.logger.Info("using weaviate store", zap.String("host", wv.Host), zap.String("class", wv.Class))
		return store, nil
	default:
		a.logger.Warn("using in-memory vector store; vectors do not outlive the process")
		return memoryvectors.New(cfg.Embedding.Dimension), nil
	}
}

func newEmbedder(ctx context.Context, m config.ModelConfig) (crawler.Embedder, error) {
	switch m.Provider {
	case config.ProviderOpenAI:
		client, err := openaiprovider.New(openaiprovider.Config{
			APIKey:         m.APIKey,
			BaseURL:        m.BaseURL,
			EmbeddingModel: m.Model,
			Dimension:      m.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:         m.APIKey,
			EmbeddingModel: m.Model,
			Dimension:      m.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder init failed: %w", err)
		}
		return client, nil
	}
}

func newGenerator(ctx context.Context, m config.ModelConfig) (crawler.Generator, error) {
	switch m.Provider {
	case config.ProviderOpenAI:
		client, err := openaiprovider.New(openaiprovider.Config{
			APIKey:          m.APIKey,
			BaseURL:         m.BaseURL,
			GenerationModel: m.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		return client, nil
	default:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:          m.APIKey,
			GenerationModel: m.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini generator init failed: %w", err)
		}
		return client, nil
	}
}

// startJobs runs the job workers until ctx ends and returns the dispatcher
// that feeds them. The returned channel closes once every worker stopped.
func (a *App) startJobs(ctx context.Context) (*dispatcher.Dispatcher, <-chan struct{}) {
	jobs := a.cfg.Jobs
	queue := memoryqueue.NewQueue(jobs.QueueCapacity)
	workers := make([]*worker.Worker, 0, max(jobs.Workers, 1))
	for range max(jobs.Workers, 1) {
		workers = append(workers, worker.New(queue, a.pipeline, a.clock, worker.Config{
			MaxRetries:       jobs.MaxRetries,
			RetryBackoffBase: jobs.RetryBackoff,
		}, a.logger))
	}
	d := dispatcher.New(queue, workers, uuid.New("job"), a.clock, a.progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
		queue.Close()
	}()
	a.logger.Info("job workers started", zap.Int("workers", len(workers)), zap.Int("queue_capacity", jobs.QueueCapacity))
	return d, done
}

// Serve runs the HTTP API and the job workers until ctx is canceled, then
// shuts them down.
func (a *App) Serve(ctx context.Context) error {
	if a.composer == nil {
		return errors.New("serve requires the model stack")
	}
	jobsCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	d, jobsDone := a.startJobs(jobsCtx)
	defer func() {
		stopJobs()
		<-jobsDone
	}()

	server := api.NewServer(a.composer, a.vectors, a.pipeline, a.cfg.Server, a.logger, api.WithJobs(d, a.runs))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases every client in reverse construction order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
