package crawler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/metrics"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
)

const categorySampleLen = 500

// EngineConfig bounds a crawl.
type EngineConfig struct {
	SeedURLs []string
	MaxPages int
	MaxDepth int
	Features Features
}

// EngineDeps are the collaborators an Engine drives.
type EngineDeps struct {
	Classifier *Classifier
	Renderer   Renderer
	Waiter     Waiter
	Clock      Clock
	Hasher     Hasher
	Logger     *zap.Logger
}

// Engine runs the single-worker crawl loop.
type Engine struct {
	cfg        EngineConfig
	classifier *Classifier
	renderer   Renderer
	waiter     Waiter
	clock      Clock
	hasher     Hasher
	logger     *zap.Logger
}

// NewEngine validates cfg and deps.
func NewEngine(cfg EngineConfig, deps EngineDeps) (*Engine, error) {
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("max pages must be > 0")
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0")
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if len(cfg.SeedURLs) == 0 {
		cfg.SeedURLs = []string{deps.Classifier.BaseURL()}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		classifier: deps.Classifier,
		renderer:   deps.Renderer,
		waiter:     deps.Waiter,
		clock:      deps.Clock,
		hasher:     deps.Hasher,
		logger:     logger.Named("engine"),
	}, nil
}

// Config returns the crawl bounds.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Run seeds a fresh frontier and fetches until it drains or the page budget
// is spent. Per-page failures are recorded on the session; only context
// cancellation is returned.
func (e *Engine) Run(ctx context.Context, session *Session) error {
	frontier := NewFrontier(e.cfg.MaxPages, e.cfg.MaxDepth)
	for _, seed := range e.cfg.SeedURLs {
		abs, ok := e.classifier.Resolve("", seed)
		if !ok || !e.classifier.IsInDomainAndVisitable(abs) {
			e.logger.Warn("skipping seed outside target site", zap.String("url", seed))
			continue
		}
		frontier.Push(abs, 0)
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("crawl canceled: %w", err)
		}
		item, ok := frontier.Next()
		if !ok {
			break
		}
		e.Fetch(ctx, session, frontier, item)
	}

	stats := session.Statistics()
	e.logger.Info("crawl finished",
		zap.Int("pages", stats.TotalPages),
		zap.Int("failed", stats.FailedPages),
		zap.Int("duplicates", stats.DuplicatePages),
		zap.Int("pdf_links", stats.TotalPDFLinks),
		zap.Int("queued_remaining", frontier.Len()),
	)
	return nil
}

// Fetch renders one URL and folds the result into session, enqueueing newly
// discovered internal links at depth+1. It returns nil on failure or when the
// page duplicates earlier content; a duplicate's links are not followed.
func (e *Engine) Fetch(ctx context.Context, session *Session, frontier *Frontier, item QueueItem) *Page {
	log := e.logger.With(zap.String("url", item.URL), zap.Int("depth", item.Depth))
	if e.waiter != nil {
		if err := e.waiter.Wait(ctx, item.URL); err != nil {
			log.Warn("pacing wait aborted", zap.Error(err))
			session.RecordFailedPage()
			return nil
		}
	}

	rendered, err := e.renderer.Render(ctx, item.URL)
	if err != nil {
		log.Warn("page fetch failed", zap.Error(err))
		session.RecordFailedPage()
		metrics.ObservePage(item.URL, "failed")
		progress.Report(ctx, progress.Event{Stage: progress.StagePage, URL: item.URL, Status: progress.StatusFailed, Note: err.Error()})
		return nil
	}

	page := e.buildPage(item, rendered)

	if e.cfg.Features.DedupeContent {
		if original, dup := session.DuplicateOf(page.ContentHash); dup {
			log.Debug("duplicate content", zap.String("original", original))
			session.RecordDuplicate()
			metrics.ObservePage(item.URL, "duplicate")
			progress.Report(ctx, progress.Event{Stage: progress.StagePage, URL: item.URL, Status: progress.StatusDuplicate})
			return nil
		}
	}

	e.followLinks(session, frontier, page)
	session.AddPage(page)
	metrics.ObservePage(item.URL, "ok")
	progress.Report(ctx, progress.Event{Stage: progress.StagePage, URL: item.URL, Status: progress.StatusOK, Count: page.WordCount})
	log.Info("page captured",
		zap.String("category", string(page.Category)),
		zap.Int("words", page.WordCount),
		zap.Int("links", len(page.RawLinks)),
	)
	return &page
}

func (e *Engine) buildPage(item QueueItem, rendered RenderedPage) Page {
	content := strings.Join(rendered.ContentBlocks, "\n\n")
	page := Page{
		URL:             item.URL,
		Depth:           item.Depth,
		Title:           rendered.Title,
		Headings:        rendered.Headings,
		Content:         content,
		RawLinks:        rendered.RawLinks,
		MetaDescription: rendered.MetaDescription,
		MetaKeywords:    rendered.MetaKeywords,
		WordCount:       len(strings.Fields(content)),
		Timestamp:       e.clock.Now(),
	}
	if e.cfg.Features.ExtractTables {
		page.Tables = rendered.Tables
	}
	if e.cfg.Features.ExtractLists {
		page.Lists = rendered.Lists
	}
	sample := page.Title + " " + page.MetaDescription + " " + TruncateRunes(content, categorySampleLen)
	page.Category = e.classifier.Categorize(page.URL, sample)
	if e.cfg.Features.DedupeContent && e.hasher != nil && content != "" {
		if hash, err := e.hasher.Hash([]byte(content)); err == nil {
			page.ContentHash = hash
		}
	}
	return page
}

func (e *Engine) followLinks(session *Session, frontier *Frontier, page Page) {
	nextDepth := page.Depth + 1
	for _, raw := range page.RawLinks {
		abs, ok := e.classifier.Resolve(page.URL, raw.Href)
		if !ok {
			continue
		}
		kind := e.classifier.LinkKind(abs)
		visitable := kind == LinkInternal && e.classifier.IsInDomainAndVisitable(abs)
		if kind == LinkInternal && !visitable {
			continue
		}
		if e.cfg.Features.TrackLinks || kind == LinkPDF {
			session.RecordLink(LinkRecord{
				URL:         abs,
				Text:        linkText(raw, abs),
				Title:       raw.Title,
				SourceURL:   page.URL,
				SourceTitle: page.Title,
				Context:     raw.Context,
				Kind:        kind,
			})
		}
		if visitable && nextDepth <= frontier.MaxDepth() && !frontier.Visited(abs) {
			frontier.Push(abs, nextDepth)
		}
	}
}

func linkText(raw RawLink, abs string) string {
	switch {
	case raw.Text != "":
		return raw.Text
	case raw.Title != "":
		return raw.Title
	default:
		return PathTail(abs)
	}
}
