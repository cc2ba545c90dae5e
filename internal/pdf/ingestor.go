// Package pdf downloads and decodes PDF documents discovered during a crawl.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/metrics"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress"
)

// DefaultMaxDocuments bounds how many PDFs one crawl ingests.
const DefaultMaxDocuments = 50

// Config bounds ingestion.
type Config struct {
	MaxDocuments    int
	DownloadTimeout time.Duration
}

// Ingestor turns PDF link records into decoded documents.
type Ingestor struct {
	cfg        Config
	downloader crawler.Downloader
	decoder    crawler.PDFDecoder
	clock      crawler.Clock
	logger     *zap.Logger
}

// NewIngestor wires an Ingestor.
func NewIngestor(cfg Config, downloader crawler.Downloader, decoder crawler.PDFDecoder, clock crawler.Clock, logger *zap.Logger) (*Ingestor, error) {
	if downloader == nil {
		return nil, errors.New("downloader is required")
	}
	if decoder == nil {
		return nil, errors.New("decoder is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = DefaultMaxDocuments
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		cfg:        cfg,
		downloader: downloader,
		decoder:    decoder,
		clock:      clock,
		logger:     logger.Named("pdf"),
	}, nil
}

// Ingest processes the session's first MaxDocuments PDF links one at a time
// and appends each decoded document to the session. Failed URLs are logged,
// counted and skipped.
func (i *Ingestor) Ingest(ctx context.Context, session *crawler.Session) []crawler.PDFDocument {
	links := session.PDFLinks()
	if len(links) > i.cfg.MaxDocuments {
		links = links[:i.cfg.MaxDocuments]
	}
	var out []crawler.PDFDocument
	for idx, link := range links {
		if ctx.Err() != nil {
			i.logger.Warn("pdf ingestion interrupted", zap.Int("remaining", len(links)-idx), zap.Error(ctx.Err()))
			break
		}
		doc, err := i.ingestOne(ctx, session, link.URL)
		if err != nil {
			i.logger.Warn("pdf skipped", zap.String("url", link.URL), zap.Error(err))
			session.RecordFailedPDF()
			progress.Report(ctx, progress.Event{Stage: progress.StagePDF, URL: link.URL, Status: progress.StatusFailed, Note: err.Error()})
			if errors.Is(err, crawler.ErrDecode) {
				metrics.ObservePDF("decode_failed")
			} else {
				metrics.ObservePDF("download_failed")
			}
			continue
		}
		session.AddPDF(doc)
		metrics.ObservePDF("ok")
		progress.Report(ctx, progress.Event{Stage: progress.StagePDF, URL: doc.URL, Status: progress.StatusOK, Count: doc.PageCount})
		i.logger.Info("pdf ingested",
			zap.String("url", doc.URL),
			zap.Int("pages", doc.PageCount),
			zap.String("category", string(doc.Category)),
		)
		out = append(out, doc)
	}
	return out
}

func (i *Ingestor) ingestOne(ctx context.Context, session *crawler.Session, url string) (crawler.PDFDocument, error) {
	dlCtx, cancel := context.WithTimeout(ctx, i.cfg.DownloadTimeout)
	defer cancel()
	data, err := i.downloader.Download(dlCtx, url)
	if err != nil {
		return crawler.PDFDocument{}, fmt.Errorf("download pdf: %w", err)
	}
	decoded, err := i.decoder.Decode(ctx, data)
	if err != nil {
		return crawler.PDFDocument{}, fmt.Errorf("decode pdf: %w", err)
	}

	doc := crawler.PDFDocument{
		URL:       url,
		Title:     TitleFromURL(url),
		Text:      decoded.Text,
		PageCount: decoded.PageCount,
		WordCount: len(strings.Fields(decoded.Text)),
		Timestamp: i.clock.Now(),
	}
	if rec, ok := session.LinkByURL(url); ok {
		if rec.Text != "" {
			doc.Title = rec.Text
		}
		doc.SourceURL = rec.SourceURL
		doc.SourceTitle = rec.SourceTitle
		doc.Context = rec.Context
	}
	doc.Category = crawler.Categorize(url, doc.Title+" "+crawler.TruncateRunes(doc.Text, 500))
	return doc, nil
}

// TitleFromURL derives a display title from the file name in rawURL.
func TitleFromURL(rawURL string) string {
	tail := crawler.PathTail(rawURL)
	stem := strings.TrimSuffix(tail, path.Ext(tail))
	title := strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(stem)), " ")
	if title == "" {
		return rawURL
	}
	return title
}
