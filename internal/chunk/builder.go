// Package chunk turns a crawl snapshot into embedding-ready text chunks.
package chunk

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

// Defaults for Config.
const (
	DefaultSize              = 1200
	DefaultOverlap           = 300
	DefaultMinTextLength     = 100
	DefaultDirectoryPages    = 50
	DefaultMetadataTextLimit = 1000

	LinksDirectoryID = "links-directory"
	statsIDLayout    = "20060102T150405Z"
)

// Config tunes chunk construction.
type Config struct {
	Size              int
	Overlap           int
	MinTextLength     int
	DirectoryPages    int
	MetadataTextLimit int
}

// Builder assembles chunks from a snapshot.
type Builder struct {
	cfg      Config
	splitter *Splitter
	logger   *zap.Logger
}

// NewBuilder fills defaults and validates the splitter bounds.
func NewBuilder(cfg Config, logger *zap.Logger) (*Builder, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.MinTextLength == 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.DirectoryPages == 0 {
		cfg.DirectoryPages = DefaultDirectoryPages
	}
	if cfg.MetadataTextLimit == 0 {
		cfg.MetadataTextLimit = DefaultMetadataTextLimit
	}
	splitter, err := NewSplitter(cfg.Size, cfg.Overlap, nil)
	if err != nil {
		return nil, fmt.Errorf("build splitter: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, splitter: splitter, logger: logger.Named("chunk")}, nil
}

// Build emits page chunks, PDF chunks, one links-directory chunk when any
// links exist, and one statistics chunk, in that order.
func (b *Builder) Build(snap crawler.Snapshot) []crawler.DocumentChunk {
	var out []crawler.DocumentChunk
	skipped := 0

	for i, p := range snap.Pages {
		text := PageText(p)
		if runeLen(text) <= b.cfg.MinTextLength {
			skipped++
			continue
		}
		out = append(out, b.split(fmt.Sprintf("page-%d", i), text, crawler.ChunkMetadata{
			SourceKind: crawler.SourcePage,
			URL:        p.URL,
			Title:      p.Title,
			Category:   p.Category,
			HasTables:  len(p.Tables) > 0,
			HasLists:   len(p.Lists) > 0,
			HasLinks:   len(p.RawLinks) > 0,
		})...)
	}

	for i, d := range snap.Documents.PDFs {
		if strings.TrimSpace(d.Text) == "" {
			skipped++
			continue
		}
		out = append(out, b.split(fmt.Sprintf("pdf-%d", i), PDFText(d), crawler.ChunkMetadata{
			SourceKind: crawler.SourcePDF,
			URL:        d.URL,
			Title:      d.Title,
			Category:   d.Category,
			PageCount:  d.PageCount,
			SourceURL:  d.SourceURL,
		})...)
	}

	if dir, ok := b.linksDirectory(snap.Links); ok {
		out = append(out, dir)
	}
	out = append(out, b.statistics(snap))

	b.logger.Info("chunks built",
		zap.Int("chunks", len(out)),
		zap.Int("pages", len(snap.Pages)),
		zap.Int("pdfs", len(snap.Documents.PDFs)),
		zap.Int("skipped", skipped),
	)
	return out
}

func (b *Builder) split(prefix, text string, meta crawler.ChunkMetadata) []crawler.DocumentChunk {
	pieces := b.splitter.Split(text)
	out := make([]crawler.DocumentChunk, 0, len(pieces))
	for j, piece := range pieces {
		m := meta
		m.ChunkIndex = j
		m.TotalChunks = len(pieces)
		m.Text = crawler.TruncateRunes(piece, b.cfg.MetadataTextLimit)
		out = append(out, crawler.DocumentChunk{
			ID:       fmt.Sprintf("%s-chunk-%d", prefix, j),
			Text:     piece,
			Metadata: m,
		})
	}
	return out
}

func (b *Builder) linksDirectory(links crawler.Links) (crawler.DocumentChunk, bool) {
	internal := links.Internal
	if len(internal) > b.cfg.DirectoryPages {
		internal = internal[:b.cfg.DirectoryPages]
	}
	if len(links.PDF) == 0 && len(internal) == 0 {
		return crawler.DocumentChunk{}, false
	}

	var sb strings.Builder
	sb.WriteString("Links Directory\n")
	if len(links.PDF) > 0 {
		sb.WriteString("\nPDF Documents:\n")
		for _, l := range links.PDF {
			fmt.Fprintf(&sb, "- %s: %s\n", displayText(l), l.URL)
		}
	}
	if len(internal) > 0 {
		sb.WriteString("\nWeb Pages:\n")
		for _, l := range internal {
			fmt.Fprintf(&sb, "- %s: %s\n", displayText(l), l.URL)
		}
	}
	text := strings.TrimSpace(sb.String())
	return crawler.DocumentChunk{
		ID:   LinksDirectoryID,
		Text: text,
		Metadata: crawler.ChunkMetadata{
			SourceKind:  crawler.SourceLinks,
			Title:       "Links Directory",
			Category:    crawler.CategoryGeneral,
			TotalChunks: 1,
			HasLinks:    true,
			Text:        crawler.TruncateRunes(text, b.cfg.MetadataTextLimit),
		},
	}, true
}

func (b *Builder) statistics(snap crawler.Snapshot) crawler.DocumentChunk {
	stats := snap.Statistics
	when := snap.Metadata.SavedAt.UTC()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Website Statistics for %s\n", orUnknown(snap.Metadata.Domain))
	fmt.Fprintf(&sb, "Crawled at: %s\n\n", when.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&sb, "Total pages: %d\n", stats.TotalPages)
	fmt.Fprintf(&sb, "Total PDF documents: %d\n", stats.TotalPDFs)
	fmt.Fprintf(&sb, "Total words: %d\n", stats.TotalWords)
	fmt.Fprintf(&sb, "Internal links: %d\n", stats.TotalInternalLinks)
	fmt.Fprintf(&sb, "External links: %d\n", stats.TotalExternalLinks)
	fmt.Fprintf(&sb, "PDF links: %d\n", stats.TotalPDFLinks)
	fmt.Fprintf(&sb, "Image links: %d\n", stats.TotalImageLinks)
	fmt.Fprintf(&sb, "Failed pages: %d\n", stats.FailedPages)
	fmt.Fprintf(&sb, "Failed PDFs: %d\n", stats.FailedPDFs)
	fmt.Fprintf(&sb, "Duplicate pages: %d\n", stats.DuplicatePages)
	sb.WriteString("\nCategory breakdown:\n")
	for _, c := range crawler.Categories {
		fmt.Fprintf(&sb, "- %s: %d\n", c, stats.CategoryCounts[c])
	}
	text := strings.TrimSpace(sb.String())

	return crawler.DocumentChunk{
		ID:   "statistics-" + when.Format(statsIDLayout),
		Text: text,
		Metadata: crawler.ChunkMetadata{
			SourceKind:  crawler.SourceStatistics,
			URL:         snap.Metadata.BaseURL,
			Title:       "Website Statistics",
			Category:    crawler.CategoryGeneral,
			TotalChunks: 1,
			Text:        crawler.TruncateRunes(text, b.cfg.MetadataTextLimit),
		},
	}
}

// PageText assembles the embeddable text of a page. Empty fields are left out.
func PageText(p crawler.Page) string {
	var fields []string
	add := func(label, body string) {
		if body = strings.TrimSpace(body); body != "" {
			fields = append(fields, label+body)
		}
	}

	add("Title: ", p.Title)
	var headings []string
	for _, h := range p.Headings {
		headings = append(headings, fmt.Sprintf("H%d: %s", h.Level, h.Text))
	}
	add("Headings:\n", strings.Join(headings, "\n"))
	add("Content:\n", p.Content)

	var tables []string
	for _, table := range p.Tables {
		rows := make([]string, 0, len(table))
		for _, row := range table {
			rows = append(rows, strings.Join(row, " | "))
		}
		tables = append(tables, strings.Join(rows, "\n"))
	}
	add("Tables:\n", strings.Join(tables, "\n\n"))

	var lists []string
	for _, list := range p.Lists {
		items := make([]string, 0, len(list))
		for _, item := range list {
			items = append(items, "- "+item)
		}
		lists = append(lists, strings.Join(items, "\n"))
	}
	add("Lists:\n", strings.Join(lists, "\n\n"))
	add("Description: ", p.MetaDescription)
	add("Keywords: ", p.MetaKeywords)

	return strings.Join(fields, "\n\n")
}

// PDFText assembles the embeddable text of a PDF document.
func PDFText(d crawler.PDFDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PDF Document: %s\n", d.Title)
	fmt.Fprintf(&sb, "URL: %s\n", d.URL)
	fmt.Fprintf(&sb, "Category: %s\n", d.Category)
	fmt.Fprintf(&sb, "Pages: %d\n", d.PageCount)
	if d.SourceURL != "" {
		fmt.Fprintf(&sb, "Source Page: %s (%s)\n", orUnknown(d.SourceTitle), d.SourceURL)
	}
	sb.WriteString("\nContent:\n")
	sb.WriteString(strings.TrimSpace(d.Text))
	return sb.String()
}

func displayText(l crawler.LinkRecord) string {
	if l.Text != "" {
		return l.Text
	}
	if l.Title != "" {
		return l.Title
	}
	return crawler.PathTail(l.URL)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
