// Package rag answers questions from retrieved chunks and the link database.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/linkdb"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/metrics"
)

// Defaults for Config.
const (
	DefaultTopK        = 8
	DefaultSiteName    = "NIT Jamshedpur"
	DefaultSiteURL     = "https://nitjsr.ac.in/"
	previewLen         = 200
	linkSourceScore    = 0.8
	sourceTypeLink     = "link"
	docTypePDFLabel    = "PDF Document"
	docTypePageLabel   = "Web Page"
	promptSnippetLimit = 1000
)

// Config tunes retrieval.
type Config struct {
	TopK     int
	SiteName string
	SiteURL  string
}

// Document is one retrieved chunk.
type Document struct {
	ID       string                `json:"id"`
	Text     string                `json:"text"`
	Score    float64               `json:"score"`
	Metadata crawler.ChunkMetadata `json:"metadata"`
}

// Source is one citation returned with an answer.
type Source struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	URL      string                 `json:"url,omitempty"`
	Preview  string                 `json:"preview,omitempty"`
	Score    float64                `json:"score"`
	Metadata *crawler.ChunkMetadata `json:"metadata,omitempty"`
}

// Answer is the packaged response to a question.
type Answer struct {
	Question      string         `json:"question"`
	Answer        string         `json:"answer"`
	Sources       []Source       `json:"sources"`
	RelevantLinks []linkdb.Entry `json:"relevantLinks"`
	Confidence    float64        `json:"confidence"`
}

// Composer runs retrieval and generation.
type Composer struct {
	cfg       Config
	embedder  crawler.Embedder
	store     crawler.VectorStore
	generator crawler.Generator
	links     atomic.Pointer[linkdb.Database]
	logger    *zap.Logger
}

// NewComposer wires a Composer. links may be nil until SetLinks is called.
func NewComposer(cfg Config, embedder crawler.Embedder, store crawler.VectorStore, generator crawler.Generator, links *linkdb.Database, logger *zap.Logger) (*Composer, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.SiteName == "" {
		cfg.SiteName = DefaultSiteName
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = DefaultSiteURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Composer{
		cfg:       cfg,
		embedder:  embedder,
		store:     store,
		generator: generator,
		logger:    logger.Named("rag"),
	}
	c.SetLinks(links)
	return c, nil
}

// SetLinks swaps the link database consulted by Chat.
func (c *Composer) SetLinks(db *linkdb.Database) {
	c.links.Store(db)
}

// QueryDocuments embeds question and returns the topK nearest chunks.
// An empty result is not an error.
func (c *Composer) QueryDocuments(ctx context.Context, question string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = c.cfg.TopK
	}
	vec, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	matches, err := c.store.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	docs := make([]Document, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, Document{ID: m.ID, Text: m.Metadata.Text, Score: m.Score, Metadata: m.Metadata})
	}
	return docs, nil
}

// Chat answers question. With no retrieved documents it returns a fixed
// answer without calling the generator.
func (c *Composer) Chat(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, errors.New("question is required")
	}
	log := c.logger.With(zap.String("question", crawler.TruncateRunes(question, 120)))

	docs, err := c.QueryDocuments(ctx, question, c.cfg.TopK)
	if err != nil {
		metrics.ObserveChat("error")
		return Answer{}, err
	}
	if len(docs) == 0 {
		metrics.ObserveChat("no_match")
		log.Info("no documents matched")
		return c.noMatch(question), nil
	}

	var links []linkdb.Entry
	if db := c.links.Load(); db != nil {
		matches := make([]crawler.VectorMatch, len(docs))
		for i, d := range docs {
			matches[i] = crawler.VectorMatch{ID: d.ID, Score: d.Score, Metadata: d.Metadata}
		}
		links = db.FindRelevant(question, matches, linkdb.MaxRelevant)
	}

	text, err := c.generator.Generate(ctx, BuildPrompt(c.cfg.SiteName, question, docs, links))
	if err != nil {
		metrics.ObserveChat("error")
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	metrics.ObserveChat("answered")
	log.Info("question answered", zap.Int("documents", len(docs)), zap.Int("links", len(links)))
	return Answer{
		Question:      question,
		Answer:        text,
		Sources:       buildSources(docs, links),
		RelevantLinks: nonNil(links),
		Confidence:    docs[0].Score,
	}, nil
}

func (c *Composer) noMatch(question string) Answer {
	return Answer{
		Question: question,
		Answer: fmt.Sprintf("I couldn't find any information about that in the %s website data. "+
			"Try rephrasing your question or visit %s directly.", c.cfg.SiteName, c.cfg.SiteURL),
		Sources:       []Source{},
		RelevantLinks: []linkdb.Entry{},
	}
}

// BuildPrompt renders the grounded prompt sent to the generator.
func BuildPrompt(siteName, question string, docs []Document, links []linkdb.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an assistant answering questions about %s using content from its official website.\n\n", siteName)
	sb.WriteString("Context:\n")
	for i, d := range docs {
		fmt.Fprintf(&sb, "\n[Document %d] %s\n", i+1, docLabel(d.Metadata))
		sb.WriteString(crawler.TruncateRunes(strings.TrimSpace(d.Text), promptSnippetLimit))
		sb.WriteString("\n")
	}
	if len(links) > 0 {
		sb.WriteString("\nRelevant Links:\n")
		for _, l := range links {
			fmt.Fprintf(&sb, "- %s: %s (%s)\n", l.Text, l.URL, linkLabel(l.Type))
		}
	}
	sb.WriteString("\nInstructions:\n")
	sb.WriteString("- Answer using only the context above. If it does not contain the answer, say so.\n")
	sb.WriteString("- When you quote statistics, state their source and the period they cover.\n")
	sb.WriteString("- Include the relevant links or URLs so the reader can verify the answer.\n")
	fmt.Fprintf(&sb, "\nQuestion: %s\nAnswer:", question)
	return sb.String()
}

func docLabel(m crawler.ChunkMetadata) string {
	title := m.Title
	if title == "" {
		title = m.URL
	}
	switch m.SourceKind {
	case crawler.SourcePDF:
		return fmt.Sprintf("(%s: %s, %d pages)", docTypePDFLabel, title, m.PageCount)
	case crawler.SourceLinks:
		return "(Links Directory)"
	case crawler.SourceStatistics:
		return "(Website Statistics)"
	default:
		return fmt.Sprintf("(%s: %s)", docTypePageLabel, title)
	}
}

func linkLabel(t linkdb.EntryType) string {
	if t == linkdb.TypePDF {
		return docTypePDFLabel
	}
	return docTypePageLabel
}

func buildSources(docs []Document, links []linkdb.Entry) []Source {
	out := make([]Source, 0, len(docs)+len(links))
	for _, d := range docs {
		meta := d.Metadata
		out = append(out, Source{
			Type:     string(meta.SourceKind),
			Title:    meta.Title,
			URL:      meta.URL,
			Preview:  preview(d.Text),
			Score:    d.Score,
			Metadata: &meta,
		})
	}
	for _, l := range links {
		out = append(out, Source{
			Type:  sourceTypeLink,
			Title: l.Text,
			URL:   l.URL,
			Score: linkSourceScore,
		})
	}
	return out
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) <= previewLen {
		return text
	}
	return crawler.TruncateRunes(text, previewLen) + "..."
}

func nonNil(links []linkdb.Entry) []linkdb.Entry {
	if links == nil {
		return []linkdb.Entry{}
	}
	return links
}
