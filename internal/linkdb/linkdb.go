// Package linkdb builds a text-keyed lookup of canonical PDF and page links
// from a crawl snapshot.
package linkdb

import (
	"path"
	"sort"
	"strings"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

// MaxRelevant caps FindRelevant results.
const MaxRelevant = 5

// EntryType namespaces keys.
type EntryType string

const (
	TypePDF  EntryType = "pdf"
	TypePage EntryType = "page"
)

// Entry is one resolvable link.
type Entry struct {
	Key         string           `json:"key"`
	Type        EntryType        `json:"type"`
	Text        string           `json:"text"`
	URL         string           `json:"url"`
	Category    crawler.Category `json:"category"`
	SourceURL   string           `json:"sourceUrl,omitempty"`
	SourceTitle string           `json:"sourceTitle,omitempty"`
	Context     string           `json:"context,omitempty"`
	PageCount   int              `json:"pageCount,omitempty"`
}

// Database maps slug keys to entries. Several keys may alias one logical
// link; a later insert under an existing key replaces the earlier one.
// It is read-only once Build returns.
type Database struct {
	entries map[string]Entry
	keys    []string
}

// Build indexes a snapshot: PDF link records, then PDF documents, then
// internal link records, then pages.
func Build(snap crawler.Snapshot) *Database {
	db := &Database{entries: make(map[string]Entry)}

	for _, l := range snap.Links.PDF {
		e := Entry{
			Type:        TypePDF,
			Text:        l.Text,
			URL:         l.URL,
			Category:    crawler.Categorize(l.URL, l.Text),
			SourceURL:   l.SourceURL,
			SourceTitle: l.SourceTitle,
			Context:     l.Context,
		}
		db.put(TypePDF, l.Text, e)
		db.put(TypePDF, fileStem(l.URL), e)
	}
	for _, d := range snap.Documents.PDFs {
		e := Entry{
			Type:        TypePDF,
			Text:        d.Title,
			URL:         d.URL,
			Category:    d.Category,
			SourceURL:   d.SourceURL,
			SourceTitle: d.SourceTitle,
			Context:     d.Context,
			PageCount:   d.PageCount,
		}
		db.put(TypePDF, d.Title, e)
		db.put(TypePDF, fileStem(d.URL), e)
	}
	for _, l := range snap.Links.Internal {
		db.put(TypePage, l.Text, Entry{
			Type:        TypePage,
			Text:        l.Text,
			URL:         l.URL,
			Category:    crawler.Categorize(l.URL, l.Text),
			SourceURL:   l.SourceURL,
			SourceTitle: l.SourceTitle,
			Context:     l.Context,
		})
	}
	for _, p := range snap.Pages {
		db.put(TypePage, p.Title, Entry{
			Type:     TypePage,
			Text:     p.Title,
			URL:      p.URL,
			Category: p.Category,
		})
	}

	db.keys = make([]string, 0, len(db.entries))
	for k := range db.entries {
		db.keys = append(db.keys, k)
	}
	sort.Strings(db.keys)
	return db
}

func (db *Database) put(t EntryType, text string, e Entry) {
	s := Slug(text)
	if s == "" {
		return
	}
	e.Key = string(t) + "_" + s
	db.entries[e.Key] = e
}

// Get returns the entry stored under key.
func (db *Database) Get(key string) (Entry, bool) {
	e, ok := db.entries[key]
	return e, ok
}

// Len returns the number of keys.
func (db *Database) Len() int {
	return len(db.entries)
}

// Keys returns all keys in sorted order.
func (db *Database) Keys() []string {
	return append([]string(nil), db.keys...)
}

// FindRelevant returns up to limit entries (never more than MaxRelevant)
// whose text contains, or is contained in, the question, or whose category
// is named in it. A question mentioning "pdf" or "document" ranks matching
// PDF entries ahead of other matches. When short of the cap, PDF entries
// sharing a URL with one of docs are appended. Results are unique by URL.
func (db *Database) FindRelevant(question string, docs []crawler.VectorMatch, limit int) []Entry {
	if limit <= 0 || limit > MaxRelevant {
		limit = MaxRelevant
	}
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" || len(db.entries) == 0 {
		return nil
	}
	wantsPDF := strings.Contains(q, "pdf") || strings.Contains(q, "document")

	var out []Entry
	seen := make(map[string]struct{})
	add := func(e Entry) bool {
		if _, dup := seen[e.URL]; dup {
			return false
		}
		seen[e.URL] = struct{}{}
		out = append(out, e)
		return len(out) >= limit
	}

	if wantsPDF {
		for _, k := range db.keys {
			e := db.entries[k]
			if e.Type == TypePDF && matches(q, e) && add(e) {
				return out
			}
		}
	}
	for _, k := range db.keys {
		if e := db.entries[k]; matches(q, e) && add(e) {
			return out
		}
	}

	docURLs := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d.Metadata.URL != "" {
			docURLs[d.Metadata.URL] = struct{}{}
		}
	}
	for _, k := range db.keys {
		e := db.entries[k]
		if e.Type != TypePDF {
			continue
		}
		if _, ok := docURLs[e.URL]; ok && add(e) {
			return out
		}
	}
	return out
}

func matches(q string, e Entry) bool {
	text := strings.ToLower(strings.TrimSpace(e.Text))
	if text != "" && (strings.Contains(q, text) || strings.Contains(text, q)) {
		return true
	}
	return e.Category != "" && strings.Contains(q, string(e.Category))
}

// Slug lowercases s and joins its whitespace-separated words with "_".
func Slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

func fileStem(rawURL string) string {
	tail := crawler.PathTail(rawURL)
	return strings.TrimSuffix(tail, path.Ext(tail))
}
