package crawler

import "time"

// Session accumulates the state of one crawl. It is owned by a single
// controller and mutated only by the engine and the PDF ingestor.
type Session struct {
	RunID     string
	StartedAt time.Time

	pages      []Page
	pdfs       []PDFDocument
	links      Links
	linkByURL  map[string]LinkRecord
	categories map[Category][]CategoryEntry
	hashes     map[string]string
	stats      Statistics
}

// NewSession creates an empty session.
func NewSession(runID string, startedAt time.Time) *Session {
	return &Session{
		RunID:      runID,
		StartedAt:  startedAt,
		linkByURL:  make(map[string]LinkRecord),
		categories: make(map[Category][]CategoryEntry),
		hashes:     make(map[string]string),
		stats:      Statistics{CategoryCounts: make(map[Category]int)},
	}
}

// AddPage appends a fetched page and files it under its category.
func (s *Session) AddPage(p Page) {
	s.pages = append(s.pages, p)
	s.categories[p.Category] = append(s.categories[p.Category], CategoryEntry{
		Kind:  "page",
		URL:   p.URL,
		Title: p.Title,
	})
	if p.ContentHash != "" {
		if _, ok := s.hashes[p.ContentHash]; !ok {
			s.hashes[p.ContentHash] = p.URL
		}
	}
	s.stats.TotalPages++
	s.stats.TotalWords += p.WordCount
	s.stats.CategoryCounts[p.Category]++
}

// DuplicateOf returns the URL of an earlier page with the same content hash.
func (s *Session) DuplicateOf(hash string) (string, bool) {
	if hash == "" {
		return "", false
	}
	u, ok := s.hashes[hash]
	return u, ok
}

// AddPDF appends a decoded PDF and files it under its category.
func (s *Session) AddPDF(doc PDFDocument) {
	s.pdfs = append(s.pdfs, doc)
	s.categories[doc.Category] = append(s.categories[doc.Category], CategoryEntry{
		Kind:  "pdf",
		URL:   doc.URL,
		Title: doc.Title,
	})
	s.stats.TotalPDFs++
	s.stats.TotalWords += doc.WordCount
	s.stats.CategoryCounts[doc.Category]++
}

// RecordLink stores rec in the collection for its kind. The first record for
// a URL wins; later sightings return false.
func (s *Session) RecordLink(rec LinkRecord) bool {
	if rec.URL == "" {
		return false
	}
	if _, seen := s.linkByURL[rec.URL]; seen {
		return false
	}
	s.linkByURL[rec.URL] = rec
	switch rec.Kind {
	case LinkInternal:
		s.links.Internal = append(s.links.Internal, rec)
		s.stats.TotalInternalLinks++
	case LinkExternal:
		s.links.External = append(s.links.External, rec)
		s.stats.TotalExternalLinks++
	case LinkPDF:
		s.links.PDF = append(s.links.PDF, rec)
		s.stats.TotalPDFLinks++
	case LinkImage:
		s.links.Image = append(s.links.Image, rec)
		s.stats.TotalImageLinks++
	}
	return true
}

// LinkByURL returns the first record discovered for url.
func (s *Session) LinkByURL(url string) (LinkRecord, bool) {
	rec, ok := s.linkByURL[url]
	return rec, ok
}

// RecordFailedPage counts a page fetch that produced no Page.
func (s *Session) RecordFailedPage() { s.stats.FailedPages++ }

// RecordFailedPDF counts a PDF that could not be downloaded or decoded.
func (s *Session) RecordFailedPDF() { s.stats.FailedPDFs++ }

// RecordDuplicate counts a page skipped because its content was already seen.
func (s *Session) RecordDuplicate() { s.stats.DuplicatePages++ }

// Pages returns the fetched pages in fetch order.
func (s *Session) Pages() []Page { return s.pages }

// PDFs returns the decoded PDFs in ingest order.
func (s *Session) PDFs() []PDFDocument { return s.pdfs }

// PDFLinks returns PDF link records in discovery order.
func (s *Session) PDFLinks() []LinkRecord { return s.links.PDF }

// Statistics returns a copy of the running counters.
func (s *Session) Statistics() Statistics {
	out := s.stats
	out.CategoryCounts = make(map[Category]int, len(s.stats.CategoryCounts))
	for k, v := range s.stats.CategoryCounts {
		out.CategoryCounts[k] = v
	}
	return out
}

// Snapshot freezes the session into its persisted form. Every category is
// present, with an empty bucket when nothing landed in it.
func (s *Session) Snapshot(meta SnapshotMetadata) Snapshot {
	meta.RunID = s.RunID
	meta.StartedAt = s.StartedAt
	categories := make(map[Category][]CategoryEntry, len(Categories))
	for _, c := range Categories {
		entries := append([]CategoryEntry{}, s.categories[c]...)
		categories[c] = entries
	}
	return Snapshot{
		Metadata: meta,
		Pages:    append([]Page{}, s.pages...),
		Documents: Documents{
			PDFs: append([]PDFDocument{}, s.pdfs...),
		},
		Links: Links{
			Internal: append([]LinkRecord{}, s.links.Internal...),
			External: append([]LinkRecord{}, s.links.External...),
			PDF:      append([]LinkRecord{}, s.links.PDF...),
			Image:    append([]LinkRecord{}, s.links.Image...),
		},
		Categories: categories,
		Statistics: s.Statistics(),
	}
}
