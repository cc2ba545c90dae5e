package crawler

import (
	"errors"
	"time"
)

// Category is the topical bucket assigned to a page or PDF.
type Category string

// Category values in rule-evaluation order, with CategoryGeneral as fallback.
const (
	CategoryPlacements     Category = "placements"
	CategoryAdmissions     Category = "admissions"
	CategoryAcademics      Category = "academics"
	CategoryFaculty        Category = "faculty"
	CategoryStudents       Category = "students"
	CategoryResearch       Category = "research"
	CategoryAdministration Category = "administration"
	CategoryNews           Category = "news"
	CategoryEvents         Category = "events"
	CategoryDepartments    Category = "departments"
	CategoryGeneral        Category = "general"
)

// Categories lists every category in the order they are serialized.
var Categories = []Category{
	CategoryAcademics,
	CategoryAdmissions,
	CategoryPlacements,
	CategoryFaculty,
	CategoryStudents,
	CategoryResearch,
	CategoryAdministration,
	CategoryNews,
	CategoryEvents,
	CategoryDepartments,
	CategoryGeneral,
}

// LinkKind is decided once when a link is discovered.
type LinkKind string

// LinkKind values.
const (
	LinkInternal LinkKind = "internal"
	LinkExternal LinkKind = "external"
	LinkPDF      LinkKind = "pdf"
	LinkImage    LinkKind = "image"
)

// Sentinel errors surfaced by capability implementations.
var (
	ErrFetch          = errors.New("fetch failed")
	ErrDecode         = errors.New("decode failed")
	ErrEmbedding      = errors.New("embedding failed")
	ErrGeneration     = errors.New("generation failed")
	ErrObjectNotFound = errors.New("object not found")
)

// Heading is one h1-h6 element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// RawLink is an anchor as it appeared on the page.
type RawLink struct {
	Href    string `json:"href"`
	Text    string `json:"text"`
	Title   string `json:"title,omitempty"`
	Context string `json:"context,omitempty"`
}

// RenderedPage is the structured content a Renderer extracts from one URL.
type RenderedPage struct {
	URL             string
	Title           string
	Headings        []Heading
	ContentBlocks   []string
	Tables          [][][]string
	Lists           [][]string
	RawLinks        []RawLink
	MetaDescription string
	MetaKeywords    string
}

// Page is a successfully fetched document. It is not mutated after creation.
type Page struct {
	URL             string       `json:"url"`
	Depth           int          `json:"depth"`
	Title           string       `json:"title"`
	Headings        []Heading    `json:"headings"`
	Content         string       `json:"content"`
	Tables          [][][]string `json:"tables,omitempty"`
	Lists           [][]string   `json:"lists,omitempty"`
	RawLinks        []RawLink    `json:"links,omitempty"`
	MetaDescription string       `json:"metaDescription,omitempty"`
	MetaKeywords    string       `json:"metaKeywords,omitempty"`
	Category        Category     `json:"category"`
	WordCount       int          `json:"wordCount"`
	ContentHash     string       `json:"contentHash,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
}

// LinkRecord is a discovered hyperlink with provenance.
type LinkRecord struct {
	URL         string   `json:"url"`
	Text        string   `json:"text"`
	Title       string   `json:"title,omitempty"`
	SourceURL   string   `json:"sourceUrl"`
	SourceTitle string   `json:"sourceTitle"`
	Context     string   `json:"context,omitempty"`
	Kind        LinkKind `json:"kind"`
}

// PDFDocument is a decoded PDF with provenance from the link that referenced it.
type PDFDocument struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	PageCount   int       `json:"pageCount"`
	Category    Category  `json:"category"`
	WordCount   int       `json:"wordCount"`
	SourceURL   string    `json:"sourceUrl,omitempty"`
	SourceTitle string    `json:"sourceTitle,omitempty"`
	Context     string    `json:"context,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// DecodedPDF is the result of decoding PDF bytes.
type DecodedPDF struct {
	Text      string
	PageCount int
}

// CategoryEntry is the compact reference stored in a category bucket.
type CategoryEntry struct {
	Kind  string `json:"kind"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Statistics aggregates counts for one crawl session.
type Statistics struct {
	TotalPages         int              `json:"totalPages"`
	TotalPDFs          int              `json:"totalPdfs"`
	TotalInternalLinks int              `json:"totalInternalLinks"`
	TotalExternalLinks int              `json:"totalExternalLinks"`
	TotalPDFLinks      int              `json:"totalPdfLinks"`
	TotalImageLinks    int              `json:"totalImageLinks"`
	TotalWords         int              `json:"totalWords"`
	FailedPages        int              `json:"failedPages"`
	FailedPDFs         int              `json:"failedPdfs"`
	DuplicatePages     int              `json:"duplicatePages"`
	CategoryCounts     map[Category]int `json:"categoryCounts"`
}

// Links groups discovered link records by kind.
type Links struct {
	Internal []LinkRecord `json:"internal"`
	External []LinkRecord `json:"external"`
	PDF      []LinkRecord `json:"pdf"`
	Image    []LinkRecord `json:"image"`
}

// Documents holds decoded non-HTML documents.
type Documents struct {
	PDFs []PDFDocument `json:"pdfs"`
}

// SnapshotMetadata describes when and how a snapshot was produced.
type SnapshotMetadata struct {
	RunID     string    `json:"runId"`
	BaseURL   string    `json:"baseUrl"`
	Domain    string    `json:"domain"`
	StartedAt time.Time `json:"startedAt"`
	SavedAt   time.Time `json:"savedAt"`
	MaxPages  int       `json:"maxPages"`
	MaxDepth  int       `json:"maxDepth"`
	Features  Features  `json:"features"`
}

// Snapshot is the persisted hand-off between crawling and indexing.
type Snapshot struct {
	Metadata   SnapshotMetadata             `json:"metadata"`
	Pages      []Page                       `json:"pages"`
	Documents  Documents                    `json:"documents"`
	Links      Links                        `json:"links"`
	Categories map[Category][]CategoryEntry `json:"categories"`
	Statistics Statistics                   `json:"statistics"`
}

// Features toggles optional pipeline behavior.
type Features struct {
	TrackLinks    bool `json:"trackLinks" mapstructure:"track_links"`
	ExtractTables bool `json:"extractTables" mapstructure:"extract_tables"`
	ExtractLists  bool `json:"extractLists" mapstructure:"extract_lists"`
	IngestPDFs    bool `json:"ingestPdfs" mapstructure:"ingest_pdfs"`
	DedupeContent bool `json:"dedupeContent" mapstructure:"dedupe_content"`
	AutoScroll    bool `json:"autoScroll" mapstructure:"auto_scroll"`
}

// DefaultFeatures enables everything.
func DefaultFeatures() Features {
	return Features{
		TrackLinks:    true,
		ExtractTables: true,
		ExtractLists:  true,
		IngestPDFs:    true,
		DedupeContent: true,
		AutoScroll:    true,
	}
}

// SourceKind identifies what a chunk was built from.
type SourceKind string

// SourceKind values.
const (
	SourcePage       SourceKind = "page"
	SourcePDF        SourceKind = "pdf"
	SourceLinks      SourceKind = "links_directory"
	SourceStatistics SourceKind = "statistics"
)

// ChunkMetadata is stored alongside each vector.
type ChunkMetadata struct {
	SourceKind  SourceKind `json:"type"`
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title,omitempty"`
	Category    Category   `json:"category,omitempty"`
	ChunkIndex  int        `json:"chunkIndex"`
	TotalChunks int        `json:"totalChunks"`
	HasTables   bool       `json:"hasTables"`
	HasLists    bool       `json:"hasLists"`
	HasLinks    bool       `json:"hasLinks"`
	PageCount   int        `json:"pageCount,omitempty"`
	SourceURL   string     `json:"sourceUrl,omitempty"`
	Text        string     `json:"text"`
}

// DocumentChunk is the unit sent for embedding.
type DocumentChunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// VectorRecord is one upsert into a VectorStore.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata ChunkMetadata
}

// VectorMatch is one ranked result from a VectorStore query.
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata ChunkMetadata
}

// StoreStats summarizes a VectorStore.
type StoreStats struct {
	TotalVectors int     `json:"totalVectors"`
	Dimension    int     `json:"dimension"`
	Fullness     float64 `json:"fullness"`
}
