package crawler

import (
	"context"
	"io"
	"time"
)

// Renderer loads a URL and extracts its structured content.
type Renderer interface {
	Render(ctx context.Context, url string) (RenderedPage, error)
}

// Downloader retrieves raw bytes for a URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// PDFDecoder turns PDF bytes into text and a page count.
type PDFDecoder interface {
	Decode(ctx context.Context, data []byte) (DecodedPDF, error)
}

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorStore persists and queries embeddings.
type VectorStore interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error)
	DeleteAll(ctx context.Context) error
	DescribeStats(ctx context.Context) (StoreStats, error)
}

// BlobStore persists named artifacts.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// Publisher emits notifications to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Waiter paces outbound requests.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Clock abstracts time so tests can control it.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Hasher fingerprints content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces unique identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
