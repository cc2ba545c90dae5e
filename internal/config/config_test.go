package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://nitjsr.ac.in/", cfg.Site.BaseURL)
	assert.Equal(t, "nitjsr.ac.in", cfg.Domain())
	assert.Equal(t, 150, cfg.Crawler.MaxPages)
	assert.Equal(t, 3, cfg.Crawler.MaxDepth)
	assert.Equal(t, 1500*time.Millisecond, cfg.Crawler.InterPageDelay)
	assert.True(t, cfg.Features.IngestPDFs)
	assert.True(t, cfg.Features.DedupeContent)
	assert.Equal(t, 50, cfg.PDF.MaxDocuments)
	assert.Equal(t, 1200, cfg.Chunking.Size)
	assert.Equal(t, 300, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Indexing.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Indexing.BatchDelay)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, VectorStoreMemory, cfg.VectorStore.Backend)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.False(t, cfg.PubSub.Enabled())
	assert.Equal(t, 1, cfg.Jobs.Workers)
	assert.Equal(t, 30*time.Second, cfg.Jobs.RetryBackoff)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  base_url: https://www.nitjsr.ac.in/
crawler:
  max_pages: 1
  max_depth: 0
  renderer: static
features:
  ingest_pdfs: false
vectorstore:
  backend: pgvector
  pgvector:
    dsn: postgres://localhost/rag
storage:
  backend: gcs
  gcs_bucket: nitjsr-snapshots
pubsub:
  project_id: proj
  topic_name: snapshots
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nitjsr.ac.in", cfg.Domain())
	assert.Equal(t, 1, cfg.Crawler.MaxPages)
	assert.Equal(t, 0, cfg.Crawler.MaxDepth)
	assert.Equal(t, RendererStatic, cfg.Crawler.Renderer)
	assert.False(t, cfg.Features.IngestPDFs)
	assert.True(t, cfg.Features.TrackLinks)
	assert.Equal(t, "postgres://localhost/rag", cfg.VectorStore.Pgvector.DSN)
	assert.Equal(t, "document_chunks", cfg.VectorStore.Pgvector.Table)
	assert.Equal(t, "nitjsr-snapshots", cfg.Storage.GCSBucket)
	assert.True(t, cfg.PubSub.Enabled())
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("UNIRAG_CRAWLER_MAX_PAGES", "20")
	t.Setenv("UNIRAG_EMBEDDING_API_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Crawler.MaxPages)
	assert.Equal(t, "from-env", cfg.Embedding.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"relative base url": func(c *Config) { c.Site.BaseURL = "/home" },
		"zero pages":        func(c *Config) { c.Crawler.MaxPages = 0 },
		"negative depth":    func(c *Config) { c.Crawler.MaxDepth = -1 },
		"bad renderer":      func(c *Config) { c.Crawler.Renderer = "lynx" },
		"overlap too large": func(c *Config) { c.Chunking.Overlap = c.Chunking.Size },
		"zero batch":        func(c *Config) { c.Indexing.BatchSize = 0 },
		"zero top k":        func(c *Config) { c.Retrieval.TopK = 0 },
		"pgvector no dsn":   func(c *Config) { c.VectorStore.Backend = VectorStorePgvector },
		"weaviate no host":  func(c *Config) { c.VectorStore.Backend = VectorStoreWeaviate },
		"unknown store":     func(c *Config) { c.VectorStore.Backend = "faiss" },
		"gcs no bucket":     func(c *Config) { c.Storage.Backend = StorageGCS },
		"unknown storage":   func(c *Config) { c.Storage.Backend = "s3" },
		"zero port":         func(c *Config) { c.Server.Port = 0 },
		"zero workers":      func(c *Config) { c.Jobs.Workers = 0 },
		"negative retries":  func(c *Config) { c.Jobs.MaxRetries = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateModels(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)
	require.Error(t, base.ValidateModels())

	cfg := base
	cfg.Embedding.APIKey = "k"
	cfg.Generation.APIKey = "k"
	require.NoError(t, cfg.ValidateModels())

	cfg.Generation = ModelConfig{Provider: ProviderOpenAI, BaseURL: "http://localhost:11434/v1"}
	require.NoError(t, cfg.ValidateModels())

	cfg.Embedding.Dimension = 0
	require.Error(t, cfg.ValidateModels())

	cfg = base
	cfg.Embedding = ModelConfig{Provider: "cohere", APIKey: "k", Dimension: 768}
	require.Error(t, cfg.ValidateModels())
}
