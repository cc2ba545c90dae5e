// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/logging"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/telemetry"
)

// EnvPrefix is prepended to every environment override, e.g. UNIRAG_CRAWLER_MAX_PAGES.
const EnvPrefix = "UNIRAG"

// Provider and backend names accepted by the config.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	VectorStoreMemory   = "memory"
	VectorStorePgvector = "pgvector"
	VectorStoreWeaviate = "weaviate"

	StorageLocal  = "local"
	StorageGCS    = "gcs"
	StorageMemory = "memory"

	RendererHeadless = "headless"
	RendererStatic   = "static"
	RendererAuto     = "auto"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site        SiteConfig        `mapstructure:"site"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	Features    crawler.Features  `mapstructure:"features"`
	PDF         PDFConfig         `mapstructure:"pdf"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Indexing    IndexingConfig    `mapstructure:"indexing"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Embedding   ModelConfig       `mapstructure:"embedding"`
	Generation  ModelConfig       `mapstructure:"generation"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore"`
	Storage     StorageConfig     `mapstructure:"storage"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Server      ServerConfig      `mapstructure:"server"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Logging     logging.Config    `mapstructure:"logging"`
	Telemetry   telemetry.Config  `mapstructure:"telemetry"`
}

// SiteConfig names the crawl target.
type SiteConfig struct {
	BaseURL       string   `mapstructure:"base_url"`
	Name          string   `mapstructure:"name"`
	SocialDomains []string `mapstructure:"social_domains"`
}

// CrawlerConfig bounds and paces the crawl.
type CrawlerConfig struct {
	SeedURLs          []string      `mapstructure:"seed_urls"`
	MaxPages          int           `mapstructure:"max_pages"`
	MaxDepth          int           `mapstructure:"max_depth"`
	InterPageDelay    time.Duration `mapstructure:"inter_page_delay"`
	Renderer          string        `mapstructure:"renderer"`
	UserAgent         string        `mapstructure:"user_agent"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	ScrollPasses      int           `mapstructure:"scroll_passes"`
	ScrollPause       time.Duration `mapstructure:"scroll_pause"`
	// PromoteMinWords is the extracted word count below which the auto
	// renderer re-renders a page in headless Chrome.
	PromoteMinWords int `mapstructure:"promote_min_words"`
}

// PDFConfig bounds PDF ingestion.
type PDFConfig struct {
	MaxDocuments    int           `mapstructure:"max_documents"`
	MaxBytes        int           `mapstructure:"max_bytes"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// ChunkingConfig controls text splitting.
type ChunkingConfig struct {
	Size              int `mapstructure:"size"`
	Overlap           int `mapstructure:"overlap"`
	MinTextLength     int `mapstructure:"min_text_length"`
	DirectoryPages    int `mapstructure:"directory_pages"`
	MetadataTextLimit int `mapstructure:"metadata_text_limit"`
}

// IndexingConfig paces embedding batches.
type IndexingConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
}

// RetrievalConfig tunes the answer composer.
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// ModelConfig selects a model provider. Embedding and generation are configured separately.
type ModelConfig struct {
	Provider  string `mapstructure:"provider"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

// VectorStoreConfig selects and configures the vector backend.
type VectorStoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Pgvector PgvectorConfig `mapstructure:"pgvector"`
	Weaviate WeaviateConfig `mapstructure:"weaviate"`
}

// PgvectorConfig configures the Postgres vector store.
type PgvectorConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// WeaviateConfig configures the Weaviate vector store.
type WeaviateConfig struct {
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"api_key"`
	Class  string `mapstructure:"class"`
}

// StorageConfig selects where snapshots live.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for snapshot-ready notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether notifications are configured.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.TopicName != ""
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// JobsConfig sizes the background job queue used by the HTTP server.
type JobsConfig struct {
	QueueCapacity int           `mapstructure:"queue_capacity"`
	Workers       int           `mapstructure:"workers"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	RunRetention  int           `mapstructure:"run_retention"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://nitjsr.ac.in/")
	v.SetDefault("site.name", "NIT Jamshedpur")
	v.SetDefault("crawler.max_pages", 150)
	v.SetDefault("crawler.max_depth", 3)
	v.SetDefault("crawler.inter_page_delay", "1500ms")
	v.SetDefault("crawler.renderer", RendererHeadless)
	v.SetDefault("crawler.user_agent", "nitjsr-rag-bot/1.0")
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.navigation_timeout", "30s")
	v.SetDefault("crawler.settle_delay", "2s")
	v.SetDefault("crawler.scroll_passes", 3)
	v.SetDefault("crawler.scroll_pause", "500ms")
	v.SetDefault("crawler.promote_min_words", 40)
	v.SetDefault("features.track_links", true)
	v.SetDefault("features.extract_tables", true)
	v.SetDefault("features.extract_lists", true)
	v.SetDefault("features.ingest_pdfs", true)
	v.SetDefault("features.dedupe_content", true)
	v.SetDefault("features.auto_scroll", true)
	v.SetDefault("pdf.max_documents", 50)
	v.SetDefault("pdf.max_bytes", 50<<20)
	v.SetDefault("pdf.download_timeout", "60s")
	v.SetDefault("chunking.size", 1200)
	v.SetDefault("chunking.overlap", 300)
	v.SetDefault("chunking.min_text_length", 100)
	v.SetDefault("chunking.directory_pages", 50)
	v.SetDefault("chunking.metadata_text_limit", 1000)
	v.SetDefault("indexing.batch_size", 5)
	v.SetDefault("indexing.batch_delay", "2s")
	v.SetDefault("retrieval.top_k", 8)
	v.SetDefault("embedding.provider", ProviderGemini)
	v.SetDefault("embedding.dimension", 768)
	v.SetDefault("generation.provider", ProviderGemini)
	v.SetDefault("vectorstore.backend", VectorStoreMemory)
	v.SetDefault("vectorstore.pgvector.table", "document_chunks")
	v.SetDefault("vectorstore.pgvector.max_conns", 4)
	v.SetDefault("vectorstore.weaviate.class", "NitjsrChunk")
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.prefix", "snapshots/")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("jobs.queue_capacity", 8)
	v.SetDefault("jobs.workers", 1)
	v.SetDefault("jobs.max_retries", 1)
	v.SetDefault("jobs.retry_backoff", "30s")
	v.SetDefault("jobs.run_retention", 50)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.service_name", "nitjsr-rag")

	// Keys without a default must still be registered for env overrides to
	// reach Unmarshal.
	for _, key := range []string{
		"embedding.api_key", "embedding.base_url", "embedding.model",
		"generation.api_key", "generation.base_url", "generation.model",
		"vectorstore.pgvector.dsn", "vectorstore.weaviate.host", "vectorstore.weaviate.api_key",
		"storage.gcs_bucket", "pubsub.project_id", "pubsub.topic_name",
		"server.api_key", "logging.level", "telemetry.version", "telemetry.project_id",
	} {
		v.SetDefault(key, "")
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute http(s) url")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.InterPageDelay < 0 {
		return fmt.Errorf("crawler.inter_page_delay must be >= 0")
	}
	switch c.Crawler.Renderer {
	case RendererHeadless, RendererStatic, RendererAuto:
	default:
		return fmt.Errorf("crawler.renderer must be %q, %q or %q", RendererHeadless, RendererStatic, RendererAuto)
	}
	if c.PDF.MaxDocuments < 0 {
		return fmt.Errorf("pdf.max_documents must be >= 0")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be > 0")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, chunking.size)")
	}
	if c.Indexing.BatchSize <= 0 {
		return fmt.Errorf("indexing.batch_size must be > 0")
	}
	if c.Indexing.BatchDelay < 0 {
		return fmt.Errorf("indexing.batch_delay must be >= 0")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be > 0")
	}
	switch c.VectorStore.Backend {
	case VectorStoreMemory:
	case VectorStorePgvector:
		if c.VectorStore.Pgvector.DSN == "" {
			return fmt.Errorf("vectorstore.pgvector.dsn is required for the pgvector backend")
		}
	case VectorStoreWeaviate:
		if c.VectorStore.Weaviate.Host == "" {
			return fmt.Errorf("vectorstore.weaviate.host is required for the weaviate backend")
		}
	default:
		return fmt.Errorf("unknown vectorstore.backend %q", c.VectorStore.Backend)
	}
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Jobs.QueueCapacity <= 0 || c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.queue_capacity and jobs.workers must be > 0")
	}
	if c.Jobs.MaxRetries < 0 {
		return fmt.Errorf("jobs.max_retries must be >= 0")
	}
	return nil
}

// ValidateModels checks provider credentials. It runs only for commands that
// embed or generate, so crawling works without model keys.
func (c Config) ValidateModels() error {
	if err := validateModel("embedding", c.Embedding); err != nil {
		return err
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be > 0")
	}
	return validateModel("generation", c.Generation)
}

func validateModel(section string, m ModelConfig) error {
	switch m.Provider {
	case ProviderGemini:
		if m.APIKey == "" {
			return fmt.Errorf("%s.api_key is required for the gemini provider", section)
		}
	case ProviderOpenAI:
		if m.APIKey == "" && m.BaseURL == "" {
			return fmt.Errorf("%s.api_key or %s.base_url is required for the openai provider", section, section)
		}
	default:
		return fmt.Errorf("unknown %s.provider %q", section, m.Provider)
	}
	return nil
}

// Domain returns the base host without a leading "www.".
func (c Config) Domain() string {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
