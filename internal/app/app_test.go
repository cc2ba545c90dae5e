package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/config"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/pipeline"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/progress/sinks"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Backend = config.StorageLocal
	cfg.Storage.LocalDir = t.TempDir()
	cfg.Crawler.Renderer = config.RendererStatic
	cfg.Embedding = config.ModelConfig{Provider: config.ProviderOpenAI, BaseURL: "http://127.0.0.1:1/v1", Dimension: 8}
	cfg.Generation = config.ModelConfig{Provider: config.ProviderOpenAI, BaseURL: "http://127.0.0.1:1/v1"}
	cfg.Server.Port = 0
	return cfg
}

func TestBuildCrawlOnly(t *testing.T) {
	t.Parallel()

	a, err := Build(context.Background(), testConfig(t), zap.NewNop(), Options{Crawl: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.NotNil(t, a.Pipeline())
	assert.NotNil(t, a.Snapshots())
	assert.Nil(t, a.Composer())
	assert.Nil(t, a.VectorStore())
	assert.Equal(t, pipeline.StateIdle, a.Pipeline().State())

	_, err = a.Pipeline().Index(context.Background(), pipeline.IndexOptions{})
	assert.Error(t, err)
}

func TestBuildModels(t *testing.T) {
	t.Parallel()

	a, err := Build(context.Background(), testConfig(t), zap.NewNop(), Options{Models: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.NotNil(t, a.Composer())
	require.NotNil(t, a.VectorStore())
	stats, err := a.VectorStore().DescribeStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVectors)

	_, err = a.Pipeline().Crawl(context.Background())
	assert.Error(t, err)
}

func TestBuildRejectsMissingModelCredentials(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Embedding = config.ModelConfig{Provider: config.ProviderGemini, Dimension: 768}
	_, err := Build(context.Background(), cfg, zap.NewNop(), Options{Models: true})
	require.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	a, err := Build(context.Background(), testConfig(t), zap.NewNop(), Options{Models: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeRequiresModels(t *testing.T) {
	t.Parallel()

	a, err := Build(context.Background(), testConfig(t), zap.NewNop(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	require.Error(t, a.Serve(context.Background()))
}

func TestRunsTrackPipelineProgress(t *testing.T) {
	t.Parallel()

	a, err := Build(context.Background(), testConfig(t), zap.NewNop(), Options{Models: true})
	require.NoError(t, err)
	require.NotNil(t, a.Runs())

	_, err = a.Pipeline().Index(context.Background(), pipeline.IndexOptions{})
	require.Error(t, err)
	// Close drains the progress hub into its sinks.
	_ = a.Close(context.Background())

	runs := a.Runs().List()
	require.Len(t, runs, 1)
	assert.Equal(t, sinks.RunFailed, runs[0].State)
	assert.NotEmpty(t, runs[0].Error)
}
