package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/linkdb"
)

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

type stubStore struct {
	matches []crawler.VectorMatch
	topK    int
}

func (s *stubStore) Upsert(context.Context, []crawler.VectorRecord) error { return nil }

func (s *stubStore) Query(_ context.Context, _ []float32, topK int) ([]crawler.VectorMatch, error) {
	s.topK = topK
	return s.matches, nil
}

func (s *stubStore) DeleteAll(context.Context) error { return nil }

func (s *stubStore) DescribeStats(context.Context) (crawler.StoreStats, error) {
	return crawler.StoreStats{}, nil
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

const reportURL = "https://nitjsr.ac.in/reports/placement_2023.pdf"

func placementMatches() []crawler.VectorMatch {
	return []crawler.VectorMatch{
		{
			ID:    "pdf-0-chunk-0",
			Score: 0.91,
			Metadata: crawler.ChunkMetadata{
				SourceKind: crawler.SourcePDF,
				URL:        reportURL,
				Title:      "Placement Report 2023",
				PageCount:  4,
				Text:       strings.Repeat("Highest package was 52 LPA. ", 20),
			},
		},
		{
			ID:    "page-3-chunk-1",
			Score: 0.72,
			Metadata: crawler.ChunkMetadata{
				SourceKind: crawler.SourcePage,
				URL:        "https://nitjsr.ac.in/tnp",
				Title:      "Training and Placement",
				Text:       "The TnP cell coordinates campus recruitment.",
			},
		},
	}
}

func linkDB() *linkdb.Database {
	return linkdb.Build(crawler.Snapshot{Links: crawler.Links{PDF: []crawler.LinkRecord{{
		URL:  reportURL,
		Text: "Placement Report 2023",
		Kind: crawler.LinkPDF,
	}}}})
}

func TestChatZeroMatchSkipsGeneration(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	c, err := NewComposer(Config{}, stubEmbedder{}, &stubStore{}, gen, linkDB(), nil)
	require.NoError(t, err)

	ans, err := c.Chat(context.Background(), "Who won the cricket league?")
	require.NoError(t, err)
	assert.Zero(t, ans.Confidence)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources)
	assert.Empty(t, ans.RelevantLinks)
	assert.Contains(t, ans.Answer, "couldn't find any information")
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestChatAnswersWithSourcesAndLinks(t *testing.T) {
	t.Parallel()

	store := &stubStore{matches: placementMatches()}
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "[Document 1] (PDF Document: Placement Report 2023, 4 pages)") &&
			strings.Contains(p, "[Document 2] (Web Page: Training and Placement)") &&
			strings.Contains(p, "- Placement Report 2023: "+reportURL+" (PDF Document)") &&
			strings.HasSuffix(p, "Question: Show me the placement report 2023 pdf\nAnswer:")
	})).Return("The highest package was 52 LPA.", nil).Once()

	c, err := NewComposer(Config{}, stubEmbedder{}, store, gen, linkDB(), nil)
	require.NoError(t, err)

	ans, err := c.Chat(context.Background(), "Show me the placement report 2023 pdf")
	require.NoError(t, err)
	gen.AssertExpectations(t)

	assert.Equal(t, DefaultTopK, store.topK)
	assert.Equal(t, "The highest package was 52 LPA.", ans.Answer)
	assert.InDelta(t, 0.91, ans.Confidence, 1e-9)
	require.Len(t, ans.RelevantLinks, 1)
	assert.Equal(t, reportURL, ans.RelevantLinks[0].URL)

	require.Len(t, ans.Sources, 3)
	assert.Equal(t, "pdf", ans.Sources[0].Type)
	assert.Len(t, []rune(ans.Sources[0].Preview), previewLen+3)
	assert.True(t, strings.HasSuffix(ans.Sources[0].Preview, "..."))
	assert.Equal(t, "The TnP cell coordinates campus recruitment.", ans.Sources[1].Preview)
	assert.Equal(t, sourceTypeLink, ans.Sources[2].Type)
	assert.InDelta(t, linkSourceScore, ans.Sources[2].Score, 1e-9)
}

func TestChatWithoutLinkDatabase(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)
	c, err := NewComposer(Config{TopK: 3}, stubEmbedder{}, &stubStore{matches: placementMatches()}, gen, nil, nil)
	require.NoError(t, err)

	ans, err := c.Chat(context.Background(), "placement report")
	require.NoError(t, err)
	assert.Empty(t, ans.RelevantLinks)
	assert.Len(t, ans.Sources, 2)
}

func TestChatPropagatesEmbeddingError(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	embedErr := fmt.Errorf("%w: quota", crawler.ErrEmbedding)
	c, err := NewComposer(Config{}, stubEmbedder{err: embedErr}, &stubStore{}, gen, nil, nil)
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), "fees?")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrEmbedding)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestChatPropagatesGenerationError(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("", fmt.Errorf("%w: 503", crawler.ErrGeneration))
	c, err := NewComposer(Config{}, stubEmbedder{}, &stubStore{matches: placementMatches()}, gen, nil, nil)
	require.NoError(t, err)

	_, err = c.Chat(context.Background(), "fees?")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrGeneration)
}

func TestChatRejectsBlankQuestion(t *testing.T) {
	t.Parallel()

	c, err := NewComposer(Config{}, stubEmbedder{}, &stubStore{}, &mockGenerator{}, nil, nil)
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "  ")
	require.Error(t, err)
}

func TestSetLinksSwapsDatabase(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)
	c, err := NewComposer(Config{}, stubEmbedder{}, &stubStore{matches: placementMatches()}, gen, nil, nil)
	require.NoError(t, err)

	c.SetLinks(linkDB())
	ans, err := c.Chat(context.Background(), "placement report 2023")
	require.NoError(t, err)
	assert.Len(t, ans.RelevantLinks, 1)
}

func TestNewComposerValidates(t *testing.T) {
	t.Parallel()

	_, err := NewComposer(Config{}, nil, &stubStore{}, &mockGenerator{}, nil, nil)
	require.Error(t, err)
	_, err = NewComposer(Config{}, stubEmbedder{}, nil, &mockGenerator{}, nil, nil)
	require.Error(t, err)
	_, err = NewComposer(Config{}, stubEmbedder{}, &stubStore{}, nil, nil, nil)
	require.Error(t, err)
}
