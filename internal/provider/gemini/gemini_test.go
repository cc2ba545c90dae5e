package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

type fakeModels struct {
	embedConfig *genai.EmbedContentConfig
	embedModel  string
	embedResp   *genai.EmbedContentResponse
	genResp     *genai.GenerateContentResponse
	genPrompt   string
	err         error
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.embedModel = model
	f.embedConfig = config
	return f.embedResp, f.err
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.genPrompt = contents[0].Parts[0].Text
	}
	return f.genResp, f.err
}

func TestEmbedRequestsConfiguredDimension(t *testing.T) {
	t.Parallel()

	values := make([]float32, DefaultDimension)
	values[0] = 0.5
	models := &fakeModels{embedResp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: values}},
	}}
	c := newWithModels(Config{}, models)

	got, err := c.Embed(context.Background(), "hostel fees")
	require.NoError(t, err)
	assert.Len(t, got, DefaultDimension)
	assert.Equal(t, DefaultEmbeddingModel, models.embedModel)
	require.NotNil(t, models.embedConfig.OutputDimensionality)
	assert.Equal(t, int32(DefaultDimension), *models.embedConfig.OutputDimensionality)
	assert.Equal(t, DefaultTaskType, models.embedConfig.TaskType)
}

func TestEmbedErrors(t *testing.T) {
	t.Parallel()

	c := newWithModels(Config{}, &fakeModels{err: errors.New("quota")})
	_, err := c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, crawler.ErrEmbedding)

	c = newWithModels(Config{}, &fakeModels{embedResp: &genai.EmbedContentResponse{}})
	_, err = c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, crawler.ErrEmbedding)

	c = newWithModels(Config{}, &fakeModels{embedResp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1, 2}}},
	}})
	_, err = c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, crawler.ErrEmbedding)
}

func TestGenerateReturnsText(t *testing.T) {
	t.Parallel()

	models := &fakeModels{genResp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: " The fee is 1.5 lakh. "}}},
		}},
	}}
	c := newWithModels(Config{}, models)

	got, err := c.Generate(context.Background(), "What is the fee?")
	require.NoError(t, err)
	assert.Equal(t, "The fee is 1.5 lakh.", got)
	assert.Equal(t, "What is the fee?", models.genPrompt)
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	c := newWithModels(Config{}, &fakeModels{err: errors.New("503")})
	_, err := c.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, crawler.ErrGeneration)

	c = newWithModels(Config{}, &fakeModels{genResp: &genai.GenerateContentResponse{}})
	_, err = c.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, crawler.ErrGeneration)
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
