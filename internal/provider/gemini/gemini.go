// Package gemini adapts the Google GenAI SDK to the embedder and generator contracts.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

// Defaults for Config.
const (
	DefaultEmbeddingModel  = "text-embedding-004"
	DefaultGenerationModel = "gemini-1.5-flash"
	DefaultDimension       = 768
	DefaultTaskType        = "RETRIEVAL_DOCUMENT"
)

// Config selects models and credentials.
type Config struct {
	APIKey          string
	EmbeddingModel  string
	GenerationModel string
	Dimension       int
	TaskType        string
}

type modelsAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements crawler.Embedder and crawler.Generator.
type Client struct {
	cfg    Config
	models modelsAPI
}

// New connects to the Gemini API.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newWithModels(cfg, client.Models), nil
}

func newWithModels(cfg Config, models modelsAPI) *Client {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = DefaultGenerationModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.TaskType == "" {
		cfg.TaskType = DefaultTaskType
	}
	return &Client{cfg: cfg, models: models}
}

// Dimension returns the configured embedding width.
func (c *Client) Dimension() int {
	return c.cfg.Dimension
}

// Embed returns one embedding for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.models.EmbedContent(ctx, c.cfg.EmbeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             c.cfg.TaskType,
			OutputDimensionality: genai.Ptr(int32(c.cfg.Dimension)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed: %w", crawler.ErrEmbedding, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no embedding", crawler.ErrEmbedding)
	}
	values := resp.Embeddings[0].Values
	if len(values) != c.cfg.Dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", crawler.ErrEmbedding, len(values), c.cfg.Dimension)
	}
	return values, nil
}

// Generate returns the model's text response to prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.cfg.GenerationModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %w", crawler.ErrGeneration, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: gemini returned no response", crawler.ErrGeneration)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned empty text", crawler.ErrGeneration)
	}
	return text, nil
}
