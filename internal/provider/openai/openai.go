// Package openaiprovider adapts OpenAI-compatible APIs to the embedder and generator contracts.
package openaiprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

// Defaults for Config.
const (
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultGenerationModel = "gpt-4o-mini"
	DefaultDimension       = 768
)

// Config selects the endpoint, models and credentials. BaseURL may point at
// any OpenAI-compatible server.
type Config struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	GenerationModel string
	Dimension       int
	SystemPrompt    string
}

// Client implements crawler.Embedder and crawler.Generator.
type Client struct {
	cfg    Config
	client *openai.Client
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai api key or base url is required")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = DefaultGenerationModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{cfg: cfg, client: openai.NewClientWithConfig(conf)}, nil
}

// Dimension returns the configured embedding width.
func (c *Client) Dimension() int {
	return c.cfg.Dimension
}

// Embed returns one embedding for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Dimensions: c.cfg.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embed: %w", crawler.ErrEmbedding, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: openai returned no embedding", crawler.ErrEmbedding)
	}
	return resp.Data[0].Embedding, nil
}

// Generate returns the first completion choice for prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.cfg.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.GenerationModel,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai chat: %w", crawler.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", crawler.ErrGeneration)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
