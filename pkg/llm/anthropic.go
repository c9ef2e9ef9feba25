package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient provides chat completions via the Anthropic Messages
// API. Anthropic has no embedding endpoint, so embedding calls are
// delegated to a paired OpenAI-compatible embedder.
type AnthropicClient struct {
	client   *anthropic.Client
	model    string
	embedder Client
	logger   *zap.Logger
}

// NewAnthropicClient creates an Anthropic chat client with embeddings
// delegated to embedder.
func NewAnthropicClient(cfg *Config, embedder Client, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey),
		model:    cfg.Model,
		embedder: embedder,
		logger:   logger.Named("llm-anthropic"),
	}, nil
}

// GenerateResponse generates a chat completion response.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	temp := float32(temperature)

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      systemMessage,
		MaxTokens:   4096,
		Temperature: &temp,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	content := resp.GetFirstContentText()
	if content == "" {
		return "", fmt.Errorf("no content in response")
	}

	c.logger.Info("LLM request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return content, nil
}

// CreateEmbedding delegates to the paired embedder.
func (c *AnthropicClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	return c.embedder.CreateEmbedding(ctx, input)
}

// CreateEmbeddings delegates to the paired embedder.
func (c *AnthropicClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	return c.embedder.CreateEmbeddings(ctx, inputs)
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the Anthropic API endpoint.
func (c *AnthropicClient) GetEndpoint() string {
	return "https://api.anthropic.com"
}
