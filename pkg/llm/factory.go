package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/config"
)

// NewFromConfig builds the chat client and the embedding client selected
// by configuration. The embedding client is always OpenAI-compatible; for
// the anthropic provider the chat client delegates embeddings to it.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (chat Client, embedder Client, err error) {
	embedClient, err := NewOpenAIClient(&Config{
		Endpoint:       cfg.Embedding.Endpoint,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.Embedding.Model,
		APIKey:         cfg.Embedding.APIKey,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding client: %w", err)
	}

	switch cfg.LLM.Provider {
	case "openai", "openai_compatible", "":
		client, err := NewOpenAIClient(&Config{
			Endpoint:          cfg.LLM.Endpoint,
			Model:             cfg.LLM.Model,
			EmbeddingModel:    cfg.Embedding.Model,
			APIKey:            cfg.LLM.APIKey,
			MaxToolIterations: cfg.Synthesis.MaxToolSteps,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("chat client: %w", err)
		}
		return client, embedClient, nil

	case "anthropic":
		client, err := NewAnthropicClient(&Config{
			Model:  cfg.LLM.Model,
			APIKey: cfg.LLM.APIKey,
		}, embedClient, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("chat client: %w", err)
		}
		return client, embedClient, nil

	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
