// Package llm provides chat-completion and embedding clients for
// OpenAI-compatible and Anthropic endpoints.
package llm

import (
	"context"
)

// Client defines the interface for LLM operations, combining generative
// (chat completion) and embedding capabilities. Use this interface for
// dependency injection to enable mocking in tests.
type Client interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs in one
	// batched provider call.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// ToolExecutor runs a named tool with JSON-encoded arguments and returns
// the textual result handed back to the model.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, arguments string) (string, error)
}

// ToolCaller is implemented by clients that support the bounded
// tool-calling loop used by the retrieval-augmented orchestrator.
type ToolCaller interface {
	// GenerateWithTools runs a chat completion that may call tools,
	// iterating until the model answers in plain text or the iteration
	// bound is hit.
	GenerateWithTools(ctx context.Context, req *ToolRequest, executor ToolExecutor) (string, error)
}

// ToolRequest describes a tool-calling chat completion.
type ToolRequest struct {
	SystemPrompt string
	Prompt       string
	Tools        []ToolDefinition
	Temperature  float64
}

// Ensure OpenAIClient implements both interfaces at compile time.
var (
	_ Client     = (*OpenAIClient)(nil)
	_ ToolCaller = (*OpenAIClient)(nil)
	_ Client     = (*AnthropicClient)(nil)
)
