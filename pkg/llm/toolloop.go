package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// buildOpenAITools converts tool definitions into the OpenAI wire format.
func buildOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.Tool, len(tools))
	for i, def := range tools {
		paramsJSON, _ := json.Marshal(def.Parameters)
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(paramsJSON),
			},
		}
	}

	return result
}

// GenerateWithTools performs a chat completion with tool support. The model
// decides which tools to call and in what order; each call is dispatched to
// the executor and its result appended to the conversation. The loop is
// bounded by MaxToolIterations; on hitting the bound the last assistant
// content is returned.
func (c *OpenAIClient) GenerateWithTools(
	ctx context.Context,
	req *ToolRequest,
	executor ToolExecutor,
) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
	}
	tools := buildOpenAITools(req.Tools)

	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = 0.3 // Lower temp for deterministic tool use
	}

	var lastContent string

	for iteration := 0; iteration < c.maxToolIterations; iteration++ {
		c.logger.Debug("Tool-loop iteration",
			zap.Int("iteration", iteration),
			zap.Int("message_count", len(messages)))

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Tools:       tools,
			Temperature: temperature,
		})
		if err != nil {
			return "", ClassifyError(err)
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		choice := resp.Choices[0]
		lastContent = choice.Message.Content

		// No tool calls means the model has answered.
		if len(choice.Message.ToolCalls) == 0 {
			return choice.Message.Content, nil
		}

		messages = append(messages, choice.Message)

		for _, tc := range choice.Message.ToolCalls {
			result, err := executor.ExecuteTool(ctx, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				// Hand the failure back to the model so it can adjust
				// instead of aborting the whole completion.
				result = fmt.Sprintf("tool error: %v", err)
				c.logger.Warn("Tool execution failed",
					zap.String("tool", tc.Function.Name),
					zap.Error(err))
			}

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	c.logger.Warn("Tool-loop iteration bound reached",
		zap.Int("max_iterations", c.maxToolIterations))
	return lastContent, nil
}
