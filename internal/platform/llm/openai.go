package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"appraze/internal/domain/generation"
)

func (c *Client) completeOpenAI(ctx context.Context, req generation.ChatRequest) (string, error) {
	clientConfig := openai.DefaultConfig(c.apiKey)
	if c.baseURL != "" {
		clientConfig.BaseURL = c.baseURL
	}
	clientConfig.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(clientConfig)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", generation.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
