package generation

import (
	"context"
	"errors"
	"strings"
)

const (
	Temperature = 0.7
	MaxTokens   = 2048
)

var ErrEmptyCompletion = errors.New("model returned no content")

// ChatRequest is one system plus user exchange sent to a completion provider.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

type Generator struct {
	completer Completer
	model     string
}

func NewGenerator(completer Completer, model string) *Generator {
	return &Generator{completer: completer, model: model}
}

// GenerateReview sends a single request; there is no retry.
func (g *Generator) GenerateReview(ctx context.Context, p Params) (string, error) {
	text, err := g.completer.Complete(ctx, ChatRequest{
		Model:       g.model,
		System:      SystemPrompt,
		User:        BuildUserPrompt(p),
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
