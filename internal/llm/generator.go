// Package llm wraps the chat model provider for answer generation and vision
// descriptions.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mizushina/docvault/internal/config"
)

// answerTemperature keeps answers near-deterministic.
const answerTemperature = 0.1

// Generator produces an answer for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIGenerator generates answers through an OpenAI-compatible chat endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator from the models config.
func NewOpenAIGenerator(cfg *config.ModelsConfig) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: newClient(cfg),
		model:  cfg.AnswerModel,
	}
}

// Generate runs one chat completion for the prompt and returns its text.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	rsp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: answerTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(rsp.Choices) == 0 || rsp.Choices[0].Message.Content == "" {
		return "", errors.New("empty completion response")
	}
	return rsp.Choices[0].Message.Content, nil
}

func newClient(cfg *config.ModelsConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
