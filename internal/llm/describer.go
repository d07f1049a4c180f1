package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mizushina/docvault/internal/config"
)

// Describer produces a textual description of an image given an instruction
// prompt and PNG bytes.
type Describer interface {
	Describe(ctx context.Context, prompt string, png []byte) (string, error)
}

// OpenAIDescriber describes images through an OpenAI-compatible vision-capable
// chat endpoint.
type OpenAIDescriber struct {
	client *openai.Client
	model  string
}

// NewOpenAIDescriber creates a describer from the models config.
func NewOpenAIDescriber(cfg *config.ModelsConfig) *OpenAIDescriber {
	return &OpenAIDescriber{
		client: newClient(cfg),
		model:  cfg.VisionModel,
	}
}

// Describe sends the prompt and the PNG as a data URL in one multimodal chat
// message and returns the model's text.
func (d *OpenAIDescriber) Describe(ctx context.Context, prompt string, png []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	rsp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(rsp.Choices) == 0 {
		return "", errors.New("empty vision response")
	}
	return rsp.Choices[0].Message.Content, nil
}
