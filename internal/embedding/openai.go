package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mizushina/docvault/internal/config"
)

// OpenAIEmbedder embeds text through an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder from the models config. dimensions is
// the collection dimensionality D; the provider is asked to emit vectors of
// exactly that size.
func NewOpenAIEmbedder(cfg *config.ModelsConfig, dimensions int) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.EmbeddingModel,
		dimensions: dimensions,
	}
}

// Embed returns the embedding for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, errors.New("empty embedding response")
	}
	vec := rsp.Data[0].Embedding
	if len(vec) != e.dimensions {
		return nil, fmt.Errorf("provider returned %d dimensions, expected %d", len(vec), e.dimensions)
	}
	return vec, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for the HTTP-backed embedder.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
