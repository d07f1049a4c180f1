// Package rag assembles retrieval-augmented answers from one session's records.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/embedding"
	"github.com/mizushina/docvault/internal/llm"
	"github.com/mizushina/docvault/internal/models"
	"github.com/mizushina/docvault/internal/store"
	"github.com/mizushina/docvault/pkg/utils"
)

// NotFoundAnswer is returned without a model call when retrieval yields no
// context. It is the only short-circuit: any non-empty context goes to the model.
const NotFoundAnswer = "Not found in the provided documents"

// Snippet is one piece of retrieved context, returned alongside the answer so
// the caller can show what grounded it.
type Snippet struct {
	SourceType models.SourceType `json:"source_type"`
	Filename   string            `json:"filename"`
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
}

// Result is a generated answer plus the context it was grounded in.
type Result struct {
	Answer  string    `json:"answer"`
	Context []Snippet `json:"context"`
}

// Pipeline answers queries against one session's indexed records.
type Pipeline struct {
	store        store.VectorStore
	embedder     embedding.Embedder
	generator    llm.Generator
	systemPrompt string
	contextSize  int
	topK         int
	logger       *zap.Logger
}

// NewPipeline creates a retrieval pipeline with the given dependencies.
func NewPipeline(
	st store.VectorStore,
	embedder embedding.Embedder,
	generator llm.Generator,
	searchCfg *config.SearchConfig,
	systemPrompt string,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		store:        st,
		embedder:     embedder,
		generator:    generator,
		systemPrompt: systemPrompt,
		contextSize:  searchCfg.ContextSize,
		topK:         searchCfg.TopK,
		logger:       logger,
	}
}

// Answer retrieves the session's most similar records and generates an answer
// grounded in them. Failures below the model never surface as errors: a failed
// search yields the not-found answer, and a failed generation yields an
// error-describing answer string.
func (p *Pipeline) Answer(ctx context.Context, sessionID, query string) *Result {
	p.logger.Info("query",
		zap.String("session_id", sessionID),
		zap.String("query", utils.Truncate(query, 200)))

	vec, real := embedding.EmbedOrZero(ctx, p.embedder, query)
	if !real {
		p.logger.Warn("query embedding failed", zap.String("session_id", sessionID))
	}

	results, err := p.store.Search(ctx, vec, sessionID, p.topK)
	if err != nil {
		p.logger.Error("search failed", zap.String("session_id", sessionID), zap.Error(err))
		results = nil
	}
	if len(results) > p.contextSize {
		results = results[:p.contextSize]
	}
	if len(results) == 0 {
		return &Result{Answer: NotFoundAnswer, Context: []Snippet{}}
	}

	snippets := make([]Snippet, 0, len(results))
	lines := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, Snippet{
			SourceType: r.Payload.SourceType,
			Filename:   r.Payload.Filename,
			Text:       r.Payload.Document,
			Score:      r.Score,
		})
		lines = append(lines, fmt.Sprintf("[%s] %s", r.Payload.SourceType, r.Payload.Document))
	}

	prompt := fmt.Sprintf("%s\n\nContext:\n%s\n\nUser Query: %s\n\nAnswer:",
		p.systemPrompt, strings.Join(lines, "\n\n"), query)

	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		p.logger.Error("answer generation failed", zap.String("session_id", sessionID), zap.Error(err))
		return &Result{
			Answer:  fmt.Sprintf("Error generating answer: %v", err),
			Context: snippets,
		}
	}
	return &Result{Answer: answer, Context: snippets}
}
