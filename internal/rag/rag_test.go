package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/embedding"
	"github.com/mizushina/docvault/internal/models"
	"github.com/mizushina/docvault/internal/store"
)

type scriptedGenerator struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func searchConfig() *config.SearchConfig {
	return &config.SearchConfig{ChunkSize: 1000, ChunkOverlap: 150, ContextSize: 2, TopK: 10}
}

func indexed(t *testing.T, st store.VectorStore, e embedding.Embedder, sessionID, text, filename string, srcType models.SourceType) {
	t.Helper()
	vec, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	rec := models.NewDocumentRecord(sessionID, filename, text, vec)
	rec.Payload.SourceType = srcType
	if err := st.Upsert(context.Background(), []models.Record{rec}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestAnswerEmptySessionShortCircuits(t *testing.T) {
	st := store.NewMemoryStore(8)
	emb := embedding.NewMockEmbedder(8)
	gen := &scriptedGenerator{answer: "should not be called"}
	p := NewPipeline(st, emb, gen, searchConfig(), "You are helpful.", zap.NewNop())

	res := p.Answer(context.Background(), "empty-session", "anything")
	if res.Answer != NotFoundAnswer {
		t.Fatalf("answer = %q, want %q", res.Answer, NotFoundAnswer)
	}
	if len(res.Context) != 0 {
		t.Fatalf("context = %v, want empty", res.Context)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called %d times for empty session", gen.calls)
	}
}

func TestAnswerGroundsPromptInContext(t *testing.T) {
	st := store.NewMemoryStore(8)
	emb := embedding.NewMockEmbedder(8)
	gen := &scriptedGenerator{answer: "the capital is Berlin"}
	p := NewPipeline(st, emb, gen, searchConfig(), "You are helpful.", zap.NewNop())

	indexed(t, st, emb, "s1", "Berlin is the capital of Germany", "geo.txt", models.SourceDocument)
	indexed(t, st, emb, "s1", "a chart of capitals", "geo.pdf", models.SourceImageDescription)

	res := p.Answer(context.Background(), "s1", "capital of Germany?")
	if res.Answer != "the capital is Berlin" {
		t.Fatalf("answer = %q", res.Answer)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}
	if !strings.Contains(gen.prompt, "[document] Berlin is the capital of Germany") {
		t.Fatalf("prompt missing tagged document line:\n%s", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "[image_description] a chart of capitals") {
		t.Fatalf("prompt missing tagged image line:\n%s", gen.prompt)
	}
	if !strings.HasPrefix(gen.prompt, "You are helpful.\n\nContext:\n") {
		t.Fatalf("prompt does not start with system prompt and context header:\n%s", gen.prompt)
	}
	if !strings.HasSuffix(gen.prompt, "User Query: capital of Germany?\n\nAnswer:") {
		t.Fatalf("prompt does not end with query and answer cue:\n%s", gen.prompt)
	}
	if len(res.Context) != 2 {
		t.Fatalf("context size = %d, want 2", len(res.Context))
	}
	for _, s := range res.Context {
		if s.Filename == "" || s.Text == "" {
			t.Fatalf("snippet missing fields: %+v", s)
		}
	}
}

func TestAnswerRespectsContextSize(t *testing.T) {
	st := store.NewMemoryStore(8)
	emb := embedding.NewMockEmbedder(8)
	gen := &scriptedGenerator{answer: "ok"}
	p := NewPipeline(st, emb, gen, searchConfig(), "sys", zap.NewNop())

	for _, text := range []string{"alpha", "beta", "gamma", "delta"} {
		indexed(t, st, emb, "s1", text, "f.txt", models.SourceDocument)
	}

	res := p.Answer(context.Background(), "s1", "alpha")
	if len(res.Context) != 2 {
		t.Fatalf("context size = %d, want 2", len(res.Context))
	}
}

func TestAnswerIsolatedPerSession(t *testing.T) {
	st := store.NewMemoryStore(8)
	emb := embedding.NewMockEmbedder(8)
	gen := &scriptedGenerator{answer: "leaked"}
	p := NewPipeline(st, emb, gen, searchConfig(), "sys", zap.NewNop())

	indexed(t, st, emb, "other", "secret of another tenant", "s.txt", models.SourceDocument)

	res := p.Answer(context.Background(), "mine", "secret")
	if res.Answer != NotFoundAnswer {
		t.Fatalf("answer = %q, want %q", res.Answer, NotFoundAnswer)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called despite foreign-session-only data")
	}
}

func TestAnswerGenerationFailureBecomesAnswerString(t *testing.T) {
	st := store.NewMemoryStore(8)
	emb := embedding.NewMockEmbedder(8)
	gen := &scriptedGenerator{err: errors.New("model overloaded")}
	p := NewPipeline(st, emb, gen, searchConfig(), "sys", zap.NewNop())

	indexed(t, st, emb, "s1", "some context", "f.txt", models.SourceDocument)

	res := p.Answer(context.Background(), "s1", "question")
	if !strings.Contains(res.Answer, "Error generating answer") || !strings.Contains(res.Answer, "model overloaded") {
		t.Fatalf("answer = %q, want error-describing string", res.Answer)
	}
	if len(res.Context) != 1 {
		t.Fatalf("context should still carry retrieved snippets, got %d", len(res.Context))
	}
}
