// Package embedding provides text embedding via the model provider, with caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must return
// vectors of exactly Dimensions() length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// EmbedOrZero embeds text and substitutes a zero vector of full dimensionality
// on failure, so indexing stays dimensionally consistent when the provider is
// down. The returned bool reports whether the embedding is real.
func EmbedOrZero(ctx context.Context, e Embedder, text string) ([]float32, bool) {
	vec, err := e.Embed(ctx, text)
	if err != nil || len(vec) != e.Dimensions() {
		return make([]float32, e.Dimensions()), false
	}
	return vec, true
}
