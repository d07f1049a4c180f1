package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/embedding"
	"github.com/mizushina/docvault/internal/extract"
	"github.com/mizushina/docvault/internal/models"
	"github.com/mizushina/docvault/internal/store"
)

// Pipeline indexes extracted document text into the vector store. Records are
// built, handed to the store, and discarded; the pipeline keeps no state
// between calls.
type Pipeline struct {
	store     store.VectorStore
	embedder  embedding.Embedder
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger
}

// NewPipeline creates an ingestion pipeline with the given dependencies.
func NewPipeline(
	st store.VectorStore,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		store:     st,
		embedder:  embedder,
		extractor: extractor,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:    logger,
	}
}

// IndexText chunks, embeds, and stores text for the session in one batch
// upsert. Empty text produces zero records and no error. A failed embedding
// for one chunk does not abort the document: a zero vector is substituted so
// indexing is never silently incomplete. Returns the number of records written
// and the upsert error, if any; callers treat that as non-fatal.
func (p *Pipeline) IndexText(ctx context.Context, sessionID, filename, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	chunks := p.chunker.Chunk(text)
	records := make([]models.Record, 0, len(chunks))
	for i, chunk := range chunks {
		vec, real := embedding.EmbedOrZero(ctx, p.embedder, chunk)
		if !real {
			p.logger.Warn("embedding failed, substituting zero vector",
				zap.String("session_id", sessionID),
				zap.String("filename", filename),
				zap.Int("chunk", i))
		}
		records = append(records, models.NewDocumentRecord(sessionID, filename, chunk, vec))
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		p.logger.Error("failed to store document chunks",
			zap.String("session_id", sessionID),
			zap.String("filename", filename),
			zap.Int("chunks", len(records)),
			zap.Error(err))
		return 0, fmt.Errorf("store %d chunks of %s: %w", len(records), filename, err)
	}
	p.logger.Info("indexed document",
		zap.String("session_id", sessionID),
		zap.String("filename", filename),
		zap.Int("chunks", len(records)))
	return len(records), nil
}

// IndexFile extracts text from the file at path and indexes it under filename
// (the original upload name). Extraction failures are absorbed: the document
// simply contributes no text records.
func (p *Pipeline) IndexFile(ctx context.Context, sessionID, path, filename string) (int, error) {
	text, err := p.extractor.Extract(path)
	if err != nil {
		p.logger.Error("extraction failed, indexing no text",
			zap.String("filename", filename),
			zap.Error(err))
		text = ""
	}
	return p.IndexText(ctx, sessionID, filename, text)
}
