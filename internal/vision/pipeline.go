package vision

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/embedding"
	"github.com/mizushina/docvault/internal/llm"
	"github.com/mizushina/docvault/internal/models"
	"github.com/mizushina/docvault/internal/store"
)

// Pipeline scans uploaded PDFs for image-heavy pages and indexes model
// descriptions of them as searchable records.
type Pipeline struct {
	store     store.VectorStore
	embedder  embedding.Embedder
	describer llm.Describer
	prompt    string
	cfg       config.VisionConfig
	open      Opener
	sleep     func(time.Duration)
	logger    *zap.Logger
}

// NewPipeline creates the description pipeline with the given dependencies.
func NewPipeline(
	st store.VectorStore,
	embedder embedding.Embedder,
	describer llm.Describer,
	visionCfg *config.VisionConfig,
	imagePrompt string,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		store:     st,
		embedder:  embedder,
		describer: describer,
		prompt:    imagePrompt,
		cfg:       *visionCfg,
		open:      OpenPDF,
		sleep:     time.Sleep,
		logger:    logger,
	}
}

// ProcessPDF renders and describes every page carrying at least one embedded
// image larger than the configured minimum, then indexes the descriptions
// under the session. Returns the number of records indexed. Every failure is
// logged and skipped so an upload never fails on the image pass.
func (p *Pipeline) ProcessPDF(ctx context.Context, sessionID, filename, path string) int {
	if !p.cfg.EnabledOrDefault() {
		return 0
	}
	sc, err := p.open(path)
	if err != nil {
		p.logger.Warn("pdf image scan skipped",
			zap.String("filename", filename), zap.Error(err))
		return 0
	}
	defer sc.Close()

	indexed := 0
	for page := 1; page <= sc.PageCount(); page++ {
		if !p.candidate(sc.ImageSizes(page)) {
			continue
		}
		img, rendered, err := sc.RenderPNG(page, p.cfg.RenderDPI)
		if err != nil {
			p.logger.Warn("page render failed",
				zap.String("filename", filename), zap.Int("page", page), zap.Error(err))
			continue
		}
		desc, ok := p.describe(ctx, filename, page, img)
		if !ok {
			continue
		}
		vec, real := embedding.EmbedOrZero(ctx, p.embedder, desc)
		if !real {
			p.logger.Warn("description embedding failed",
				zap.String("filename", filename), zap.Int("page", page))
		}
		rec := models.NewImageDescriptionRecord(
			sessionID,
			fmt.Sprintf("%s_page_%d_fullpage", filename, page),
			desc,
			page,
			fmt.Sprintf("%dx%d", rendered.Width, rendered.Height),
			vec,
		)
		if err := p.store.Upsert(ctx, []models.Record{rec}); err != nil {
			p.logger.Error("description upsert failed",
				zap.String("session_id", sessionID), zap.Int("page", page), zap.Error(err))
			continue
		}
		indexed++
	}
	if indexed > 0 {
		p.logger.Info("pdf images indexed",
			zap.String("session_id", sessionID),
			zap.String("filename", filename),
			zap.Int("records", indexed))
	}
	return indexed
}

// candidate reports whether any embedded image exceeds the minimum size,
// which decides whether the page is worth a model call.
func (p *Pipeline) candidate(sizes []ImageSize) bool {
	for _, s := range sizes {
		if s.Width > p.cfg.MinImageWidth && s.Height > p.cfg.MinImageHeight {
			return true
		}
	}
	return false
}

// describe asks the vision model for a page description, retrying transport
// failures with exponential backoff. A "None" reply means the model found no
// describable content and is not retried. Each attempt waits the fixed call
// delay first to stay under provider rate limits.
func (p *Pipeline) describe(ctx context.Context, filename string, page int, img []byte) (string, bool) {
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		p.sleep(p.cfg.CallDelay())
		desc, err := p.describer.Describe(ctx, p.prompt, img)
		if err != nil {
			p.logger.Warn("vision call failed",
				zap.String("filename", filename),
				zap.Int("page", page),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt < p.cfg.MaxRetries {
				p.sleep(time.Duration(1<<attempt) * time.Second)
			}
			continue
		}
		desc = strings.TrimSpace(desc)
		if desc == "" || strings.EqualFold(desc, "none") {
			return "", false
		}
		if utf8.RuneCountInString(desc) < p.cfg.MinDescriptionLength {
			p.logger.Debug("description too short",
				zap.String("filename", filename), zap.Int("page", page))
			return "", false
		}
		return desc, true
	}
	return "", false
}
