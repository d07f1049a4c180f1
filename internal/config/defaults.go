package config

// Default prompts. Both can be overridden in the config file.
const (
	defaultRAGSystemPrompt = "You are a document assistant. Answer the user's query using only the " +
		"information in the provided context. If the context does not contain the answer, say that " +
		"the answer is not in the provided documents."

	defaultImagePrompt = "Describe the visual content of this document page: charts, diagrams, " +
		"photos, tables and their captions or axis labels. Be factual and concise. If the page has " +
		"no meaningful visual content, reply with exactly \"None\"."
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Storage.URL == "" {
		cfg.Storage.URL = "http://localhost:6333"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "docvault"
	}
	if cfg.Storage.Dimensions == 0 {
		cfg.Storage.Dimensions = 768
	}
	if cfg.Storage.TimeoutSeconds == 0 {
		cfg.Storage.TimeoutSeconds = 15
	}
	if cfg.Models.EmbeddingModel == "" {
		cfg.Models.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Models.AnswerModel == "" {
		cfg.Models.AnswerModel = "gpt-4o-mini"
	}
	if cfg.Models.VisionModel == "" {
		cfg.Models.VisionModel = "gpt-4o-mini"
	}
	if cfg.Models.RAGSystemPrompt == "" {
		cfg.Models.RAGSystemPrompt = defaultRAGSystemPrompt
	}
	if cfg.Models.ImagePrompt == "" {
		cfg.Models.ImagePrompt = defaultImagePrompt
	}
	if cfg.Models.CacheMinutes == 0 {
		cfg.Models.CacheMinutes = 30
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 1000
	}
	if cfg.Search.ChunkOverlap == 0 {
		cfg.Search.ChunkOverlap = 150
	}
	if cfg.Search.ContextSize == 0 {
		cfg.Search.ContextSize = 5
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 10
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 60
	}
	if cfg.Session.SweepPageSize == 0 {
		cfg.Session.SweepPageSize = 100
	}
	if cfg.Session.FilenamePageSize == 0 {
		cfg.Session.FilenamePageSize = 1000
	}
	if cfg.Vision.MinImageWidth == 0 {
		cfg.Vision.MinImageWidth = 300
	}
	if cfg.Vision.MinImageHeight == 0 {
		cfg.Vision.MinImageHeight = 120
	}
	if cfg.Vision.RenderDPI == 0 {
		cfg.Vision.RenderDPI = 450
	}
	if cfg.Vision.CallDelaySeconds == 0 {
		cfg.Vision.CallDelaySeconds = 4
	}
	if cfg.Vision.MaxRetries == 0 {
		cfg.Vision.MaxRetries = 3
	}
	if cfg.Vision.MinDescriptionLength == 0 {
		cfg.Vision.MinDescriptionLength = 20
	}
}
