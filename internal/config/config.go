// Package config provides configuration loading and structs for the docvault server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Models  ModelsConfig  `yaml:"models"`
	Search  SearchConfig  `yaml:"search"`
	Session SessionConfig `yaml:"session"`
	Vision  VisionConfig  `yaml:"vision"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// StorageConfig holds vector store settings. The collection dimensionality must
// match the embedding model's output size; changing one without the other is a
// configuration mismatch that blocks writes until the collection is recreated.
type StorageConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	Collection     string `yaml:"collection"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the HTTP client timeout for store calls.
func (s *StorageConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ModelsConfig holds model provider settings. One provider serves embeddings,
// answers, and vision descriptions so all vectors live in one embedding space.
type ModelsConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	EmbeddingModel  string `yaml:"embedding_model"`
	AnswerModel     string `yaml:"answer_model"`
	VisionModel     string `yaml:"vision_model"`
	RAGSystemPrompt string `yaml:"rag_system_prompt"`
	ImagePrompt     string `yaml:"image_prompt"`
	CacheMinutes    int    `yaml:"cache_minutes"`
}

// SearchConfig holds chunking and retrieval settings. Sizes are in characters.
type SearchConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	ContextSize  int `yaml:"context_size"`
	TopK         int `yaml:"top_k"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	TTLMinutes       int `yaml:"ttl_minutes"`
	SweepPageSize    int `yaml:"sweep_page_size"`
	FilenamePageSize int `yaml:"filename_page_size"`
}

// TTL returns the session time-to-live as a duration.
func (s *SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// VisionConfig holds the PDF image description settings.
type VisionConfig struct {
	Enabled              *bool `yaml:"enabled"`
	MinImageWidth        int   `yaml:"min_image_width"`
	MinImageHeight       int   `yaml:"min_image_height"`
	RenderDPI            int   `yaml:"render_dpi"`
	CallDelaySeconds     int   `yaml:"call_delay_seconds"`
	MaxRetries           int   `yaml:"max_retries"`
	MinDescriptionLength int   `yaml:"min_description_length"`
}

// EnabledOrDefault returns whether PDF image processing is on; defaults to true when unset.
func (v *VisionConfig) EnabledOrDefault() bool {
	if v.Enabled != nil {
		return *v.Enabled
	}
	return true
}

// CallDelay returns the fixed delay applied before each vision model call.
func (v *VisionConfig) CallDelay() time.Duration {
	return time.Duration(v.CallDelaySeconds) * time.Second
}

// Load reads and parses the config file at path and applies defaults.
// Secrets left empty in the file fall back to environment variables
// (QDRANT_API_KEY, OPENAI_API_KEY). Returns an error if the file cannot
// be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	if cfg.Storage.APIKey == "" {
		cfg.Storage.APIKey = os.Getenv("QDRANT_API_KEY")
	}
	if cfg.Models.APIKey == "" {
		cfg.Models.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}
