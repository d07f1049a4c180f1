// Package main is the DocVault CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mizushina/docvault/internal/config"
	"github.com/mizushina/docvault/internal/embedding"
	"github.com/mizushina/docvault/internal/extract"
	"github.com/mizushina/docvault/internal/ingest"
	"github.com/mizushina/docvault/internal/llm"
	"github.com/mizushina/docvault/internal/rag"
	"github.com/mizushina/docvault/internal/server"
	"github.com/mizushina/docvault/internal/session"
	"github.com/mizushina/docvault/internal/store"
	"github.com/mizushina/docvault/internal/vision"
	"github.com/mizushina/docvault/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docvault/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "sweep":
		runSweep()
	case "version", "--version", "-v":
		fmt.Printf("docvault version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		if errors.Is(err, store.ErrDimensionMismatch) {
			logger.Error("collection dimensions do not match the configured embedding model",
				zap.Int("configured", cfg.Storage.Dimensions),
				zap.Error(err))
			fmt.Printf("Storage dimension mismatch: %v\n", err)
			fmt.Printf("Recreate the collection with: curl -X DELETE %s/api/v1/admin/storage (or drop %q in Qdrant)\n",
				fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port), cfg.Storage.Collection)
			os.Exit(1)
		}
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Opportunistic cleanup of sessions that went idle while nothing was running.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if expired, err := components.Sessions.Sweep(startupCtx); err != nil {
		logger.Warn("startup sweep failed", zap.Error(err))
	} else if expired > 0 {
		logger.Info("startup sweep expired sessions", zap.Int("count", expired))
	}
	startupCancel()

	srv := server.NewServer(
		components.Ingest,
		components.RAG,
		components.Images,
		components.Sessions,
		components.Store,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runSweep() {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	st := store.NewQdrantStore(&cfg.Storage, logger)
	defer st.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := st.EnsureReady(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Storage not ready: %v\n", err)
		os.Exit(1)
	}
	expired, err := session.NewManager(st, &cfg.Session, logger).Sweep(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Expired %d session(s)\n", expired)
}

// Components holds initialized services.
type Components struct {
	Store    store.VectorStore
	Embedder embedding.Embedder
	Ingest   *ingest.Pipeline
	RAG      *rag.Pipeline
	Images   server.ImageIndexer
	Sessions *session.Manager
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	st := store.NewQdrantStore(&cfg.Storage, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := st.EnsureReady(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder = embedding.NewOpenAIEmbedder(&cfg.Models, cfg.Storage.Dimensions)
	if cfg.Models.CacheMinutes > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, time.Duration(cfg.Models.CacheMinutes)*time.Minute)
	}

	ing := ingest.NewPipeline(st, embedder, extract.NewExtractor(), &cfg.Search, logger)
	answers := rag.NewPipeline(st, embedder, llm.NewOpenAIGenerator(&cfg.Models), &cfg.Search, cfg.Models.RAGSystemPrompt, logger)
	sessions := session.NewManager(st, &cfg.Session, logger)

	var images server.ImageIndexer
	if cfg.Vision.EnabledOrDefault() {
		images = vision.NewPipeline(st, embedder, llm.NewOpenAIDescriber(&cfg.Models), &cfg.Vision, cfg.Models.ImagePrompt, logger)
	}

	return &Components{
		Store:    st,
		Embedder: embedder,
		Ingest:   ing,
		RAG:      answers,
		Images:   images,
		Sessions: sessions,
	}, nil
}

func printUsage() {
	fmt.Println(`docvault - Session-scoped document search and Q&A service

Usage:
  docvault server [flags]   Start the HTTP server
  docvault sweep [flags]    Expire idle sessions once and exit
  docvault version          Show version
  docvault help             Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/docvault/config.yaml)
  --debug            Enable debug logging

Sweep Flags:
  --config string    Config file path

Examples:
  docvault server
  docvault server --config ./config.yaml --debug
  docvault sweep`)
}
