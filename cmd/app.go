package main

import (
	"context"
	"fmt"

	"github.com/bilgisen/wastewatch/internal/ai"
	"github.com/bilgisen/wastewatch/internal/cache"
	"github.com/bilgisen/wastewatch/internal/config"
	"github.com/bilgisen/wastewatch/internal/export"
	"github.com/bilgisen/wastewatch/internal/feed"
	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/pipeline"
	"github.com/bilgisen/wastewatch/internal/publish"
	"github.com/bilgisen/wastewatch/internal/storage"
)

// app is the wiring shared by every command.
type app struct {
	cfg          *config.Config
	store        storage.Store
	seen         cache.SeenCache
	processor    *feed.Processor
	generator    *ai.Generator
	publisher    *publish.Publisher
	exporter     *export.Exporter
	orchestrator *pipeline.Orchestrator
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {

	var store storage.Store
	if cfg.DBDriver == "memory" {
		store = storage.NewMemoryStore()
	} else {
		gs, err := storage.Open(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = gs
	}

	var seen cache.SeenCache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.RedisPrefix, cfg.CacheTTL)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		seen = rc
	} else {
		seen = cache.NewMemoryCache(cfg.CacheTTL)
	}

	var extractor feed.ContentExtractor
	if cfg.ExtractContent {
		extractor = feed.NewPageExtractor(cfg.FeedTimeout)
	}
	processor := feed.NewProcessor(store, seen,
		feed.NewFetcher(cfg.FeedTimeout, cfg.MaxConcurrency),
		feed.NewRelevanceFilter(cfg.RelevanceTerms),
		extractor,
		ingestOptions(cfg),
	)

	var completer ai.Completer
	if cfg.GenerationServiceAvailable() {
		completer = ai.NewChatClient(ai.ChatConfig{
			APIKey:      cfg.AIApiKey,
			BaseURL:     cfg.AIBaseURL,
			Model:       cfg.AIModel,
			Timeout:     cfg.AITimeout,
			MaxTokens:   cfg.AIMaxTokens,
			Temperature: cfg.AITemperature,
		})
	} else {
		logger.Warn().Msg("No generation service key configured, drafts use the offline template")
	}
	generator := ai.NewGenerator(store, completer, ai.GeneratorConfig{
		Fallback: cfg.GenerationFallback,
		Timeout:  cfg.AITimeout,
	})

	var remote publish.ContentSystem
	if cfg.ContentSystemAvailable() {
		remote = publish.NewWordPressClient(publish.WordPressConfig{
			URL:         cfg.WordPressURL,
			Username:    cfg.WordPressUsername,
			AppPassword: cfg.WordPressAppPassword,
			Timeout:     cfg.WordPressTimeout,
		})
	} else {
		logger.Warn().Msg("WordPress not configured, publications are simulated")
	}
	publisher := publish.NewPublisher(store, remote, cfg.WordPressTimeout)

	var uploader export.Uploader
	if cfg.ObjectStorageEnabled() {
		r2, err := export.NewR2Uploader(ctx, export.R2Config{
			Endpoint:  cfg.R2Endpoint,
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			Bucket:    cfg.R2Bucket,
			PublicURL: cfg.R2PublicURL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Object storage disabled")
		} else {
			uploader = r2
		}
	}
	exporter, err := export.NewExporter(store, cfg.ExportDir, uploader)
	if err != nil {
		_ = seen.Close()
		_ = store.Close()
		return nil, err
	}

	orchestrator := pipeline.New(store, processor, generator, publisher, pipeline.Config{
		Sources:      cfg.Feeds,
		AutoGenerate: cfg.AutoGenerate,
		AutoPublish:  cfg.AutoPublish,
		MaxPerRun:    cfg.MaxArticlesPerRun,
		RunTimeout:   cfg.RunTimeout,
	})

	return &app{
		cfg:          cfg,
		store:        store,
		seen:         seen,
		processor:    processor,
		generator:    generator,
		publisher:    publisher,
		exporter:     exporter,
		orchestrator: orchestrator,
	}, nil
}

func ingestOptions(cfg *config.Config) feed.Options {
	return feed.Options{
		MaxPerFeed: cfg.MaxItemsPerFeed,
		MaxAge:     cfg.MaxArticleAge,
	}
}

func (a *app) Close() {
	if err := a.seen.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing seen cache")
	}
	if err := a.store.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing store")
	}
}
