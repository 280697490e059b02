package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/bilgisen/wastewatch/internal/ai"
	"github.com/bilgisen/wastewatch/internal/api"
	"github.com/bilgisen/wastewatch/internal/config"
	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/models"
)

var cli struct {
	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP API and scheduler."`
	Run      RunCmd      `cmd:"" help:"Execute one full pipeline run."`
	Scrape   ScrapeCmd   `cmd:"" help:"Ingest all configured feeds once."`
	Generate GenerateCmd `cmd:"" help:"Generate drafts for pending articles."`
	Publish  PublishCmd  `cmd:"" help:"Publish one draft."`
	Export   ExportCmd   `cmd:"" help:"Export one draft to HTML."`
	Seed     SeedCmd     `cmd:"" help:"Insert the demo articles."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("wastewatch"),
		kong.Description("Waste and water news monitoring and drafting pipeline."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	output := "stdout"
	if cfg.LogFile != "" {
		output = cfg.LogFile
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: output,
		Pretty: cfg.IsDevelopment(),
	}); err != nil {
		panic(err)
	}

	kctx.FatalIfErrorf(kctx.Run(cfg))
}

// withApp builds the wiring, runs fn and releases resources.
func withApp(cfg *config.Config, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type ServeCmd struct {
	Port string `help:"Listen port, overrides PORT."`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	if c.Port != "" {
		cfg.Port = c.Port
	}
	logger.Info().Str("env", cfg.Env).Str("db_driver", cfg.DBDriver).Msg("Starting WasteWatch")

	a, err := buildApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if cfg.SeedDemoOnEmpty {
		stats, err := a.store.CountsByStatus(ctx)
		if err != nil {
			return err
		}
		if stats.TotalArticles == 0 {
			n, err := a.processor.SeedDemo(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int("seeded", n).Msg("Seeded demo articles into empty store")
		}
	}

	if cfg.SchedulerAutostart {
		if err := a.orchestrator.Start(cfg.ScrapeInterval); err != nil {
			return err
		}
	}

	server := api.NewApp(api.NewHandlers(api.Deps{
		Store:        a.store,
		Seen:         a.seen,
		Processor:    a.processor,
		Generator:    a.generator,
		Publisher:    a.publisher,
		Exporter:     a.exporter,
		Orchestrator: a.orchestrator,
		Sources:      cfg.Feeds,
		Interval:     cfg.ScrapeInterval,
	}))

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting server")
		errCh <- server.Listen(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info().Msg("Shutting down server...")
	a.orchestrator.Stop()

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.ShutdownWithContext(sctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := a.orchestrator.Wait(sctx); err != nil {
		logger.Warn().Err(err).Msg("Scheduled run still executing at shutdown")
	}

	logger.Info().Msg("Server exited properly")
	return nil
}

type RunCmd struct{}

func (c *RunCmd) Run(cfg *config.Config) error {
	return withApp(cfg, func(ctx context.Context, a *app) error {
		if cfg.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
			defer cancel()
		}
		summary, err := a.orchestrator.RunOnce(ctx, models.TriggerManual)
		if summary != nil {
			if perr := printJSON(summary); perr != nil {
				return perr
			}
		}
		return err
	})
}

type ScrapeCmd struct{}

func (c *ScrapeCmd) Run(cfg *config.Config) error {
	return withApp(cfg, func(ctx context.Context, a *app) error {
		res, err := a.processor.Ingest(ctx, cfg.Feeds)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

type GenerateCmd struct {
	Limit      int    `default:"5" help:"Maximum pending articles to draft."`
	Article    uint   `help:"Draft a single article by id."`
	Prompt     string `type:"existingfile" help:"File holding a prompt template."`
	Regenerate bool   `help:"Draft again even if the article was already drafted."`
}

func (c *GenerateCmd) Run(cfg *config.Config) error {
	opts := ai.Options{Regenerate: c.Regenerate}
	if c.Prompt != "" {
		data, err := os.ReadFile(c.Prompt)
		if err != nil {
			return err
		}
		opts.Prompt = string(data)
	}

	return withApp(cfg, func(ctx context.Context, a *app) error {
		if c.Article != 0 {
			res, err := a.generator.GenerateArticle(ctx, c.Article, opts)
			if err != nil {
				return err
			}
			return printJSON(res)
		}
		res, err := a.generator.GeneratePending(ctx, c.Limit, opts)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

type PublishCmd struct {
	ID    uint `arg:"" help:"Draft id."`
	Force bool `help:"Publish again even if already published."`
}

func (c *PublishCmd) Run(cfg *config.Config) error {
	return withApp(cfg, func(ctx context.Context, a *app) error {
		res, err := a.publisher.Publish(ctx, c.ID, c.Force)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

type ExportCmd struct {
	ID uint `arg:"" help:"Draft id."`
}

func (c *ExportCmd) Run(cfg *config.Config) error {
	return withApp(cfg, func(ctx context.Context, a *app) error {
		res, err := a.exporter.Export(ctx, c.ID)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

type SeedCmd struct{}

func (c *SeedCmd) Run(cfg *config.Config) error {
	return withApp(cfg, func(ctx context.Context, a *app) error {
		start := time.Now()
		n, err := a.processor.SeedDemo(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("seeded", n).Dur("duration", time.Since(start)).Msg("Demo articles seeded")
		return nil
	})
}
