package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/IshaanNene/bookgoat/internal/cache"
	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/engine"
	"github.com/IshaanNene/bookgoat/internal/fetcher"
	"github.com/IshaanNene/bookgoat/internal/observability"
	"github.com/IshaanNene/bookgoat/internal/parser"
	"github.com/IshaanNene/bookgoat/internal/pipeline"
	"github.com/IshaanNene/bookgoat/internal/scraper"
	"github.com/IshaanNene/bookgoat/internal/storage"
)

// robotsAgent is the user-agent token matched against robots.txt groups.
const robotsAgent = "bookgoat"

// app holds everything a stage command needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	runID   string
	engine  *engine.Engine
	closers []io.Closer
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyCLIOverrides(cmd, cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies explicitly set flags on top of file and env.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("batch-size") {
		cfg.Engine.BatchSize = batchSize
	}
	if flags.Changed("delay") {
		d, err := time.ParseDuration(batchDelay)
		if err != nil {
			return fmt.Errorf("invalid --delay %q: %w", batchDelay, err)
		}
		cfg.Engine.InterBatchDelay = d
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if selectorsFile != "" {
		cfg.Site.SelectorsFile = selectorsFile
	}
	return nil
}

// newApp wires the engine, workers, sinks and metrics from configuration.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := observability.NewLogger(cfg.Logging, verbose)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	runID := uuid.New().String()
	logger = logger.With("run_id", runID)

	a := &app{cfg: cfg, logger: logger, runID: runID, closers: []io.Closer{logCloser}}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	selectors, err := config.LoadSelectors(cfg.Site.SelectorsFile)
	if err != nil {
		return fmt.Errorf("load selectors: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	eng := engine.New(cfg, logger)
	eng.SetMetrics(metrics)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		eng.OnProgress(printProgress)
	}
	a.engine = eng
	a.closers = append(a.closers, eng)

	proxy := fetcher.NewProxyManager(&cfg.Proxy, logger)
	sessions := fetcher.NewRodSessionFactory(&cfg.Browser, proxy, logger)

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, proxy, metrics, logger)
	if err != nil {
		return fmt.Errorf("create http fetcher: %w", err)
	}
	a.closers = append(a.closers, httpFetcher)

	// Stage A
	resolver := scraper.NewResolver(cfg, selectors, sessions, logger)
	resolver.SetMetrics(metrics)
	if cfg.Cache.RedisAddr != "" {
		c, err := cache.NewRedisCache(ctx, cfg.Cache, logger)
		if err != nil {
			return fmt.Errorf("connect cache: %w", err)
		}
		resolver.SetCache(c)
		a.closers = append(a.closers, c)
	}
	eng.SetResolveWorker(resolver.Resolve)
	eng.SetPipeline(engine.StageResolve, pipeline.ForResolve(logger, metrics))

	// Stage B
	extractor, err := parser.NewExtractor(selectors.Fields, logger)
	if err != nil {
		return fmt.Errorf("build extractor: %w", err)
	}
	details := scraper.NewDetailScraper(cfg, selectors, extractor, logger)
	details.SetMetrics(metrics)
	if cfg.Fetcher.Type == "http" {
		details.SetFetcher(httpFetcher)
	} else {
		details.SetSessions(sessions)
	}
	eng.SetDetailWorker(details.Scrape)
	eng.SetPipeline(engine.StageDetails, pipeline.ForDetails(logger, metrics))

	if cfg.Engine.RespectRobotsTxt {
		eng.SetRobots(engine.NewRobotsManager(robotsAgent, httpFetcher, logger))
	}

	if cfg.Storage.MongoURI != "" {
		mongo, err := storage.NewMongoStorage(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
		if err != nil {
			return err
		}
		mongo.SetRunID(a.runID)
		eng.AddDetailSink(mongo)
	}

	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func printProgress(p engine.Progress) {
	fmt.Printf("  [%s] batch %d/%d  %d/%d items (%.0f%%)  %d failed  %s\n",
		p.Stage, p.Batch, p.TotalBatches, p.Processed, p.Total, p.Percent(), p.Failed,
		p.Elapsed.Round(time.Second))
}
