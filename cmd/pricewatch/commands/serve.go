package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pricewatch/pricewatch/internal/api"
	"github.com/pricewatch/pricewatch/internal/capture"
	"github.com/pricewatch/pricewatch/internal/config"
	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/logger"
	"github.com/pricewatch/pricewatch/internal/monitoring"
	"github.com/pricewatch/pricewatch/internal/scheduler"
	"github.com/pricewatch/pricewatch/internal/storage"
	"github.com/pricewatch/pricewatch/internal/vision"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking server",
	Long: `Run the long-lived tracker: REST API for products, targets, crawls,
search, and alerts; Postgres-backed price history; optional Redis crawl
cooldown; and an interval scheduler that re-crawls every registered
target.

Example:
  pricewatch serve --config pricewatch.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("json_logs"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		logError("%v", err)
		return err
	}
	if cfg.Database.DSN == "" {
		err := fmt.Errorf("serve requires a database: set database.dsn or PRICEWATCH_DATABASE_DSN")
		logError("%v", err)
		return err
	}

	store, err := storage.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("schema migration failed", "error", err)
		return err
	}

	var cooldown crawler.Cooldown
	if cfg.Redis.Addr != "" {
		cache, err := storage.NewCooldownCache(ctx, cfg.Redis.Addr, cfg.Redis.CooldownTTL)
		if err != nil {
			logger.Error("redis connection failed", "error", err)
			return err
		}
		defer func() { _ = cache.Close() }()
		cooldown = cache
	}

	metrics := monitoring.New()

	engine := capture.NewEngine(capture.Config{
		UserAgent:      cfg.Crawl.UserAgent,
		ArtifactsDir:   cfg.Crawl.ArtifactsDir,
		ProductTimeout: cfg.Crawl.ProductTimeout,
		SearchTimeout:  cfg.Crawl.SearchTimeout,
		SettleDelay:    cfg.Crawl.SettleDelay,
	})

	providerCfg := vision.DefaultProviderConfig()
	providerCfg.APIKey = cfg.Vision.APIKey
	providerCfg.Model = cfg.Vision.Model
	providerCfg.BaseURL = cfg.Vision.BaseURL
	if cfg.Vision.Timeout > 0 {
		providerCfg.Timeout = cfg.Vision.Timeout
	}
	provider, err := vision.NewProvider(cfg.Vision.Provider, providerCfg)
	if err != nil {
		logError("%v", err)
		return err
	}
	client := vision.NewClient(provider, vision.ClientConfig{
		Timeout:         providerCfg.Timeout,
		DefaultCurrency: cfg.Vision.DefaultCurrency,
	})

	runner := crawler.NewRunner(engine, client, metrics)
	coord := crawler.NewCoordinator(runner, cooldown, metrics, crawler.CoordinatorConfig{
		Pacing: cfg.Crawl.Pacing,
	})
	searcher := crawler.NewSearcher(engine, runner, crawler.SearcherConfig{
		Pacing:     cfg.Crawl.Pacing,
		MaxResults: cfg.Crawl.MaxSearch,
		Fallback:   capture.NewStaticFetcher(cfg.Crawl.UserAgent, cfg.Crawl.SearchTimeout),
	})

	// The scheduler re-crawls every registered target on the interval.
	sched := scheduler.New(cfg.Crawl.Interval, func(runCtx context.Context) {
		targets, err := store.AllTargets(runCtx)
		if err != nil {
			logger.Error("loading targets for scheduled crawl failed", "error", err)
			return
		}
		if len(targets) == 0 {
			return
		}
		logger.Info("scheduled crawl starting", "targets", len(targets))
		for outcome := range coord.RunBatch(runCtx, targets) {
			if outcome.Err != nil || outcome.Record == nil {
				continue
			}
			if err := store.AppendRecord(runCtx, *outcome.Record); err != nil {
				logger.Error("persisting scheduled record failed", "target", outcome.Target.ID, "error", err)
			}
		}
	})
	sched.Start(ctx)
	defer sched.Stop()

	server := api.NewServer(store, coord, searcher, sched, api.ServerConfig{
		AlertStaleAfter: cfg.Alerts.StaleAfter,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", "addr", cfg.Server.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		return err
	}

	logger.Info("server shut down")
	return nil
}
