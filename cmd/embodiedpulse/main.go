// Package main wires together the embodied-intelligence content
// service: adapters, pipelines, refresh coordinator, scheduler, and
// the read API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter/apitube"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter/arxiv"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter/bilibili"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter/dataset"
	jobsadapter "github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/adapter/jobs"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/api"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/config"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/logging"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/metrics"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/normalize"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/readcache"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/refresh"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/runner"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/scheduler"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/store"
	"github.com/aramisjiang-wq/EmbodiedPulse2026-sub001/internal/taxonomy"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	gateway, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer gateway.Close()

	table := taxonomy.New(taxonomy.Options{AcceptLegacy: cfg.Taxonomy.AcceptLegacy})
	normalizer := normalize.New(table, logger.Named("normalize"))
	client := adapter.NewClient(cfg.PerRequestTimeout(), cfg.Fetch.Retries, logger.Named("adapter"))

	pipeCfg := refresh.PipelineConfig{
		Options: adapter.Options{
			MaxResults:        cfg.Fetch.MaxResults,
			PageSize:          cfg.Fetch.PageSize,
			QueryTerms:        cfg.Fetch.ArxivQueryTerms,
			Retries:           cfg.Fetch.Retries,
			PerRequestTimeout: cfg.PerRequestTimeout(),
		},
		Creators: cfg.Bilibili.Creators,
	}

	tasks := []refresh.Task{
		refresh.PaperTask(
			arxiv.New(client, cfg.Fetch.ArxivBaseURL, logger.Named("arxiv")),
			normalizer, gateway, pipeCfg,
		),
		refresh.NewsTask(
			apitube.New(client, cfg.Fetch.NewsBaseURL, cfg.Fetch.NewsAPIKey,
				cfg.Fetch.NewsTitleQuery, cfg.Fetch.NewsLanguage, logger.Named("apitube")),
			normalizer, gateway, pipeCfg,
		),
		refresh.JobTask(
			jobsadapter.New(client, cfg.Fetch.JobsBaseURL, cfg.Fetch.JobsEmployers, logger.Named("jobs")),
			normalizer, gateway, pipeCfg,
		),
		refresh.DatasetTask(
			dataset.New(client, cfg.Fetch.DatasetArticleURL, logger.Named("dataset")),
			normalizer, gateway, pipeCfg,
		),
	}

	// The creator adapter needs credentials; absence disables that
	// stream only, the rest of the service runs normally.
	biliAdapter, err := bilibili.New(client, cfg.Fetch.BilibiliBaseURL, bilibili.Credentials{
		SESSDATA:   cfg.Bilibili.SESSDATA,
		JCT:        cfg.Bilibili.JCT,
		BUVID3:     cfg.Bilibili.BUVID3,
		DedeUserID: cfg.Bilibili.DedeUserID,
		Cookie:     cfg.Bilibili.Cookie,
	}, logger.Named("bilibili"))
	biliConfigured := false
	if err != nil {
		logger.Warn("creator stream disabled", zap.Error(err))
	} else {
		biliConfigured = true
		tasks = append(tasks, refresh.CreatorTask(biliAdapter, gateway, pipeCfg, logger.Named("bilibili")))
	}

	alerter := runner.NewDispatcher(runner.DispatcherConfig{
		FeishuWebhook: cfg.Alerts.FeishuWebhook,
		EmailEnabled:  cfg.Alerts.EmailEnabled,
		SMTPHost:      cfg.Alerts.SMTPHost,
		SMTPPort:      cfg.Alerts.SMTPPort,
		SMTPUser:      cfg.Alerts.SMTPUser,
		SMTPPassword:  cfg.Alerts.SMTPPassword,
		EmailTo:       cfg.Alerts.EmailTo,
	}, logger.Named("alerts"))

	taskRunner := runner.New(runner.Policy{
		Enabled:             cfg.Scheduler.RetryEnabled,
		MaxRetries:          cfg.Scheduler.MaxRetries,
		RetryDelay:          time.Duration(cfg.Scheduler.RetryDelay) * time.Second,
		BackoffFactor:       float64(cfg.Scheduler.BackoffFactor),
		AlertOnFinalFailure: cfg.Scheduler.AlertOnFinalFail,
	}, alerter, logger.Named("runner"))

	coord := refresh.New(tasks, cfg.RefreshBudget(), taskRunner, logger.Named("refresh"))

	sched := scheduler.New(coord, logger.Named("scheduler"))
	if err := sched.Schedule(ctx, cfg.Scheduler.CronSpec); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	cache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return err
	}

	apiServer := api.NewServer(api.Options{
		Store:              gateway,
		Coordinator:        coord,
		Cache:              cache,
		Taxonomy:           table,
		Logger:             logger.Named("api"),
		BaseContext:        ctx,
		BilibiliConfigured: biliConfigured,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func buildStore(ctx context.Context, cfg config.Config) (store.Gateway, error) {
	if cfg.Store.Provider != "postgres" {
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, store.PostgresConfig{
		DSN:      cfg.Store.DSN,
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func buildCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (readcache.Cache, error) {
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if cfg.Cache.RedisAddr == "" {
		return readcache.NewMemory(ttl), nil
	}
	r := readcache.NewRedis(cfg.Cache.RedisAddr, ttl, logger.Named("readcache"))
	if err := r.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return r, nil
}
