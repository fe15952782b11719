package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wasco/mapcore/internal/config"
	"wasco/mapcore/internal/dataset"
	"wasco/mapcore/internal/db"
	"wasco/mapcore/internal/httpapi"
	"wasco/mapcore/internal/metrics"
	"wasco/mapcore/internal/prefetch"
	"wasco/mapcore/internal/regiondata"
	"wasco/mapcore/internal/session"
	"wasco/mapcore/internal/source"
	"wasco/mapcore/migrations"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		bootLogger := httpapi.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := httpapi.NewLoggerWith(httpapi.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *db.Pool
	if cfg.DatabaseURL != "" {
		p, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p

		if cfg.AutoMigrate {
			applied, err := pool.Migrate(ctx, migrations.FS)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to apply migrations")
			}
			logger.Info().Strs("applied", applied).Msg("migrations up to date")
		}
	}

	client := source.NewHTTPClient(cfg.FetchTimeout)
	loader := dataset.NewLoader(logger, dataset.LoaderOptions{
		WorldLandURL:          cfg.Assets.WorldLandURL,
		WaterRegionsURL:       cfg.Assets.WaterRegionsURL,
		WorldRegionsURL:       cfg.Assets.WorldRegionsURL,
		HistoricalDataURL:     cfg.Assets.HistoricalDataURL,
		FutureDataURLTemplate: cfg.Assets.FutureDataURLTemplate,
		Client:                client,
	})
	if !cfg.Assets.HasAssets() {
		logger.Warn().Msg("map assets not fully configured; sessions will stay loading")
	}

	var fetcher regiondata.Fetcher
	var archive *regiondata.ArchiveFetcher
	if cfg.Assets.RegionDetailURLTemplate != "" {
		upstream, err := regiondata.NewHTTPFetcher(cfg.Assets.RegionDetailURLTemplate, client)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid region detail url template")
		}
		fetcher = upstream
		if pool != nil {
			archive = regiondata.NewArchiveFetcher(pool.Queries(), upstream, logger)
			fetcher = archive
		}
	} else {
		logger.Warn().Msg("region detail url template not set; zooming will fail")
	}

	sessions := session.NewManager(logger, dataset.NewCatalog(loader), session.ManagerOptions{
		Fetcher:      fetcher,
		FetchTimeout: cfg.FetchTimeout,
	}, m)
	go sessions.Run(ctx)

	if archive != nil && len(cfg.Prefetch.Regions) > 0 {
		worker := prefetch.New(logger, archive, pool.Queries(), prefetch.Options{
			Regions:   cfg.Prefetch.Regions,
			Scenarios: cfg.Prefetch.Scenarios,
			Interval:  cfg.Prefetch.Interval,
			Retention: cfg.Prefetch.Retention,
		}, m)
		go worker.Run(ctx)
	}

	h := httpapi.NewHandler(logger, pool, httpapi.Options{Sessions: sessions, Metrics: m})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("mapcore listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}
