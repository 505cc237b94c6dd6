package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"videofetch/internal/http/handlers"
	"videofetch/internal/http/httpapi"
	"videofetch/internal/infra"
	"videofetch/internal/jobs"
	"videofetch/internal/pipeline"
	"videofetch/internal/storage"
	"videofetch/internal/store"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fileStore, err := storage.NewFileStore(cfg.DownloadsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	pipe := buildPipeline(cfg)
	jobStore := store.New()
	broadcaster := jobs.NewBroadcaster()

	manager := jobs.NewManager(ctx, jobs.ManagerConfig{
		MaxConcurrent: cfg.MaxConcurrentDownloads,
		StallTimeout:  cfg.StallTimeout,
		JobTimeout:    cfg.JobTimeout,
	}, jobStore, broadcaster, fileStore, pipe, logger)

	sweeper := jobs.NewSweeper(jobs.SweeperConfig{
		Interval:       cfg.SweepInterval,
		Retention:      cfg.Retention,
		ErrorRetention: cfg.ErrorRetention,
	}, jobStore, fileStore, logger)
	go sweeper.Run(ctx)

	app := handlers.NewApp(manager, logger, cfg.SSEPingInterval)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", ":"+cfg.Port).
			Str("pipeline", cfg.Pipeline).
			Str("downloads_dir", fileStore.BasePath()).
			Int("max_concurrent", cfg.MaxConcurrentDownloads).
			Msg("API listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to drain job runners")
	}
	logger.Info().Msg("server stopped")
}

// buildPipeline selects the fetch adapter for the configured
// deployment variant.
func buildPipeline(cfg *infra.Config) pipeline.Pipeline {
	ytCfg := pipeline.YTDLPConfig{
		Binary:         cfg.YTDLPBinary,
		FFmpegLocation: cfg.FFmpegLocation,
		CookiesFile:    cfg.CookiesFile,
		RateLimitMBps:  cfg.RateLimitMBps,
		CancelGrace:    cfg.CancelGrace,
	}
	if cfg.Pipeline == "ytdlp-proxy" {
		ytCfg.ProxyURL = cfg.ProxyURL
	}
	return pipeline.NewYTDLP(ytCfg)
}
