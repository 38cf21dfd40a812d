package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	h "github.com/veranemoloko/hls-downloader/internal/api/http"
	cfgpkg "github.com/veranemoloko/hls-downloader/internal/config"
	"github.com/veranemoloko/hls-downloader/internal/notify"
	"github.com/veranemoloko/hls-downloader/internal/playlist"
	"github.com/veranemoloko/hls-downloader/internal/queue"
	repo "github.com/veranemoloko/hls-downloader/internal/repository"
	"github.com/veranemoloko/hls-downloader/internal/retry"
	svc "github.com/veranemoloko/hls-downloader/internal/service"
	"github.com/veranemoloko/hls-downloader/internal/storage"
	"github.com/veranemoloko/hls-downloader/internal/validation"
	"github.com/veranemoloko/hls-downloader/internal/worker"
)

func main() {
	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfgpkg.SetupLogger(cfg)
	logger.Info("configuration loaded successfully",
		"output_dir", cfg.OutputDir,
		"temp_dir", cfg.TempDir,
		"max_attempts", cfg.MaxAttempts,
	)

	failed, err := repo.NewFailedList(cfg.FailedStateFile)
	if err != nil {
		logger.Error("failed to initialize failed job list", "error", err)
		os.Exit(1)
	}

	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.TelegramEnabled() {
		sinks = append(sinks, notify.NewTelegramSink(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.TelegramChatID))
		logger.Info("telegram notifications enabled", "chat_id", cfg.TelegramChatID)
	}
	notifier := notify.New(cfg.EventBuffer, logger, sinks...)

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.Delay = cfg.RetryBackoff

	validator := validation.NewRequestValidator(cfg.AllowPrivateHosts)

	fetcher := worker.NewSegmentFetcher(worker.Options{
		RequestTimeout: cfg.RequestTimeout,
		MaxBytes:       cfg.MaxSegmentBytes,
		Policy:         policy,
		HostCheck:      validator.CheckHost,
	}, logger)

	jobs := queue.NewJobQueue()
	dispatcher := svc.NewDispatcher(svc.DispatcherDeps{
		Queue:    jobs,
		Resolver: playlist.NewResolver(fetcher, logger, playlist.WithHostCheck(validator.CheckHost)),
		Fetcher:  fetcher,
		Merger:   storage.NewFileStorage(cfg.OutputDir, cfg.MaxNameLength, logger),
		Failed:   failed,
		Events:   notifier,
		TempDir:  cfg.TempDir,
	}, logger)

	ingest := svc.NewIngestService(jobs, validator, notifier, logger)

	router := h.NewRouter(h.RouterDeps{
		Ingest:          ingest,
		Active:          dispatcher,
		Failed:          failed,
		IngestRateLimit: cfg.IngestRateLimit,
	}, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The notifier outlives the dispatcher so the final status of an
	// interrupted job is still delivered.
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	notifyDone := make(chan struct{})
	go func() {
		defer close(notifyDone)
		_ = notifier.Run(notifyCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	})

	runErr := g.Wait()

	stopNotify()
	<-notifyDone

	if runErr != nil {
		logger.Error("service stopped with error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("service stopped", "pending_jobs", jobs.Len(), "dropped_events", notifier.Dropped())
}
