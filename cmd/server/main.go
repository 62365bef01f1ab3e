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
	"time"

	"github.com/hikitugu/handover/internal/ai"
	"github.com/hikitugu/handover/internal/auth"
	"github.com/hikitugu/handover/internal/config"
	"github.com/hikitugu/handover/internal/crypto"
	"github.com/hikitugu/handover/internal/database"
	"github.com/hikitugu/handover/internal/datasources"
	"github.com/hikitugu/handover/internal/generation"
	"github.com/hikitugu/handover/internal/outline"
	"github.com/hikitugu/handover/internal/planner"
	"github.com/hikitugu/handover/internal/sources"
	"github.com/hikitugu/handover/internal/sources/google"
	"github.com/hikitugu/handover/internal/sources/slack"
	"github.com/hikitugu/handover/internal/store"
	"github.com/hikitugu/handover/internal/streams"
	"github.com/hikitugu/handover/internal/templates"
	"github.com/hikitugu/handover/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	switch cfg.Mode {
	case config.ModeServer, config.ModeWorker, config.ModeEmbedded:
	default:
		return fmt.Errorf("unknown MODE %q", cfg.Mode)
	}
	if cfg.Mode != config.ModeEmbedded && cfg.RedisURL == "" {
		return fmt.Errorf("MODE=%s requires REDIS_URL", cfg.Mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.RunMigrations(db, logger); err != nil {
		return err
	}
	if cfg.DevSeed && !cfg.IsProduction() {
		if err := database.SeedDevData(ctx, db, logger); err != nil {
			return err
		}
	}

	st := store.New(db)

	// A missing or malformed key keeps the server up; every token operation
	// then fails with a configuration error.
	var (
		decrypter generation.Decrypter
		encrypter auth.Encrypter
	)
	if enc, err := crypto.NewTokenEncryptor(cfg.EncryptionKey); err != nil {
		logger.Warn("Token encryption disabled", "error", err)
	} else {
		decrypter, encrypter = enc, enc
	}

	defaults := outline.Builtin()
	if cfg.OutlinePath != "" {
		if defaults, err = outline.Load(cfg.OutlinePath); err != nil {
			return err
		}
	}

	var synth ai.Synthesizer
	if cfg.AIStubMode {
		logger.Info("Using stub content generation")
		synth = ai.NewStub(defaults)
	} else {
		gemini, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, defaults, logger)
		if err != nil {
			return err
		}
		synth = gemini
	}

	googleOpts := google.Options{HTTPClient: &http.Client{Timeout: 30 * time.Second}}
	clients := sources.Clients{
		Calendar: google.NewCalendarClient(googleOpts),
		Chat:     slack.NewClient("", &http.Client{Timeout: 30 * time.Second}),
		Sheets:   google.NewSheetsClient(googleOpts),
	}
	tokens := generation.NewTokenResolver(st, decrypter)
	collector := generation.NewCollector(clients, tokens)

	deps := generation.Deps{
		Store:       st,
		Planner:     planner.New(defaults),
		Collector:   collector,
		Synthesizer: synth,
		Logger:      logger,
	}
	if cfg.RedisURL != "" {
		publisher, err := streams.NewPublisher(cfg.RedisURL, cfg.ProgressStream)
		if err != nil {
			return err
		}
		defer publisher.Close()
		deps.Notifier = publisher
	}
	orch := generation.NewOrchestrator(deps)

	g, gctx := errgroup.WithContext(ctx)

	var launcher generation.Launcher
	if cfg.RedisURL != "" {
		client, err := worker.NewClient(cfg.RedisURL, cfg.GenerationTimeout)
		if err != nil {
			return err
		}
		defer client.Close()
		launcher = client
	} else {
		pool := worker.NewPool(orch, cfg.WorkerConcurrency, cfg.WorkerQueueSize, cfg.GenerationTimeout, logger)
		launcher = pool
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return pool.Shutdown(shutdownCtx)
		})
	}

	sweeper := worker.NewSweeper(st, launcher, cfg.RecoveryGrace, cfg.StaleJobAfter, logger)

	if cfg.Mode != config.ModeServer {
		if err := startJobRunner(gctx, g, cfg, orch, sweeper, st, launcher, logger); err != nil {
			return err
		}
	}

	if cfg.Mode != config.ModeWorker {
		providers := auth.InitProviders(cfg, logger)
		router := newRouter(cfg, routerDeps{
			db:          db,
			auth:        auth.NewHandlers(st, encrypter, cfg.FrontendURL, providers, logger),
			service:     generation.NewService(st, launcher, collector, synth, logger),
			templates:   templates.NewService(st),
			dataSources: datasources.NewService(tokens, st, clients, providers),
			logger:      logger,
		})
		serveHTTP(gctx, g, ":"+cfg.Port, router, logger)
	}

	logger.Info("Handover started", "mode", cfg.Mode, "port", cfg.Port, "redis", cfg.RedisURL != "")
	return g.Wait()
}

// startJobRunner consumes launched jobs: an asynq server plus the recovery
// schedule when Redis is configured, otherwise the in-process pool that is
// already running. Jobs orphaned by a previous process are swept once now.
func startJobRunner(ctx context.Context, g *errgroup.Group, cfg *config.Config, orch *generation.Orchestrator, sweeper *worker.Sweeper, st *store.Store, launcher generation.Launcher, logger *slog.Logger) error {
	if cfg.RedisURL != "" {
		stopWorker, err := worker.Start(cfg, orch, sweeper, logger)
		if err != nil {
			return err
		}
		stopScheduler, err := worker.StartScheduler(cfg, logger)
		if err != nil {
			stopWorker()
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			stopScheduler()
			stopWorker()
			return nil
		})
	} else {
		// Nothing else can hold a queued job in this mode, so every pending job is orphaned.
		sweeper = worker.NewSweeper(st, launcher, 0, cfg.StaleJobAfter, logger)
	}

	report, err := sweeper.Sweep(ctx)
	if err != nil {
		logger.Error("Startup recovery sweep failed", "error", err)
		return nil
	}
	logger.Info("Startup recovery sweep finished", "relaunched", report.Relaunched, "stale", len(report.Stale))
	return nil
}

func serveHTTP(ctx context.Context, g *errgroup.Group, addr string, handler http.Handler, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
