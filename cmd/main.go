package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MimeLyc/srs-generator/internal/config"
	"github.com/MimeLyc/srs-generator/internal/httpapi"
	"github.com/MimeLyc/srs-generator/internal/janitor"
	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/MimeLyc/srs-generator/internal/llm"
	"github.com/MimeLyc/srs-generator/internal/persistence"
	"github.com/MimeLyc/srs-generator/internal/pipeline"
	"github.com/MimeLyc/srs-generator/internal/render"
	"github.com/MimeLyc/srs-generator/internal/storage"
	"github.com/MimeLyc/srs-generator/pkg/log"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

type scheduler interface {
	Start(ctx context.Context) error
	Stop()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env: %v", err)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	closeLog, err := initLogging(cfg)
	if err != nil {
		log.Fatal("Failed to open log file: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal("%v", err)
	}
}

// initLogging installs the global logger: stdout, or LOG_FILE when set.
func initLogging(cfg *config.Config) (func(), error) {
	level := log.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" {
		log.InitLogger(level)
		return func() {}, nil
	}
	fileLogger, err := log.NewFileLogger(cfg.LogFile, level)
	if err != nil {
		return nil, err
	}
	log.SetLogger(fileLogger.Logger)
	return func() { _ = fileLogger.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	layout, err := storage.NewLayout(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("prepare storage: %w", err)
	}

	generator, err := newGenerator(cfg.LLM)
	if err != nil {
		return err
	}

	orchestrator := pipeline.New(generator,
		render.NewPDFRenderer(layout),
		render.NewWordRenderer(layout),
		pipeline.WithRecorder(jobs.NewRecorder(store)),
	)
	srv := httpapi.NewServer(orchestrator, layout, httpapi.WithStore(store))

	var sweeper scheduler
	if cfg.Janitor.CronExpr != "" {
		sweeper = janitor.New(store, cfg.Janitor.CronExpr, cfg.Janitor.StaleAfter())
	}
	return runWithComponents(ctx, cfg.HTTP.Addr, sweeper, srv)
}

// runWithComponents serves HTTP until ctx is done, then shuts the server and
// the optional sweeper down.
func runWithComponents(ctx context.Context, addr string, sweeper scheduler, srv httpServer) error {
	if sweeper != nil {
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start janitor: %w", err)
		}
		defer sweeper.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", addr)
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (jobs.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := persistence.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case config.DriverPostgres:
		store, err := persistence.NewPostgresStore(ctx, persistence.DefaultPostgresConfig(cfg.URL))
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case config.DriverNone:
		log.Warn("DB_DRIVER=none: job history is kept in memory only")
		return jobs.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// newGenerator returns nil without an error when no credentials are set; the
// pipeline then rejects generation requests as not configured.
func newGenerator(cfg config.LLMConfig) (pipeline.Generator, error) {
	if !cfg.Configured() {
		return nil, nil
	}
	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.APIKey,
		APIURL:      cfg.APIURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		SiteURL:     cfg.SiteURL,
		AppName:     cfg.AppName,
	})
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return client, nil
}
