package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"launchnav/internal/app"
	"launchnav/internal/attachments"
	"launchnav/internal/config"
	"launchnav/internal/export"
	"launchnav/internal/gitrepo"
	"launchnav/internal/logging"
	"launchnav/internal/search"
	"launchnav/internal/session"
	"launchnav/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("launchnav api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]func(context.Context) error{}

	var (
		db      *sql.DB
		catalog store.Catalog
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		var err error
		db, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection: %w", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		catalog = store.NewPostgresStore(db, cfg.DefaultFile)
		checks["database"] = db.PingContext
		logger.Info("using postgres catalog")
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		catalog = store.NewFileStore(cfg.DataDir, cfg.DefaultFile)
		logger.Info("using file catalog", zap.String("dir", cfg.DataDir))
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		return fmt.Errorf("create repos dir: %w", err)
	}
	gitService := gitrepo.New(cfg.ReposDir)

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL())
		if err != nil {
			return fmt.Errorf("redis connection: %w", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		checks["sessions"] = redisStore.Ping
		logger.Info("using redis session store")
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL())
		logger.Info("using in-memory session store")
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meili.Close()
	}
	var pgfts *search.PgFTS
	if db != nil {
		pgfts = search.NewPgFTS(db)
	}
	searchService := search.NewService(logger, meili, pgfts)

	var attachmentStore attachments.Store
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		minioStore, err := attachments.NewMinioStore(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		attachmentStore = minioStore
		logger.Info("using object storage for attachments", zap.String("bucket", cfg.S3Bucket))
	} else {
		attachmentStore = attachments.NewLocalStore(cfg.AttachmentsDir)
		logger.Info("using local attachments", zap.String("dir", cfg.AttachmentsDir))
	}

	service := app.New(cfg, app.Dependencies{
		Catalog:     catalog,
		Sessions:    sessions,
		Git:         gitService,
		Search:      searchService,
		Attachments: attachmentStore,
		Export:      export.NewService(logger),
		Checks:      checks,
	}, logger)

	if pgfts != nil {
		searchService.ReindexAllFromPG(ctx)
	}
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap error (will retry on next restart)", zap.Error(err))
	}

	if strings.TrimSpace(cfg.EditorKey) == "" {
		logger.Warn("no editor key configured, any client may open an editor session")
	}
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("launchnav api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		interval := time.Minute
		if ttl := cfg.SessionTTL(); ttl > 0 && ttl < interval {
			interval = ttl
		}
		return service.RunSweeper(gctx, interval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
