package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vidcms/backend/internal/ads"
	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/config"
	"github.com/vidcms/backend/internal/db"
	"github.com/vidcms/backend/internal/handlers"
	"github.com/vidcms/backend/internal/httpserver"
	"github.com/vidcms/backend/internal/logging"
	"github.com/vidcms/backend/internal/media"
	"github.com/vidcms/backend/internal/middleware"
	"github.com/vidcms/backend/internal/repositories"
	"github.com/vidcms/backend/internal/scheduler"
)

// Run bootstraps the vidcms backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, seed, or adstxt")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	case "adstxt":
		return runAdsTxt(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.CheckServeSecrets(); err != nil {
		return err
	}

	logger, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logCloser.Close()
	slog.SetDefault(logger)
	if cfg.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("default jwt secret in use; set VIDCMS_JWT_SECRET before exposing this server")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if applied, err := db.Migrate(ctx, pool, logger); err != nil {
		return err
	} else if len(applied) > 0 {
		logger.Info("schema migrated", "applied", applied)
	}

	comps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		if err := cleanup(cleanupCtx); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	if _, err := auth.EnsureAdmin(ctx, comps.users, auth.AdminSeed{
		Email:    cfg.AdminEmail,
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
	}, logger); err != nil {
		return err
	}

	consumeCtx, stopConsume := context.WithCancel(ctx)
	defer stopConsume()
	if comps.queue != nil {
		go consumeMedia(consumeCtx, comps.queue, comps.processor, cfg.Media.Timeout, logger)
	}

	comps.scheduler.Start()
	if err := comps.scheduler.RunNow(scheduler.JobTrendingRefresh); err != nil {
		logger.Warn("initial trending refresh failed", "error", err)
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, comps.handlers)

	handler := middleware.Chain(mux,
		middleware.RequestLogger(logger),
		middleware.Authenticate(comps.sessions),
	)

	srv := httpserver.New(cfg.AppPort, handler, httpserver.Options{})

	logger.Info("starting http server", "port", cfg.AppPort, "storage", comps.handlers.Storage.Type())

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	stopConsume()
	return srv.Shutdown(shutdownCtx)
}

// consumeMedia drains the broker queue into the local processor until ctx ends.
func consumeMedia(ctx context.Context, queue *media.AMQPQueue, processor *media.Processor, timeout time.Duration, logger *slog.Logger) {
	err := queue.Consume(ctx, func(ctx context.Context, job media.Job) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return processor.Process(ctx, job)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("media consumer stopped", "error", err)
	}
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	switch command {
	case "status":
		states, err := db.Status(ctx, pool)
		if err != nil {
			return err
		}
		for _, s := range states {
			mark := " "
			if s.Applied {
				mark = "x"
			}
			fmt.Printf("[%s] %s\n", mark, s.Name)
		}
		return nil
	case "up", "":
		logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
		defer closer.Close()

		applied, err := db.Migrate(ctx, pool, logger)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("no migrations to apply")
			return nil
		}
		for _, name := range applied {
			fmt.Printf("applied migration %s\n", name)
		}
		return nil
	case "down":
		return errors.New("down migrations are not supported")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

func runSeed(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	seedPath, err := seedFile(cfg.SeedDir, args[0])
	if err != nil {
		return err
	}
	contents, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("read seed %s: %w", filepath.Base(seedPath), err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply seed %s: %w", filepath.Base(seedPath), err)
	}

	fmt.Printf("applied seed %s\n", filepath.Base(seedPath))
	return nil
}

// seedFile resolves a seed name to <dir>/<name>_seed.sql, relative to the working directory.
func seedFile(dir, name string) (string, error) {
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid seed name %q", name)
	}
	if !strings.HasSuffix(name, ".sql") {
		name = name + "_seed.sql"
	}
	return filepath.Join(dir, name), nil
}

// runAdsTxt prints ads.txt, or writes it to the path given as the only argument.
func runAdsTxt(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := repositories.NewPostgresAdRepository(pool)
	if len(args) > 0 {
		job := scheduler.AdsTxtJob("", args[0], repo, cfg.AdsTxtExtra)
		if err := job.Run(ctx); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", args[0])
		return nil
	}

	settings, err := repo.ListActive(ctx)
	if err != nil {
		return err
	}
	fmt.Print(ads.GenerateAdsTxt(settings, cfg.AdsTxtExtra))
	return nil
}

func dayWindow(days int) time.Duration {
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}

func isHTTPS(siteURL string) bool {
	return strings.HasPrefix(strings.ToLower(siteURL), "https://")
}
