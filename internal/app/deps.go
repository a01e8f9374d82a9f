package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/config"
	"github.com/vidcms/backend/internal/db"
	"github.com/vidcms/backend/internal/feed"
	"github.com/vidcms/backend/internal/handlers"
	"github.com/vidcms/backend/internal/media"
	"github.com/vidcms/backend/internal/middleware"
	"github.com/vidcms/backend/internal/repositories"
	"github.com/vidcms/backend/internal/scheduler"
	"github.com/vidcms/backend/internal/storage"
)

// components holds everything serve needs beyond the HTTP handlers themselves.
type components struct {
	handlers  handlers.Dependencies
	sessions  *auth.Manager
	users     *repositories.PostgresUserRepository
	feed      *feed.Service
	processor *media.Processor
	queue     *media.AMQPQueue
	scheduler *scheduler.Scheduler
}

// buildDependencies wires together concrete implementations used by the HTTP handlers. The
// returned cleanup stops background workers and closes broker and cache connections.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (*components, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	users := repositories.NewPostgresUserRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)
	adRepo := repositories.NewPostgresAdRepository(pool)
	sessions := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, repositories.NewPostgresSessionStore(pool), users)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("configure storage: %w", err)
	}

	processor := media.NewProcessor(
		media.NewProber(cfg.Media.FFprobePath, cfg.Media.Timeout),
		media.NewThumbnailer(cfg.Media.FFmpegPath, cfg.Media.Timeout),
		media.NewTranscoder(cfg.Media.FFmpegPath, cfg.Media.Timeout),
		store,
		videos,
		media.ProcessorConfig{
			QueueSize:       cfg.Media.QueueSize,
			Workers:         cfg.Media.Workers,
			TranscodeHeight: cfg.Media.TranscodeHeight,
			Timeout:         cfg.Media.Timeout,
		},
		logger.With("component", "media"),
	)

	var closers []func(context.Context) error
	closers = append(closers, processor.Shutdown)

	var (
		queue     handlers.MediaQueue = processor
		amqpQueue *media.AMQPQueue
	)
	if cfg.AMQPURL != "" {
		q, err := media.DialAMQP(cfg.AMQPURL, media.DefaultQueueName, logger.With("component", "amqp"))
		if err != nil {
			logger.Warn("amqp unavailable, processing media in-process", "error", err)
		} else {
			amqpQueue, queue = q, q
			closers = append(closers, func(context.Context) error { return q.Close() })
		}
	}

	var cache feed.Cache = feed.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rc, err := feed.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory feed cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache = rc
			closers = append(closers, func(context.Context) error { return rc.Close() })
		}
	}

	feedService := feed.NewService(videos, cache, feed.Options{
		CacheTTL: cfg.FeedCacheTTL,
		Window:   dayWindow(cfg.TrendingDays),
		Logger:   logger.With("component", "feed"),
	})

	cleanup := func(ctx context.Context) error {
		var errs []error
		// Reverse order: the scheduler stops before the cache and broker it may touch.
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	sched := scheduler.New(logger.With("component", "scheduler"))
	jobs := []scheduler.Job{
		scheduler.TrendingRefreshJob(cfg.TrendingRefreshSpec, feedService, logger),
		scheduler.SessionPurgeJob(cfg.SessionPurgeSpec, sessions, logger),
	}
	if cfg.AdsTxtPath != "" {
		jobs = append(jobs, scheduler.AdsTxtJob(cfg.AdsTxtSpec, cfg.AdsTxtPath, adRepo, cfg.AdsTxtExtra))
	}
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			_ = cleanup(ctx)
			return nil, nil, err
		}
	}
	closers = append(closers, sched.Stop)

	deps := handlers.Dependencies{
		Users:        users,
		Sessions:     sessions,
		Videos:       videos,
		Categories:   repositories.NewPostgresCategoryRepository(pool),
		Series:       repositories.NewPostgresSeriesRepository(pool),
		Interactions: repositories.NewPostgresInteractionRepository(pool),
		Ads:          adRepo,
		Analytics:    repositories.NewPostgresAnalyticsRepository(pool),
		Feed:         feedService,
		Storage:      store,
		Media:        queue,
		Health:       pingDatabase(pool),

		Site: feed.Site{Title: cfg.SiteTitle, URL: cfg.SiteURL, Description: cfg.SiteTitle + " videos"},
		Upload: handlers.UploadPolicy{
			MaxBytes:    cfg.Upload.MaxUploadBytes(),
			AllowedMIME: cfg.Upload.AllowedMIME,
			SpoolDir:    cfg.Media.SpoolDir,
		},
		SignedURLTTL: cfg.Storage.SignedURLTTL,
		AdsTxtExtra:  cfg.AdsTxtExtra,
		SecureCookie: isHTTPS(cfg.SiteURL),

		LoginLimiter:  middleware.NewPerMinuteLimiter(cfg.LoginRateLimit),
		UploadLimiter: middleware.NewPerMinuteLimiter(cfg.UploadRateLimit),
		ActionLimiter: middleware.NewPerMinuteLimiter(cfg.ActionRateLimit),
	}

	return &components{
		handlers:  deps,
		sessions:  sessions,
		users:     users,
		feed:      feedService,
		processor: processor,
		queue:     amqpQueue,
		scheduler: sched,
	}, cleanup, nil
}

func pingDatabase(pool db.Pool) handlers.HealthChecker {
	return func(ctx context.Context) error {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer conn.Release()
		return conn.Ping(ctx)
	}
}
