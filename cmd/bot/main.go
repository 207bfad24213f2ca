package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipstore/internal/adminbot"
	"clipstore/internal/bot"
	"clipstore/internal/config"
	"clipstore/internal/domain"
	"clipstore/internal/downloader"
	"clipstore/internal/events"
	"clipstore/internal/logging"
	"clipstore/internal/metrics"
	"clipstore/internal/repository"
	"clipstore/internal/service"
	"clipstore/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kkdai/youtube/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace is how long running downloads may finish after a stop signal.
const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := os.MkdirAll(cfg.Download.TempDir, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, limiter, redisClient, err := initStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	mainAPI, err := bot.Connect(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		return fmt.Errorf("main bot: %w", err)
	}
	adminAPI, err := bot.Connect(cfg.Telegram.AdminBotToken, cfg.Telegram.Debug)
	if err != nil {
		return fmt.Errorf("admin bot: %w", err)
	}
	mainTG := service.NewTelegramService(mainAPI)
	adminTG := service.NewTelegramService(adminAPI)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eventBus := events.NewEventBus()

	// Инициализация бизнес-сервисов
	moderation := service.NewModerationService(repo, adminTG, eventBus, logging.Component(logger, "moderation"))
	gate := service.NewGate(repo, moderation, eventBus, logging.Component(logger, "gate"))
	console := service.NewAdminService(repo, eventBus, cfg.Admin.Secret, logging.Component(logger, "admin"))

	mainBot, err := bot.NewBot(
		mainTG,
		cfg,
		gate,
		limiter,
		newDownloader(cfg, logger),
		bot.NewMetrics(registry, "main"),
		logging.Component(logger, "bot"),
	)
	if err != nil {
		return err
	}
	eventBus.Subscribe(events.EventEntityActivated, mainBot.HandleEntityActivated)
	audit := events.AuditLog(logging.Component(logger, "audit"))
	for _, typ := range events.EntityEventTypes {
		eventBus.Subscribe(typ, audit)
	}

	adminBot := adminbot.New(adminTG, console, moderation, bot.NewMetrics(registry, "admin"), logging.Component(logger, "adminbot"))

	janitor := worker.NewJanitor(
		cfg.Download.TempDir,
		bot.TempFilePrefix,
		cfg.Janitor.Interval,
		cfg.Janitor.MaxAge,
		logging.Component(logger, "janitor"),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		mainBot.Start(gctx)
		return nil
	})
	g.Go(func() error {
		adminBot.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return janitor.Start(gctx)
	})

	if cfg.Monitoring.PrometheusEnabled {
		server := metrics.NewServer(cfg.Monitoring.PrometheusPort, registry, repo.Ping, logging.Component(logger, "metrics"))
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	logger.Info().
		Str("store", cfg.Store.Driver).
		Int("max_concurrent_downloads", cfg.Download.MaxConcurrent).
		Bool("native_youtube", cfg.Download.NativeYouTube).
		Msg("Bots started")

	<-gctx.Done()
	logger.Info().Msg("Shutting down...")

	adminBot.Stop()
	mainBot.Stop(shutdownGrace)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App, cfg.Telegram.BotToken, cfg.Telegram.AdminBotToken, cfg.Admin.Secret)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := tgbotapi.SetLogger(logging.NewBotAPILogger(logging.Component(baseLogger, "telegram"))); err != nil {
		return nil, nil, closer, err
	}
	return cfg, logging.Component(baseLogger, "main"), closer, nil
}

// initStore builds the entity repository and the rate limiter. With the redis
// driver it waits for the server to come up before giving up.
func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.EntityRepository, domain.RateLimiter, *redis.Client, error) {
	fallback := repository.NewMemoryRateLimiter()

	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn().Msg("Using in-memory store: the allow-list is lost on restart")
		return repository.NewMemoryEntityRepository(), fallback, nil, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	policy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 15 * time.Second, BackoffFactor: 2}

	err := policy.Do(ctx, func(ctx context.Context) error {
		err := repository.Ping(ctx, client)
		if err != nil {
			logger.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("Redis is not reachable yet")
		}
		return err
	})
	if err != nil {
		_ = repository.Close(client)
		return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Str("address", cfg.Redis.Address).Msg("Connected to Redis")

	repoLogger := logging.Component(logger, "repository")
	limiter := repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(client), fallback, repoLogger)
	return repository.NewRedisEntityRepository(client, repoLogger), limiter, client, nil
}

// newDownloader assembles yt-dlp, the optional native YouTube client, routing
// and the concurrency bound.
func newDownloader(cfg *config.Config, logger *zerolog.Logger) domain.Downloader {
	dlLogger := logging.Component(logger, "downloader")
	generic := downloader.NewYtDlp(cfg.Download.YtDlpPath, cfg.Download.Format, dlLogger)

	var native domain.Downloader
	if cfg.Download.NativeYouTube {
		native = downloader.NewYouTube(&youtube.Client{}, cfg.Download.MaxFileSize)
	}

	return downloader.NewLimited(downloader.NewRouter(native, generic, dlLogger), cfg.Download.MaxConcurrent)
}
