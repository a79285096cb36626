package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"florist-bot/internal/bot"
	"florist-bot/internal/bot/dialogue"
	"florist-bot/internal/bot/state"
	"florist-bot/internal/config"
	"florist-bot/internal/events"
	"florist-bot/internal/storage"
	"florist-bot/pkg/logger"
	"florist-bot/pkg/redis"
)

// ENTRY POINT

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	if err := run(ctx, cfg, zapLogger); err != nil {
		zapLogger.Fatal("Bot stopped with error", zap.Error(err))
	}

	zapLogger.Info("Bot shutdown gracefully")
}

func run(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) error {
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	pgStorage, err := storage.NewPostgresStorage(ctx, cfg.Database, redisClient, cfg.ProductCacheTTL, zapLogger)
	if err != nil {
		return err
	}
	defer pgStorage.Close()

	if err := storage.RunMigrations(ctx, pgStorage.DB(), zapLogger); err != nil {
		return err
	}

	var sessions state.Store
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		sessions = state.NewRedisStore(redisClient.Raw(), cfg.Redis.TTL)
	default:
		sessions = state.NewMemoryStore()
	}
	zapLogger.Info("Session store ready", zap.String("backend", cfg.SessionBackend))

	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, zapLogger)
	defer publisher.Close()

	botAPI, err := bot.NewAPI(cfg.TelegramToken, cfg.Debug, zapLogger)
	if err != nil {
		return err
	}

	notifier := bot.NewOperatorNotifier(botAPI, cfg.OperatorID, publisher, zapLogger)
	controller := dialogue.New(sessions, pgStorage, notifier, cfg.OperatorID, zapLogger)
	tgBot := bot.New(botAPI, controller, pgStorage, cfg.ReportsDir, zapLogger)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)
	defer botAPI.StopReceivingUpdates()

	return tgBot.Start(ctx, updates)
}
