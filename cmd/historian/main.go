// cmd/historian/main.go drains the Redis action queue into the PostgreSQL action archive.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pokerbank/internal/cache"
	"github.com/jason-s-yu/pokerbank/internal/config"
	"github.com/jason-s-yu/pokerbank/internal/database"
	"github.com/jason-s-yu/pokerbank/internal/historian"
	"github.com/jason-s-yu/pokerbank/internal/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	sink := func(ctx context.Context, records []models.ActionRecord) error {
		return database.InsertActionRecords(ctx, pool, records)
	}
	hs := historian.NewService(rdb, sink, logger, historian.Options{
		Queue:      cfg.HistorianQueueName,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlushDelay(),
	})
	if err := hs.Run(ctx); err != nil {
		logger.Errorf("final flush failed, %d actions lost: %v", hs.Pending(), err)
		os.Exit(1)
	}
	logger.Info("Historian shutdown complete.")
}
