package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/application"
	"github.com/hammerline/bidengine/internal/auction/domain"
	rediscache "github.com/hammerline/bidengine/internal/auction/infra/cache/redis"
	"github.com/hammerline/bidengine/internal/auction/infra/notify"
	"github.com/hammerline/bidengine/internal/auction/infra/repository/postgres"
	auctionws "github.com/hammerline/bidengine/internal/auction/infra/websocket"
	"github.com/hammerline/bidengine/internal/shared/clock"
	"github.com/hammerline/bidengine/internal/shared/config"
	"github.com/hammerline/bidengine/internal/shared/db"
	"github.com/hammerline/bidengine/internal/shared/db/migrations"
	"github.com/hammerline/bidengine/internal/shared/httpserver"
	"github.com/hammerline/bidengine/internal/shared/logger"
	"github.com/hammerline/bidengine/internal/shared/websocket"
)

func main() {
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting bid engine...")
	cfg := config.Load()

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(); err != nil {
		log.Fatal("Database migration failed", zap.Error(err))
	}
	log.Info("Database migrations completed successfully.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.GetPostgresDBPool(ctx)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	defer pool.Close()

	auctions := postgres.NewAuctionRepository(pool)
	bids := postgres.NewBidRepository(pool)
	txm := db.NewPgxTxManager(pool)

	registry := websocket.NewRegistry(log)
	hub := websocket.NewHub(registry, log)
	locks := application.NewAuctionLocks()
	clk := clock.Real{}

	// idempotency cache is optional; without Redis resubmission
	// protection is off and everything else still works
	var idem domain.IdempotencyCache
	if cfg.RedisAddr != "" {
		redisClient, err := rediscache.New(ctx, rediscache.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		defer redisClient.Close()
		idem = rediscache.NewIdempotencyCache(redisClient)
	}

	senders := []notify.Sender{notify.NewLogSender(log)}
	if cfg.NotifyWebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.NotifyWebhookURL))
	}
	notifier := notify.NewOutcomeNotifier(senders, log)

	placeBidUC := application.NewPlaceBidUseCase(
		auctions, bids, txm, locks, hub, idem, clk,
		cfg.ArbiterLockWait, cfg.IdempotencyWindow,
	)
	buyNowUC := application.NewBuyNowUseCase(
		auctions, bids, txm, locks, hub, notifier, clk, cfg.ArbiterLockWait,
	)
	cancelUC := application.NewCancelAuctionUseCase(
		auctions, txm, locks, hub, cfg.ArbiterLockWait,
	)
	snapshotUC := application.NewGetSnapshotUseCase(auctions, hub)

	service := application.NewAuctionService(placeBidUC, buyNowUC, cancelUC, snapshotUC, bids)

	scheduler := application.NewExpiryScheduler(
		auctions, bids, txm, locks, hub, notifier, clk, log,
		cfg.PollInterval, cfg.ClosingGrace, cfg.ArbiterLockWait,
	)
	go scheduler.Run(ctx)

	wsHandler := auctionws.NewAuctionWSHandler(service, registry, cfg.SendQueueSize)

	server := httpserver.NewServer(service, wsHandler)
	if err := server.Start(cfg.HTTPAddr); err != nil {
		log.Fatal("HTTP server failed", zap.Error(err))
	}
}
