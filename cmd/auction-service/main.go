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

	"auction-marketplace/internal/api/handlers"
	"auction-marketplace/internal/config"
	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/infrastructure/events"
	"auction-marketplace/internal/infrastructure/leader"
	"auction-marketplace/internal/infrastructure/memory"
	"auction-marketplace/internal/infrastructure/mysql"
	"auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer logger.Sync(log)
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ledger
	var ledger domain.Ledger
	switch cfg.Storage.Driver {
	case "memory":
		ledger = memory.NewLedger()
	default:
		if cfg.MySQL.Migrate {
			if err := mysql.Migrate(cfg.MySQL.DSN); err != nil {
				log.Fatal("Failed to migrate MySQL", "error", err)
			}
		}
		db, err := utils.InitializeMysql(ctx, cfg.MySQL)
		if err != nil {
			log.Fatal("Failed to connect to MySQL", "error", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}()
		ledger = mysql.NewMySQLLedger(db)
		log.Info("Connected to MySQL")
	}

	// Redis carries notifications and the closer leader lock.
	var (
		sink     domain.NotificationSink = services.LogSink{Log: log}
		election *leader.RedisLeaderElection
	)
	if cfg.Redis.Address != "" {
		rdb := redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		log.Info("Connected to Redis", "address", cfg.Redis.Address)

		sink = redis.NewNotificationPublisher(rdb, cfg.Redis.Channel)
		if cfg.Leader.Enabled {
			election = leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL, log)
		}
	}

	// Settlement events for payment collection.
	var publisher domain.SettlementPublisher
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatal("Failed to connect to NATS", "error", err)
		}
		defer nc.Close()
		p, err := events.NewSettlementPublisher(ctx, nc, cfg.NATS.Stream, log)
		if err != nil {
			log.Fatal("Failed to set up settlement stream", "error", err)
		}
		publisher = p
		log.Info("Connected to NATS", "url", cfg.NATS.URL)
	}

	notifier := services.NewNotifier(sink, services.StaticAdmins(cfg.Notifications.AdminIDs),
		cfg.Notifications.QueueSize, cfg.Notifications.Workers, log)

	bidService := services.NewBidService(ledger, services.NewBidValidator(cfg.MinIncrement()),
		notifier, cfg.Bidding.ExtensionWindow, log)
	auctionService := services.NewAuctionService(ledger, log)
	closer := services.NewAuctionCloser(ledger, notifier, publisher,
		cfg.Closer.Concurrency, cfg.Closer.AuctionTimeout, log)

	var leaderElection domain.LeaderElection
	if election != nil {
		leaderElection = election
	}
	scheduler := services.NewCloserScheduler(closer, leaderElection, cfg.Instance.ID, cfg.Closer.Interval, log)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	campaignDone := make(chan struct{})
	if election != nil {
		go func() {
			defer close(campaignDone)
			election.Campaign(runCtx, cfg.Instance.ID)
		}()
	} else {
		close(campaignDone)
	}

	if err := scheduler.Start(runCtx); err != nil {
		log.Fatal("Failed to start closer scheduler", "error", err)
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	handlers.RegisterRoutes(e,
		handlers.NewBidHandler(bidService, log),
		handlers.NewAuctionHandler(auctionService, closer, log))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting HTTP server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop closer scheduler", "error", err)
	}
	stop()
	<-campaignDone
	notifier.Close()

	log.Info("Auction service stopped")
}
