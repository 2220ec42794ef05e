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

	"auction-marketplace/internal/config"
	"auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/internal/infrastructure/websocket"
	"auction-marketplace/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
)

// The gateway pushes notifications published by the auction service to the
// websocket sessions of their users.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer logger.Sync(log)

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}

	connManager := websocket.NewConnectionManager(log)
	gateway := websocket.NewGatewayHandler(connManager, log)
	subscriber := redis.NewNotificationSubscriber(rdb, cfg.Redis.Channel, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		for {
			err := subscriber.SubscribeToNotifications(ctx, gateway.Deliver)
			if ctx.Err() != nil {
				return
			}
			log.Error("Notification subscription ended, resubscribing", "error", err)
			time.Sleep(time.Second)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           websocket.NewRouter(gateway, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting notification gateway", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notification gateway")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := connManager.CloseAll(); err != nil {
		log.Error("Failed to close connections", "error", err)
	}
	log.Info("Notification gateway stopped")
}
