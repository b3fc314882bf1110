package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/fastygo/algorithm/internal/config"
	redisInfra "github.com/fastygo/algorithm/internal/infrastructure/redis"
	"github.com/fastygo/algorithm/internal/relay"
	"github.com/fastygo/algorithm/internal/services/lifecycle"
	"github.com/fastygo/algorithm/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Name:     "synchronizator",
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	var bus relay.Broadcaster
	if cfg.Relay.UseRedis {
		client, err := redisInfra.NewClient(appCtx, cfg.Redis, "synchronizator")
		switch {
		case err != nil:
			zapLogger.Warn("redis unavailable, broadcasting locally", zap.Error(err))
		case client != nil:
			bus = redisInfra.NewBus(client, cfg.Relay.Channel, zapLogger.Named("bus"))
			manager.Register("redis", func(ctx context.Context) error {
				return client.Close()
			})
		}
	}

	hub := relay.NewHub(bus, zapLogger.Named("hub"))
	manager.Go("hub", func() error { return hub.Run(appCtx) })

	server := &http.Server{
		Addr:        cfg.RelayAddress(),
		Handler:     hub.Handler(),
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}

	go func() {
		zapLogger.Info("relay started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("relay crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", server.Shutdown)

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	if err := manager.Wait(); err != nil {
		zapLogger.Error("worker exited with error", zap.Error(err))
	}
}
