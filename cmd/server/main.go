package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/algorithm/api/handler"
	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/config"
	"github.com/fastygo/algorithm/internal/infrastructure/buffer"
	"github.com/fastygo/algorithm/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/algorithm/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/algorithm/internal/infrastructure/redis"
	"github.com/fastygo/algorithm/internal/middleware"
	"github.com/fastygo/algorithm/internal/push"
	"github.com/fastygo/algorithm/internal/router"
	"github.com/fastygo/algorithm/internal/services"
	"github.com/fastygo/algorithm/internal/services/backend"
	"github.com/fastygo/algorithm/internal/services/lifecycle"
	"github.com/fastygo/algorithm/pkg/httpcontext"
	"github.com/fastygo/algorithm/pkg/logger"
	"github.com/fastygo/algorithm/repository"
	"github.com/fastygo/algorithm/repository/postgres"
	redisRepo "github.com/fastygo/algorithm/repository/redis"
	"github.com/fastygo/algorithm/usecase"
	"github.com/fastygo/algorithm/usecase/game"
	"github.com/fastygo/algorithm/usecase/merge"
	"github.com/fastygo/algorithm/usecase/quest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Name:     cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Warn("migrations skipped", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres configuration invalid", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, cfg.AppName)
	if err != nil {
		zapLogger.Warn("redis unavailable, running without snapshot cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	bufferStore, err := buffer.Open(cfg.Buffer.Path, buffer.Options{MaxItems: cfg.Buffer.MaxSize})
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(
		monitor.PostgresProbe(pool),
		monitor.RedisProbe(redisClient),
		bufferStore,
		10*time.Second,
		zapLogger.Named("monitor"),
	)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	gameRepo := postgres.NewGameRepository(pool)
	questRepo := postgres.NewQuestRepository(pool)

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		gameRepo,
		questRepo,
		zapLogger.Named("buffer"),
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	merger := merge.New(zapLogger.Named("merge"))

	var pushClient *push.Client
	if cfg.Push.URL != "" {
		dialCtx, dialCancel := context.WithTimeout(appCtx, cfg.Push.DialTimeout)
		pushClient, err = push.Dial(dialCtx, cfg.Push.URL, merger, nil, zapLogger.Named("push"))
		dialCancel()
		if err != nil {
			zapLogger.Warn("push channel unavailable, relying on periodic fetch", zap.Error(err))
			pushClient = nil
		}
	}

	template := readTemplate(cfg.Game.TemplatePath, zapLogger)
	store := backend.New(
		storeDependencies(gameRepo, questRepo, redisClient, services.NewBufferBridge(bufferProcessor), pushClient, cfg, zapLogger),
		backend.Config{
			TimeSaveEvery: cfg.Game.TimeSaveEvery,
			QuestGoal:     cfg.Game.QuestGoal,
			TickDuration:  cfg.Game.TickDuration,
			Fallback:      template,
		},
		zapLogger.Named("store"),
	)
	if template != nil {
		if err := store.SeedTemplate(appCtx, template); err != nil {
			zapLogger.Error("failed to seed template", zap.Error(err))
		}
	}
	if err := store.Open(appCtx); err != nil {
		zapLogger.Fatal("failed to open game", zap.Error(err))
	}

	workflow := quest.New(store, quest.Config{RevealDelay: cfg.Game.RevealDelay}, zapLogger.Named("quest"))
	session := game.NewSession(store, merger, workflow, game.Config{
		TickInterval:    cfg.Game.TickInterval,
		IdleTimeout:     cfg.Game.IdleTimeout,
		DetailCacheSize: cfg.Game.DetailCacheSize,
		ControllerURL:   cfg.ControllerURL(),
	}, zapLogger.Named("session"))

	manager.Go("session", func() error { return session.Run(appCtx) })
	manager.Register("session", func(ctx context.Context) error {
		session.Close(ctx)
		return nil
	})

	if pushClient != nil {
		pushClient.SetControllerSink(session)
		session.SetControlChannel(pushClient)
		manager.Go("push", func() error {
			if err := pushClient.Run(appCtx); err != nil {
				zapLogger.Warn("push channel closed", zap.Error(err))
			}
			return nil
		})
		manager.Register("push", func(ctx context.Context) error {
			return pushClient.Close()
		})
	}

	if err := session.Init(appCtx); err != nil {
		zapLogger.Fatal("failed to initialise session", zap.Error(err))
	}

	dispatcher := usecase.NewDispatcher()
	game.RegisterActions(dispatcher, session)

	if cfg.JWT.Secret == "" {
		zapLogger.Warn("JWT_SECRET is empty, controller links are disabled")
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	handlers := router.Handlers{
		Game: apiHandler.NewGameHandler(dispatcher, store, ctxAdapter, zapLogger),
		Controller: apiHandler.NewControllerHandler(dispatcher, apiHandler.ControllerConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			TokenTTL: cfg.JWT.TokenTTL,
			Session:  uuid.NewString(),
		}, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	r := router.New(handlers, middleware.ControllerAuth(cfg.JWT.Secret, zapLogger))

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	if err := manager.Wait(); err != nil {
		zapLogger.Error("worker exited with error", zap.Error(err))
	}
}

// storeDependencies leaves optional collaborators unset rather than handing
// the store typed nils.
func storeDependencies(
	games repository.GameRepository,
	quests repository.QuestRepository,
	redisClient *goRedis.Client,
	buf usecase.SnapshotBuffer,
	pushClient *push.Client,
	cfg *config.Config,
	zapLogger *zap.Logger,
) backend.Dependencies {
	deps := backend.Dependencies{
		Games:  games,
		Quests: quests,
		Buffer: buf,
	}
	if redisClient != nil {
		deps.Cache = redisRepo.NewSnapshotCache(redisClient, cfg.Game.CacheTTL)
	}
	switch {
	case pushClient != nil:
		deps.Publisher = pushClient
	case redisClient != nil:
		deps.Publisher = redisInfra.NewBus(redisClient, cfg.Relay.Channel, zapLogger.Named("bus"))
	}
	return deps
}

func readTemplate(path string, zapLogger *zap.Logger) *domain.Game {
	if path == "" {
		return nil
	}
	template, err := backend.ReadTemplateFile(path)
	if errors.Is(err, os.ErrNotExist) {
		zapLogger.Warn("template file missing", zap.String("path", path))
		return nil
	}
	if err != nil {
		zapLogger.Error("failed to read template", zap.String("path", path), zap.Error(err))
		return nil
	}
	return template
}
