package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/qrpass-service/internal/api/http"
	"github.com/spec-kit/qrpass-service/internal/api/http/handlers"
	"github.com/spec-kit/qrpass-service/internal/auth"
	"github.com/spec-kit/qrpass-service/internal/cache"
	"github.com/spec-kit/qrpass-service/internal/config"
	"github.com/spec-kit/qrpass-service/internal/events"
	"github.com/spec-kit/qrpass-service/internal/observability"
	"github.com/spec-kit/qrpass-service/internal/persistence"
	"github.com/spec-kit/qrpass-service/internal/qrcrypto"
	"github.com/spec-kit/qrpass-service/internal/qrimage"
	"github.com/spec-kit/qrpass-service/internal/repository"
	"github.com/spec-kit/qrpass-service/internal/service"
	"github.com/spec-kit/qrpass-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	sealer, err := qrcrypto.NewSealer(cfg.QR.Secret)
	if err != nil {
		logger.Fatal("failed to init sealer", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	images := cache.NewImageCache(redis.Client)

	worker.StartCacheWorker(dispatcher, images, logger)
	service.NewNotificationService(dispatcher, logger).RegisterHandlers()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewQRTokenRepository(pool)

	authService := service.NewAuthService(cfg.Auth)
	userService := service.NewUserService(userRepo, tokenRepo)
	qrService := service.NewQRService(cfg.QR, service.QRDependencies{
		UserRepo:   userRepo,
		TokenRepo:  tokenRepo,
		Sealer:     sealer,
		Renderer:   qrimage.NewRenderer(cfg.QR.ImageSize),
		Images:     images,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	var redisPinger handlers.Pinger
	if redis.Client != nil {
		redisPinger = redis
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.CORS.AllowedOrigins)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisPinger),
		Users:          handlers.NewUsersHandler(userService),
		QR:             handlers.NewQRHandler(qrService),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		Metrics:        metrics.Handler(),
		VerifyMode:     cfg.QR.VerifyMode,
	})

	logger.Info("starting server",
		zap.String("addr", cfg.App.Addr()),
		zap.String("verify_mode", string(cfg.QR.VerifyMode)),
	)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
