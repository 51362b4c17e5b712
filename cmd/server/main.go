package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialnet/infrastructure/cache"
	"socialnet/infrastructure/db"
	"socialnet/infrastructure/events"
	"socialnet/infrastructure/storage"
	"socialnet/infrastructure/telemetry"
	"socialnet/infrastructure/ws"
	"socialnet/internal/config"
	httpHandler "socialnet/internal/delivery/http"
	"socialnet/internal/delivery/websocket"
	"socialnet/internal/repository"
	"socialnet/internal/usecase"
	"socialnet/pkg/jwt"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func Run() error {
	if err := godotenv.Load(); err != nil {
		fmt.Println("godotenv: no .env file, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTELEndpoint, cfg.OTELServiceName, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	mongoDb, err := db.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer mongoDb.Close(context.Background())
	if err := mongoDb.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	slog.Info("connected to MongoDB", "database", cfg.MongoDatabase)

	objectStorage, err := storage.New(ctx, cfg.Storage.Driver, storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return err
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", cfg.Storage.Bucket, err)
	}

	jwtManager, err := jwt.NewJWTManager(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}

	var hub ws.IHub
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		slog.Info("using redis hub", "addr", cfg.RedisAddr, "serverId", cfg.ServerID)
		hub = ws.NewRedisHub(redisClient, cfg.ServerID)
	} else {
		slog.Info("using in-memory hub (single server)")
		hub = ws.NewHub()
	}
	go hub.Run(ctx)

	publishers := events.MultiPublisher{events.BroadcastPublisher{Hub: hub}}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
		slog.Info("publishing activity to kafka", "topic", cfg.KafkaTopic)
	}

	metrics := telemetry.NewMetrics()
	metrics.TrackFeedClients(hub.GetClientCount)

	// Initialize repositories
	userRepo := repository.NewUserRepository(mongoDb.DB)
	postRepo := repository.NewPostRepository(mongoDb.DB)

	// Initialize use cases
	authUc := usecase.NewAuthUsecase(userRepo, jwtManager)
	postUc := usecase.NewPostUsecase(postRepo, objectStorage, publishers, cfg.MaxPostImages)
	feedUc := usecase.NewFeedUsecase(postRepo)

	visitors := cache.NewMemCache(time.Minute)
	defer visitors.Close()

	router := httpHandler.NewRouter(cfg.CORSOrigins, metrics)

	httpHandler.MapHttpRoutes(router, httpHandler.Handlers{
		Auth:        httpHandler.NewAuthHandler(authUc, httpHandler.NewCookiePolicy(cfg.IsProduction(), cfg.RefreshTokenTTL), metrics),
		Post:        httpHandler.NewPostHandler(postUc, feedUc, cfg.MaxPostImages, metrics),
		Health:      httpHandler.NewHealthHandler(mongoDb),
		Feed:        http.HandlerFunc(websocket.NewFeedHandler(hub, cfg.CORSOrigins).HandleFeed),
		Metrics:     metrics.Handler(),
		Session:     httpHandler.NewAuthMiddleware(authUc, metrics),
		AuthLimiter: httpHandler.NewRateLimiter(visitors, cfg.AuthRateRPS, cfg.AuthRateBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "socialnet.http"),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server is running", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(cfg config.Config) {
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}
