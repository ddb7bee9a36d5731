package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"github.com/kerm1977/rifas/internal/analytics"
	analytics_api "github.com/kerm1977/rifas/internal/analytics/api"
	"github.com/kerm1977/rifas/internal/auth"
	"github.com/kerm1977/rifas/internal/config"
	"github.com/kerm1977/rifas/internal/database"
	"github.com/kerm1977/rifas/internal/kafka"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/raffles"
	raffle_db "github.com/kerm1977/rifas/internal/raffles/db"
	"github.com/kerm1977/rifas/internal/raffles/raffle_api"
	"github.com/kerm1977/rifas/internal/selections"
	selection_db "github.com/kerm1977/rifas/internal/selections/db"
	rediswrap "github.com/kerm1977/rifas/internal/selections/redis"
	"github.com/kerm1977/rifas/internal/selections/selection_api"
	"github.com/kerm1977/rifas/internal/server"
	"github.com/kerm1977/rifas/internal/sse"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(bunDB, cfg.Database, log); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
	}

	if !cfg.Redis.Enabled {
		log.Warn("REDIS", "Redis disabled, claims rely on the database constraint only")
		return bunDB, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
	return bunDB, redisClient
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, using environment variables")
	}

	cfg := config.Load()
	log := logger.NewLogger(cfg.LogDir)
	defer log.Close()

	log.Info("APP", "Starting raffle service initialization")

	ctx := context.Background()
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		locks       selections.NumberLocker = rediswrap.Noop{}
		revocations auth.RevocationStore    = auth.NewMemoryRevocations()
	)
	if redisClient != nil {
		locks = rediswrap.NewRedis(redisClient, cfg.Redis.ClaimHold, log)
		revocations = auth.NewRedisRevocations(redisClient)
	}

	var publisher selections.EventPublisher
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, selection events are not published")
	}

	jwtSecret := cfg.Admin.JWTSecret
	if jwtSecret == "" {
		jwtSecret = uuid.NewString()
		log.Warn("AUTH", "JWT_SECRET not set, admin tokens will not survive a restart")
	}
	issuer, err := auth.NewTokenIssuer(jwtSecret, cfg.Admin.TokenTTL)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}
	if cfg.Admin.Email == "" || cfg.Admin.PasswordHash == "" {
		log.Warn("AUTH", "ADMIN_EMAIL or ADMIN_PASSWORD_HASH not set, administrator login disabled")
	}
	hasher := auth.NewBcryptHasher(cfg.Admin.SecretCost)

	boardEvents := sse.NewBoardEventEmitter()
	raffleService := raffles.NewService(&raffle_db.DB{Bun: bunDB}, cfg.Assets.UploadDir, log)
	selectionService := selections.NewService(
		&selection_db.DB{Bun: bunDB},
		raffleService,
		hasher,
		locks,
		publisher,
		boardEvents,
		log,
	)

	router := server.NewRouter(server.Dependencies{
		DB:          bunDB,
		Raffles:     raffle_api.NewHandler(raffleService, selectionService, cfg.Assets.PublicBaseURL, log),
		Selections:  selection_api.NewHandler(selectionService, log),
		BoardEvents: selection_api.NewSSEHandler(log, boardEvents, raffleService),
		Analytics:   analytics_api.NewHandler(analytics.NewService(bunDB), log),
		Auth: &auth.Handler{
			Admin:       cfg.Admin,
			Issuer:      issuer,
			Hasher:      hasher,
			Revocations: revocations,
			Logger:      log,
		},
		Issuer:         issuer,
		Revocations:    revocations,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})
	log.Info("ROUTER", "Routes registered under /api")

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Raffle service running on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Raffle service shutdown complete")
	}
}
