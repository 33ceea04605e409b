package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/katharos/storefront/internal/auth"
	"github.com/katharos/storefront/internal/checkout"
	"github.com/katharos/storefront/internal/config"
	"github.com/katharos/storefront/internal/database"
	h "github.com/katharos/storefront/internal/http"
	"github.com/katharos/storefront/internal/media"
	"github.com/katharos/storefront/internal/poller"
	"github.com/katharos/storefront/internal/publisher"
	"github.com/katharos/storefront/internal/repository"
	"github.com/katharos/storefront/internal/service"
	"github.com/katharos/storefront/internal/store"
	"github.com/katharos/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx := context.Background()

	// Catalog store
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	products := repository.NewMongoRepository(mongoDB)
	if err := repository.CreateIndexes(ctx, products); err != nil {
		log.Warn("failed to create product indexes", zap.Error(err))
	}
	log.Info("connected to MongoDB", zap.String("db", cfg.MongoDBName))

	// Cart state
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	// Users
	sqliteDB, err := database.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		log.Fatal("failed to open sqlite database", zap.Error(err))
	}
	defer sqliteDB.Close()
	if err := auth.RunMigrations(sqliteDB); err != nil {
		log.Fatal("failed to migrate users database", zap.Error(err))
	}
	authService := auth.NewService(auth.NewRepository(sqliteDB), cfg.JWTSecret, log,
		auth.WithTokenTTL(cfg.JWTTTL),
		auth.WithAdminEmails(cfg.AdminEmails...))
	if n, err := authService.CountUsers(ctx); err == nil {
		log.Info("users database ready", zap.Int64("users", n))
	}

	// Product images are optional in development
	var images media.ImageStore
	if cfg.CloudinaryURL != "" {
		images, err = media.NewCloudinaryStore(cfg.CloudinaryURL)
		if err != nil {
			log.Fatal("failed to configure cloudinary", zap.Error(err))
		}
	} else {
		log.Warn("CLOUDINARY_URL not set, image uploads disabled")
	}

	// Events
	pub := publisher.NewKafkaPublisher(cfg.InstanceID, log, cfg.KafkaBrokers...)
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("failed to close publisher", zap.Error(err))
		}
	}()

	carts := service.NewCartService(store.NewRedisStore(redisClient, cfg.CartTTL), products, log,
		service.WithIdleTimeout(cfg.CartIdleTTL))
	carts.SetNotifier(pub)

	pollCtx, stopPolling := context.WithCancel(ctx)
	cartPoller := poller.NewPoller(carts, cfg.InstanceID, log, cfg.KafkaBrokers...)
	go cartPoller.Run(pollCtx)
	go carts.RunJanitor(pollCtx, time.Minute)

	handoff := checkout.NewHandoff(cfg.WhatsAppNumber, pub, log)

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		SecureCookies:  cfg.IsProduction(),
		Tokens:         authService,
		Carts:          h.NewCartHandler(carts, cfg.RequestTimeout, log),
		Checkout:       h.NewCheckoutHandler(carts, handoff, cfg.RequestTimeout, log),
		Products:       h.NewProductHandler(products, cfg.RequestTimeout, log),
		Auth:           h.NewAuthHandler(authService, cfg.RequestTimeout, log),
		Admin:          h.NewAdminHandler(products, images, cfg.RequestTimeout, cfg.MaxRequestBodySize, log),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("instance_id", cfg.InstanceID),
			zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	stopPolling()
	cartPoller.Close()
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Warn("failed to disconnect from MongoDB", zap.Error(err))
	}

	log.Info("server exited")
}
