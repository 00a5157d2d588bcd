package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/feniix/family-gallery-sub002/internal/auth"
	"github.com/feniix/family-gallery-sub002/internal/cache"
	"github.com/feniix/family-gallery-sub002/internal/catalog"
	"github.com/feniix/family-gallery-sub002/internal/config"
	"github.com/feniix/family-gallery-sub002/internal/handlers"
	"github.com/feniix/family-gallery-sub002/internal/metadata"
	"github.com/feniix/family-gallery-sub002/internal/services"
	"github.com/feniix/family-gallery-sub002/internal/storage"
	"github.com/feniix/family-gallery-sub002/internal/store"
	"github.com/feniix/family-gallery-sub002/internal/users"
	"github.com/feniix/family-gallery-sub002/internal/utils"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(err)
	}
	dev := cfg.App.Env == "development"

	logger, err := utils.NewLogger(dev)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	// document store and retry policy
	docs, err := store.NewDocStore(cfg.Store.DataDir, logger)
	if err != nil {
		logger.Fatalf("doc store init: %v", err)
	}
	retry := store.DefaultRetry()
	if cfg.Store.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Store.MaxAttempts
	}
	if cfg.Store.BaseDelayMS > 0 {
		retry.BaseDelay = time.Duration(cfg.Store.BaseDelayMS) * time.Millisecond
	}

	cat := catalog.New(docs, logger).WithRetryConfig(retry)
	ustore := users.NewStore(docs, logger).WithRetryConfig(retry)

	// S3 byte storage
	s3store, err := storage.NewS3Store(context.Background(), cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.Endpoint)
	if err != nil {
		logger.Fatalf("s3 init: %v", err)
	}

	media := services.NewMediaService(cat, s3store, metadata.NewFileExtractor(), logger)
	urls := services.NewURLService(cat, s3store, cfg.PresignTTL, logger).WithPutSigner(s3store)

	// optional signed-url cache
	if cfg.Redis.Addr != "" {
		urlCache, err := cache.NewSignedURLCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("redis init: %v", err)
		}
		defer func() { _ = urlCache.Close() }()
		urls = urls.WithCache(urlCache, cfg.SignedCacheTTL)
	}

	verifier, err := auth.NewJWTVerifier(cfg.JWT.PublicKeyPath)
	if err != nil {
		logger.Fatalf("jwt init: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    cfg.App.MaxUploadMB * 1024 * 1024,
	})
	handlers.NewHandler(verifier, ustore, media, urls, logger).Register(app)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		logger.Infof("starting gallery service on %s", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatalf("listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info("shutdown requested")

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	logger.Info("shutdown completed")
}
