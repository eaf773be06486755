package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailclassifier/internal/api"
	"mailclassifier/internal/classifier"
	"mailclassifier/internal/config"
	"mailclassifier/internal/repository"
	"mailclassifier/internal/service"
	"mailclassifier/pkg/db"
	"mailclassifier/pkg/logger"
	"mailclassifier/pkg/mq"
	"mailclassifier/pkg/otel"
	"mailclassifier/pkg/redis"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := logger.New(cfg.Server.Mode)
	defer logger.Sync()
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	logger.Info("Starting mail-classifier API...")

	shutdownOtel, err := otel.Init(cfg.Otel, serviceVersion, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry init failed", zap.Error(err))
	}
	defer shutdownOtel()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	emailRepo := repository.NewEmailRepository(dbConn)
	if err := emailRepo.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("Schema bootstrap failed", zap.Error(err))
	}

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// classification pipeline
	gateway := classifier.NewChatGateway(cfg.Gateway, logger)
	if !gateway.IsConfigured() {
		logger.Warn("GATEWAY_API_KEY is not set, every classification will use the fallback verdict")
	}
	var cache classifier.VerdictCache
	if cfg.Cache.Enabled {
		cache = classifier.NewRedisVerdictCache(rdb, cfg.CacheTTL(), logger)
	}
	pipeline := classifier.NewPipeline(gateway, cache, logger)

	// 事件发布失败不影响 API，MQ 不可用时只打日志
	var publisher service.EventPublisher
	mqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Warn("MQ publisher unavailable, events will not be published", zap.Error(err))
	} else {
		defer mqPublisher.Close()
		publisher = mqPublisher
	}

	emailService := service.NewEmailService(pipeline, emailRepo, publisher, logger)
	emailHandler := api.NewEmailHandler(emailService, logger)

	router := api.NewRouter(emailHandler, map[string]api.ReadinessCheck{
		"db": emailRepo.Ping,
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}, logger)

	srv := &http.Server{
		Addr:    ":" + strings.TrimPrefix(cfg.Server.Port, ":"),
		Handler: router.Engine,
	}

	go func() {
		logger.Info("API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server start failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down mail-classifier API gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("mail-classifier API shutdown complete")
}
