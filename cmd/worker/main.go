package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"mailclassifier/internal/classifier"
	"mailclassifier/internal/config"
	"mailclassifier/internal/mqhandler"
	"mailclassifier/internal/repository"
	"mailclassifier/internal/service"
	"mailclassifier/pkg/db"
	"mailclassifier/pkg/logger"
	"mailclassifier/pkg/mq"
	"mailclassifier/pkg/otel"
	"mailclassifier/pkg/redis"
	"mailclassifier/pkg/util"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := logger.New(cfg.Server.Mode)
	defer logger.Sync()

	logger.Info("Starting mail-classifier worker...")

	cfg.Otel.ServiceName += "-worker"
	shutdownOtel, err := otel.Init(cfg.Otel, serviceVersion, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry init failed", zap.Error(err))
	}
	defer shutdownOtel()

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, cfg.DedupTTL(), logger)
	retryCounter := util.NewRetryCounter(rdb, cfg.DedupTTL())

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

	logger.Info("DB ready")

	// publisher: email.classified 事件 + 死信
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	var cache classifier.VerdictCache
	if cfg.Cache.Enabled {
		cache = classifier.NewRedisVerdictCache(rdb, cfg.CacheTTL(), logger)
	}
	pipeline := classifier.NewPipeline(classifier.NewChatGateway(cfg.Gateway, logger), cache, logger)
	emailService := service.NewEmailService(pipeline, emailRepo, publisher, logger)

	handler := mqhandler.NewEmailReceivedClassifyHandler(
		emailService,
		deduper,
		retryCounter,
		publisher,
		cfg.Worker.MaxRetries,
		logger,
	)

	logger.Info("Init consumer", zap.String("queue", cfg.Worker.Queue))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.Worker.Queue, mq.RoutingKeyEmailReceived, logger)
	if err != nil {
		logger.Fatal("Consumer init failed", zap.Error(err))
	}
	consumer.SetHandler(handler.Handle)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.StartConsuming(); err != nil {
			logger.Error("Consumer stopped with error", zap.Error(err))
		}
	}()

	logger.Info("Worker running")

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-done:
		logger.Warn("Consumer exited unexpectedly")
	}

	logger.Info("Shutting down mail-classifier worker gracefully...")

	// 停止消费，等待正在处理的消息完成
	consumer.Stop()
	<-done
	consumer.Close()

	logger.Info("mail-classifier worker shutdown complete")
}
