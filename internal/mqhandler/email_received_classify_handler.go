package mqhandler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "mailclassifier/contracts/mq"
	"mailclassifier/internal/model"
	"mailclassifier/internal/service"
	"mailclassifier/pkg/logger"
	"mailclassifier/pkg/metrics"
	"mailclassifier/pkg/mq"
	"mailclassifier/pkg/trace"
	"mailclassifier/pkg/util"
)

const (
	handlerName = "classify"
	// DefaultMaxRetries 超过后进入死信队列
	DefaultMaxRetries = 5
)

// EmailAdder classifies and stores an email.
type EmailAdder interface {
	AddEmail(ctx context.Context, in model.EmailInput) (*service.AddResult, error)
}

type Deduper interface {
	AcquireOnce(ctx context.Context, handler, key string) bool
	Release(ctx context.Context, handler, key string)
}

type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type DeadLetterPublisher interface {
	PublishToDLQ(routingKey string, payload []byte, reason string) error
}

// EmailReceivedClassifyHandler consumes email.received and stores a classified record for each
// message. Malformed messages and messages that exhaust their retry budget are dead-lettered.
type EmailReceivedClassifyHandler struct {
	emails       EmailAdder
	deduper      Deduper
	retryCounter RetryCounter
	dlq          DeadLetterPublisher
	maxRetries   int64
	logger       *zap.Logger
}

func NewEmailReceivedClassifyHandler(
	emails EmailAdder,
	deduper Deduper,
	retryCounter RetryCounter,
	dlq DeadLetterPublisher,
	maxRetries int64,
	logger *zap.Logger,
) *EmailReceivedClassifyHandler {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &EmailReceivedClassifyHandler{
		emails:       emails,
		deduper:      deduper,
		retryCounter: retryCounter,
		dlq:          dlq,
		maxRetries:   maxRetries,
		logger:       logger,
	}
}

// Handle returns nil to ack and an error to nack with requeue.
func (h *EmailReceivedClassifyHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload mqcontracts.EmailReceivedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Error("Invalid EmailReceivedPayload, sending to DLQ",
			zap.String("raw", string(raw)),
			zap.Error(err),
		)
		return h.deadLetter(raw, "bad_payload")
	}

	if payload.TraceID != "" {
		ctx = trace.WithContext(ctx, payload.TraceID)
	}
	log := logger.WithTrace(ctx, h.logger)

	in := model.EmailInput{
		Sender:  payload.Sender,
		Subject: payload.Subject,
		Snippet: payload.Snippet,
		Content: payload.Content,
	}
	if err := in.Validate(); err != nil {
		log.Warn("Email missing required fields, sending to DLQ",
			zap.String("message_id", payload.MessageID),
			zap.Error(err),
		)
		return h.deadLetter(raw, "invalid_input")
	}

	key := messageKey(payload.MessageID, raw)
	if !h.deduper.AcquireOnce(ctx, handlerName, key) {
		metrics.IncrementEmailProcessed("duplicate")
		return nil
	}

	retryKey := util.FormatRetryKey(handlerName, key)
	res, err := h.emails.AddEmail(ctx, in)
	if err != nil {
		return h.handleError(ctx, log, err, raw, key, retryKey)
	}

	if err := h.retryCounter.Reset(ctx, retryKey); err != nil {
		log.Warn("Failed to reset retry counter", zap.String("key", retryKey), zap.Error(err))
	}

	log.Info("Email received and classified",
		zap.String("message_id", payload.MessageID),
		zap.String("email_id", res.Email.ID),
		zap.String("category", res.Email.Category.String()),
	)
	return nil
}

func (h *EmailReceivedClassifyHandler) handleError(ctx context.Context, log *zap.Logger, err error, raw []byte, key, retryKey string) error {
	retryable, errType := util.IsRetryableError(err)

	retryCount, counterErr := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if counterErr != nil {
		log.Warn("Failed to increment retry counter", zap.String("key", retryKey), zap.Error(counterErr))
	}

	log.Warn("Failed to store email",
		zap.String("type", errType),
		zap.Bool("retryable", retryable),
		zap.Int64("retry", retryCount),
		zap.Error(err),
	)

	// 释放去重锁，重投或人工重放的消息才能再次处理
	h.deduper.Release(ctx, handlerName, key)

	if util.ShouldRetry(retryCount, h.maxRetries, retryable) {
		return err // nack → 重试
	}

	if dlqErr := h.deadLetter(raw, errType); dlqErr != nil {
		return dlqErr
	}
	if err := h.retryCounter.Reset(ctx, retryKey); err != nil {
		log.Warn("Failed to reset retry counter", zap.String("key", retryKey), zap.Error(err))
	}
	return nil // ack
}

func (h *EmailReceivedClassifyHandler) deadLetter(raw []byte, reason string) error {
	if err := h.dlq.PublishToDLQ(mq.RoutingKeyEmailReceived, raw, reason); err != nil {
		h.logger.Error("Failed to publish to DLQ", zap.String("reason", reason), zap.Error(err))
		return fmt.Errorf("publish to dlq: %w", err)
	}
	metrics.IncrementEmailProcessed("dead_lettered")
	return nil
}

// 没有 message_id 时用消息体哈希做幂等键
func messageKey(messageID string, raw []byte) string {
	if messageID != "" {
		return messageID
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
