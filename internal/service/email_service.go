package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "mailclassifier/contracts/mq"
	"mailclassifier/internal/model"
	"mailclassifier/pkg/logger"
	"mailclassifier/pkg/metrics"
	"mailclassifier/pkg/mq"
	"mailclassifier/pkg/trace"
)

// Classifier produces a verdict for an email. Implementations never fail.
type Classifier interface {
	Classify(ctx context.Context, in model.EmailInput) model.Verdict
}

// EmailStore is the record store used by the service.
type EmailStore interface {
	Insert(ctx context.Context, e *model.EmailRecord) error
	UpdateCategory(ctx context.Context, id string, category model.Category) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, category *model.Category) ([]model.EmailRecord, error)
	AllCategories(ctx context.Context) ([]model.CategoryCount, error)
}

// EventPublisher publishes domain events. May be nil.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// AddResult is a stored record together with the verdict that produced it.
type AddResult struct {
	Email   model.EmailRecord `json:"email"`
	Verdict model.Verdict     `json:"verdict"`
}

type EmailService struct {
	classifier Classifier
	store      EmailStore
	publisher  EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

func NewEmailService(classifier Classifier, store EmailStore, publisher EventPublisher, logger *zap.Logger) *EmailService {
	return &EmailService{
		classifier: classifier,
		store:      store,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Classify runs the classification pipeline without persisting anything.
func (s *EmailService) Classify(ctx context.Context, in model.EmailInput) (model.Verdict, error) {
	if err := in.Validate(); err != nil {
		return model.Verdict{}, err
	}
	return s.classifier.Classify(ctx, in), nil
}

// AddEmail classifies an email and stores it. The classified event is best effort.
func (s *EmailService) AddEmail(ctx context.Context, in model.EmailInput) (*AddResult, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	in = in.WithDerivedSnippet()
	verdict := s.classifier.Classify(ctx, in)

	record := model.NewEmailRecord(in, verdict)
	if err := s.store.Insert(ctx, record); err != nil {
		metrics.IncrementEmailProcessed("failed")
		return nil, fmt.Errorf("insert email: %w", err)
	}
	metrics.IncrementEmailProcessed("success")

	log.Info("Email stored",
		zap.String("email_id", record.ID),
		zap.String("category", record.Category.String()),
		zap.Float64("confidence", record.Confidence),
	)

	s.publish(ctx, mq.RoutingKeyEmailClassified, mqcontracts.EmailClassifiedPayload{
		EmailID:    record.ID,
		Sender:     record.Sender,
		Subject:    record.Subject,
		Category:   record.Category.String(),
		Confidence: record.Confidence,
		Reason:     verdict.Reason,
		CreatedAt:  record.CreatedAt,
		TraceID:    trace.FromContext(ctx),
	})

	return &AddResult{Email: *record, Verdict: verdict}, nil
}

// ChangeCategory sets a new category chosen by the user. No re-classification happens.
func (s *EmailService) ChangeCategory(ctx context.Context, id string, category model.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidCategory, category)
	}
	if err := s.store.UpdateCategory(ctx, id, category); err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("Email recategorized",
		zap.String("email_id", id),
		zap.String("category", category.String()),
	)

	s.publish(ctx, mq.RoutingKeyEmailRecategorized, mqcontracts.EmailRecategorizedPayload{
		EmailID:   id,
		Category:  category.String(),
		ChangedAt: s.now(),
		TraceID:   trace.FromContext(ctx),
	})
	return nil
}

func (s *EmailService) DeleteEmail(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("Email deleted", zap.String("email_id", id))

	s.publish(ctx, mq.RoutingKeyEmailDeleted, mqcontracts.EmailDeletedPayload{
		EmailID:   id,
		DeletedAt: s.now(),
		TraceID:   trace.FromContext(ctx),
	})
	return nil
}

// ListEmails returns records newest first. A nil category lists everything.
func (s *EmailService) ListEmails(ctx context.Context, category *model.Category) ([]model.EmailRecord, error) {
	if category != nil && !category.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidCategory, *category)
	}
	return s.store.List(ctx, category)
}

// Stats returns the total and a count for every category in display order, zero-filled.
func (s *EmailService) Stats(ctx context.Context) (*model.EmailStats, error) {
	counts, err := s.store.AllCategories(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[model.Category]int, len(counts))
	for _, c := range counts {
		byCategory[c.Category] += c.Count
	}

	stats := &model.EmailStats{Categories: make([]model.CategoryCount, 0, len(model.Categories))}
	for _, c := range model.Categories {
		n := byCategory[c]
		stats.Total += n
		stats.Categories = append(stats.Categories, model.CategoryCount{Category: c, Count: n})
	}
	return stats, nil
}

// 事件发布失败不影响主流程
func (s *EmailService) publish(ctx context.Context, routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
