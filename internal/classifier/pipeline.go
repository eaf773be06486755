package classifier

import (
	"context"

	"go.uber.org/zap"

	"mailclassifier/internal/model"
	"mailclassifier/pkg/logger"
	"mailclassifier/pkg/metrics"
)

// Pipeline turns email fields into a verdict. Classify never fails: gateway and parser
// failures degrade to the fallback verdict.
type Pipeline struct {
	gateway Gateway
	cache   VerdictCache
	logger  *zap.Logger
}

// NewPipeline creates a pipeline. cache may be nil.
func NewPipeline(gateway Gateway, cache VerdictCache, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		gateway: gateway,
		cache:   cache,
		logger:  logger,
	}
}

func (p *Pipeline) Classify(ctx context.Context, in model.EmailInput) model.Verdict {
	log := logger.WithTrace(ctx, p.logger)
	log.Info("Classifying email",
		zap.String("sender", in.Sender),
		zap.String("subject", in.Subject),
	)

	prompt := BuildPrompt(in)
	key := prompt.Key()

	if p.cache != nil {
		if v, ok := p.cache.Get(ctx, key); ok && v.Category.Valid() && v.Confidence >= 0 && v.Confidence <= 1 {
			metrics.IncrementClassification("cached", v.Category.String())
			log.Debug("Verdict served from cache", zap.String("category", v.Category.String()))
			return v
		}
	}

	raw, err := p.gateway.Complete(ctx, prompt.Instruction, prompt.Request)
	if err != nil {
		v := Fallback(err)
		metrics.IncrementClassification("gateway_unavailable", v.Category.String())
		log.Warn("Classifier gateway unavailable, using fallback verdict", zap.Error(err))
		return v
	}

	v, err := ParseVerdict(raw)
	if err != nil {
		fallback := Fallback(err)
		metrics.IncrementClassification("unparseable", fallback.Category.String())
		log.Warn("Failed to parse classifier response, using fallback verdict",
			zap.String("raw", truncate(raw, maxLoggedBody)),
			zap.Error(err),
		)
		return fallback
	}

	if p.cache != nil {
		p.cache.Put(ctx, key, v)
	}

	metrics.IncrementClassification("classified", v.Category.String())
	log.Info("Email classified",
		zap.String("category", v.Category.String()),
		zap.Float64("confidence", v.Confidence),
	)
	return v
}
