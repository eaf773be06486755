package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailclassifier/internal/model"
)

type stubGateway struct {
	raw   string
	err   error
	calls int

	gotInstruction string
	gotRequest     string
}

func (s *stubGateway) Complete(_ context.Context, instruction, request string) (string, error) {
	s.calls++
	s.gotInstruction = instruction
	s.gotRequest = request
	return s.raw, s.err
}

type memoryCache struct {
	entries map[string]model.Verdict
	puts    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]model.Verdict{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (model.Verdict, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *memoryCache) Put(_ context.Context, key string, v model.Verdict) {
	m.puts++
	m.entries[key] = v
}

var promoInput = model.EmailInput{
	Sender:  "a@b.com",
	Subject: "50% off today!",
	Content: "Buy now, limited offer",
}

func TestPipeline_RoundTrip(t *testing.T) {
	gw := &stubGateway{raw: `{"category":"promotional","confidence":0.88,"reason":"sale email"}`}
	p := NewPipeline(gw, nil, zap.NewNop())

	v := p.Classify(context.Background(), promoInput)

	assert.Equal(t, model.CategoryPromotional, v.Category)
	assert.Equal(t, 0.88, v.Confidence)
	assert.Equal(t, "sale email", v.Reason)
	assert.Equal(t, Instruction, gw.gotInstruction)
	assert.Equal(t, BuildPrompt(promoInput).Request, gw.gotRequest)
}

func TestPipeline_GatewayFailureFallsBack(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("%w: api key is not configured", ErrGatewayUnavailable),
		fmt.Errorf("%w: dial tcp: connection refused", ErrGatewayUnavailable),
		errors.New("unexpected transport failure"),
	} {
		p := NewPipeline(&stubGateway{err: err}, nil, zap.NewNop())

		v := p.Classify(context.Background(), promoInput)

		assert.Equal(t, model.CategoryWork, v.Category)
		assert.Equal(t, 0.5, v.Confidence)
		assert.Contains(t, v.Reason, "gateway unavailable")
	}
}

func TestPipeline_UnparseableFallsBack(t *testing.T) {
	for _, raw := range []string{
		"I cannot classify this email.",
		`{"category":"urgent-ish","confidence":0.9,"reason":"x"}`,
		`{"category": "spam", "confidence": }`,
	} {
		p := NewPipeline(&stubGateway{raw: raw}, nil, zap.NewNop())

		v := p.Classify(context.Background(), promoInput)

		assert.Equal(t, model.Verdict{
			Category:   model.CategoryWork,
			Confidence: 0.5,
			Reason:     ReasonUnparseableResponse,
		}, v, raw)
	}
}

func TestPipeline_CachesOnlySuccessfulVerdicts(t *testing.T) {
	cache := newMemoryCache()

	failing := NewPipeline(&stubGateway{raw: "no json"}, cache, zap.NewNop())
	failing.Classify(context.Background(), promoInput)
	assert.Zero(t, cache.puts)

	gw := &stubGateway{raw: `{"category":"promotional","confidence":0.88,"reason":"sale email"}`}
	p := NewPipeline(gw, cache, zap.NewNop())

	first := p.Classify(context.Background(), promoInput)
	second := p.Classify(context.Background(), promoInput)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gw.calls)
	assert.Equal(t, 1, cache.puts)
}

func TestPipeline_IgnoresInvalidCachedVerdict(t *testing.T) {
	cache := newMemoryCache()
	cache.entries[BuildPrompt(promoInput).Key()] = model.Verdict{Category: "finance", Confidence: 0.9}

	gw := &stubGateway{raw: `{"category":"spam","confidence":0.7}`}
	v := NewPipeline(gw, cache, zap.NewNop()).Classify(context.Background(), promoInput)

	require.Equal(t, 1, gw.calls)
	assert.Equal(t, model.CategorySpam, v.Category)
}

func TestFallback(t *testing.T) {
	assert.Equal(t, model.Verdict{Category: model.CategoryWork, Confidence: 0.5, Reason: "gateway unavailable"},
		Fallback(ErrGatewayUnavailable))
	assert.Equal(t, model.Verdict{Category: model.CategoryWork, Confidence: 0.5, Reason: "unparseable response"},
		Fallback(fmt.Errorf("%w: no JSON object found", ErrVerdictUnparseable)))
}
