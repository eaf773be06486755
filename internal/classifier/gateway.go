package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"mailclassifier/pkg/circuitbreaker"
	"mailclassifier/pkg/config"
	"mailclassifier/pkg/logger"
	"mailclassifier/pkg/metrics"
	"mailclassifier/pkg/otel"
	"mailclassifier/pkg/trace"
)

const (
	DefaultGatewayBaseURL = "https://ai.gateway.lovable.dev/v1"
	DefaultGatewayModel   = "google/gemini-2.5-flash-lite"

	completionsPath = "/chat/completions"
	// 错误日志中保留的响应体长度
	maxLoggedBody = 512
)

// Gateway sends an instruction and a request text to a text-completion service and returns
// its raw output.
type Gateway interface {
	Complete(ctx context.Context, instruction, request string) (string, error)
}

// ChatGateway talks to an OpenAI-compatible chat completions endpoint.
type ChatGateway struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker // 熔断器
	logger     *zap.Logger
}

func NewChatGateway(cfg config.GatewayConfig, logger *zap.Logger) *ChatGateway {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGatewayBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGatewayModel
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// 连续失败后快速失败，避免每个请求都等到超时
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 1,
	}

	return &ChatGateway{
		baseURL:    baseURL,
		model:      model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		cb:         circuitbreaker.NewCircuitBreaker(cbConfig),
		logger:     logger,
	}
}

// IsConfigured reports whether an API key is present.
func (g *ChatGateway) IsConfigured() bool {
	return g.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete performs one chat completion. Every failure is reported as ErrGatewayUnavailable;
// there are no retries.
func (g *ChatGateway) Complete(ctx context.Context, instruction, request string) (string, error) {
	log := logger.WithTrace(ctx, g.logger)

	if !g.IsConfigured() {
		log.Error("Classifier gateway API key is not configured")
		return "", fmt.Errorf("%w: api key is not configured", ErrGatewayUnavailable)
	}

	ctx, span := otel.StartSpan(ctx, "classifier.gateway.complete")
	defer span.End()
	span.SetAttributes(attribute.String("gateway.model", g.model))

	var content string
	err := g.cb.Execute(func() error {
		var callErr error
		content, callErr = g.call(ctx, log, instruction, request)
		return callErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			log.Warn("Classifier gateway circuit breaker is open")
			metrics.RecordGatewayCallLatency(completionsPath, "circuit_open", 0)
		}
		if errors.Is(err, ErrGatewayUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return content, nil
}

func (g *ChatGateway) call(ctx context.Context, log *zap.Logger, instruction, request string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: request},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrGatewayUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		metrics.RecordGatewayCallLatency(completionsPath, "error", time.Since(start))
		log.Error("Classifier gateway request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		metrics.RecordGatewayCallLatency(completionsPath, "error", latency)
		log.Error("Failed to read classifier gateway response", zap.Error(err))
		return "", fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordGatewayCallLatency(completionsPath, strconv.Itoa(resp.StatusCode), latency)
		log.Error("Classifier gateway error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(respBody), maxLoggedBody)),
		)
		return "", fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	metrics.RecordGatewayCallLatency(completionsPath, "success", latency)

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		log.Error("Failed to decode classifier gateway response",
			zap.String("body", truncate(string(respBody), maxLoggedBody)),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	if len(chatResp.Choices) == 0 {
		log.Error("Classifier gateway returned no choices",
			zap.String("body", truncate(string(respBody), maxLoggedBody)),
		)
		return "", fmt.Errorf("%w: empty completion", ErrGatewayUnavailable)
	}

	return chatResp.Choices[0].Message.Content, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
