package logger

import (
	"context"

	"go.uber.org/zap"

	"mailclassifier/pkg/trace"
)

// New 按 gin 模式创建 logger：debug 用开发格式，其余用生产 JSON 格式
func New(mode string) *zap.Logger {
	build := zap.NewProduction
	if mode == "debug" {
		build = zap.NewDevelopment
	}
	l, err := build()
	if err != nil {
		panic(err)
	}
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if traceID := trace.FromContext(ctx); traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
