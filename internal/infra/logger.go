// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"pii-vault-engine/config"
)

// TraceHandler はトレース情報をログに付与するslogハンドラ。
type TraceHandler struct {
	handler     slog.Handler
	otelEnabled bool
}

// NewTraceHandler はトレース情報付きのslogハンドラを生成する。
func NewTraceHandler(handler slog.Handler, cfg *config.Config) *TraceHandler {
	return &TraceHandler{
		handler:     handler,
		otelEnabled: cfg.OtelEnabled,
	}
}

// Enabled はハンドラがログを処理するかどうかを返す。
func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle はログレコードを処理し、トレース情報を付与する。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.otelEnabled {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			spanCtx := span.SpanContext()
			r.AddAttrs(
				slog.String("trace", spanCtx.TraceID().String()),
				slog.String("spanId", spanCtx.SpanID().String()),
				slog.Bool("traceSampled", spanCtx.IsSampled()),
			)
		}
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs は属性を追加した新しいハンドラを返す。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{
		handler:     h.handler.WithAttrs(attrs),
		otelEnabled: h.otelEnabled,
	}
}

// WithGroup はグループを追加した新しいハンドラを返す。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{
		handler:     h.handler.WithGroup(name),
		otelEnabled: h.otelEnabled,
	}
}

// SetupLogger はトレース情報付きのグローバルロガーを設定する。
func SetupLogger(cfg *config.Config, level slog.Level) {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(NewTraceHandler(jsonHandler, cfg)))
}

// LogLevel は設定文字列をslogのレベルに変換する。
func LogLevel(cfg *config.Config) slog.Level {
	switch cfg.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
