package resolver

import (
	"context"
	"log/slog"
	"time"
)

// HookLogEvent describes one scripted hook evaluation.
type HookLogEvent struct {
	Engine     string
	Expr       string
	Identifier string
	Duration   time.Duration
	Err        error
}

// HookLogger records hook evaluations.
type HookLogger interface {
	LogHook(HookLogEvent)
}

// HookLoggerFunc adapts a function to HookLogger.
type HookLoggerFunc func(HookLogEvent)

// LogHook implements HookLogger.
func (f HookLoggerFunc) LogHook(event HookLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopHookLogger struct{}

func (noopHookLogger) LogHook(HookLogEvent) {}

// SlogHookLogger reports hook evaluations to logger at debug level, or at
// warn level when the evaluation failed.
func SlogHookLogger(logger *slog.Logger) HookLogger {
	if logger == nil {
		return noopHookLogger{}
	}
	return HookLoggerFunc(func(event HookLogEvent) {
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.String("identifier", event.Identifier),
			slog.Duration("duration", event.Duration),
		}
		if event.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.Any("error", event.Err))
		}
		logger.LogAttrs(context.Background(), level, "resolver hook evaluated", attrs...)
	})
}

// logCall records an engine entry point when call logging is enabled.
func (e *Engine) logCall(ctx context.Context, op string, attrs ...slog.Attr) {
	if !e.cfg.LogCalls || e.logger == nil {
		return
	}
	e.logger.LogAttrs(ctx, slog.LevelDebug, "resolver call", append([]slog.Attr{slog.String("op", op)}, attrs...)...)
}
