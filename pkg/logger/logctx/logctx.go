// Package logctx logs through the root logger with key/values carried by the context.
package logctx

import (
	"context"

	"go.uber.org/zap"

	"github.com/nguyentranbao-ct/family-chat/pkg/logger"
)

type fieldsKey struct{}

// With returns a copy of ctx whose log lines also carry kv.
func With(ctx context.Context, kv ...any) context.Context {
	if len(kv) == 0 {
		return ctx
	}
	prev := Fields(ctx)
	merged := make([]any, 0, len(prev)+len(kv))
	merged = append(merged, prev...)
	merged = append(merged, kv...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

func Fields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	kv, _ := ctx.Value(fieldsKey{}).([]any)
	return kv
}

func from(ctx context.Context) *zap.SugaredLogger {
	l := logger.Root().WithOptions(zap.AddCallerSkip(1)).Sugar()
	if kv := Fields(ctx); len(kv) > 0 {
		l = l.With(kv...)
	}
	return l
}

func Debugw(ctx context.Context, msg string, kv ...any) { from(ctx).Debugw(msg, kv...) }
func Infow(ctx context.Context, msg string, kv ...any)  { from(ctx).Infow(msg, kv...) }
func Warnw(ctx context.Context, msg string, kv ...any)  { from(ctx).Warnw(msg, kv...) }
func Errorw(ctx context.Context, msg string, kv ...any) { from(ctx).Errorw(msg, kv...) }

func Warnf(ctx context.Context, template string, args ...any) { from(ctx).Warnf(template, args...) }

func Logw(ctx context.Context, lvl logger.Level, msg string, kv ...any) {
	from(ctx).Logw(lvl, msg, kv...)
}
