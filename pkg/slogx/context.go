package slogx

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("req_id", reqID))
}

// TokenAttr logs a credential by fingerprint. Raw tokens never reach the logs.
func TokenAttr(key, raw string) slog.Attr {
	if raw == "" {
		return slog.String(key, "")
	}
	fp := cryptox.FingerprintToken(raw)
	return slog.String(key, fp[:12])
}
