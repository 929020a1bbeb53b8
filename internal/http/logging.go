package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request-scoped logger installed by RequestLogger,
// which already carries request_id. When the request bypassed that middleware
// the id is attached here instead. The requester is added when known.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"handler", handlerName}

	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
		if id, ok := RequestIDFromContext(ctx); ok {
			pairs = append(pairs, "request_id", id)
		}
	}

	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if principal, ok := PrincipalFromContext(ctx); ok {
		pairs = append(pairs, "requester_id", principal.RequesterID, "override", principal.IsAdmin)
	}
	return logger.With(append(pairs, attrs...)...)
}
