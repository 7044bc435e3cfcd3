package http

import (
	"context"
	"log/slog"

	"github.com/example/gov-agenda/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Or(context.Background(), logger)
}

// handlerLogger tags the request logger with the handler and operation names.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	return logging.Or(ctx, fallback).With("handler", handlerName, "operation", operation).With(attrs...)
}
