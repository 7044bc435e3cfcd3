package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/gov-agenda/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Or(context.Background(), logger)
}

// serviceLogger scopes the request logger, or base outside a request, to one
// service operation.
func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.Or(ctx, base).With("service", serviceName)
	if operation != "" {
		logger = logger.With("operation", operation)
	}
	return logger.With(attrs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.As(err, &vErr):
		return "validation"
	default:
		return "unexpected"
	}
}
