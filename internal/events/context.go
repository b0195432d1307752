package events

import (
	"context"
)

type contextKey int

const (
	loggerKey contextKey = iota
	operationIDKey
	fileNameKey
)

// FromContext extracts logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithLogger adds logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithOperationID tags the context, and its logger, with an encryption attempt ID.
func WithOperationID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("operation_id", id)
	ctx = context.WithValue(ctx, operationIDKey, id)
	return WithLogger(ctx, logger)
}

// WithFileName tags the context, and its logger, with the source file name.
func WithFileName(ctx context.Context, name string) context.Context {
	logger := FromContext(ctx).WithField("file", name)
	ctx = context.WithValue(ctx, fileNameKey, name)
	return WithLogger(ctx, logger)
}

// GetOperationID retrieves the operation ID from context.
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(operationIDKey).(string); ok {
		return id
	}
	return ""
}

// GetFileName retrieves the source file name from context.
func GetFileName(ctx context.Context) string {
	if name, ok := ctx.Value(fileNameKey).(string); ok {
		return name
	}
	return ""
}

var defaultLogger = Discard()

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
