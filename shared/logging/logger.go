package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5/middleware"
)

// NewLogger returns a slog logger configured for Cloud Logging compatibility.
func NewLogger(service string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	return slog.New(handler).With(slog.String("service", service))
}

// Discard returns a logger that drops every record. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithRequestID attaches the chi request identifier found on ctx to the logger.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return logger.With(slog.String("requestId", reqID))
	}
	return logger
}
