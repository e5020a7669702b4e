package logging

import (
	"context"
	"log/slog"

	"reelkeep/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTaskID is the key for background task run identifiers.
	FieldTaskID = "task_id"
	// FieldTask is the key for background task names (scan, reconcile, cleanup).
	FieldTask = "task"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldTMDBID is the key for provider identifiers.
	FieldTMDBID = "tmdb_id"
	// FieldItemType is the key for media item types.
	FieldItemType = "item_type"
	// FieldItemID is the key for media server item identifiers.
	FieldItemID = "item_id"
	// FieldCorrelationID is the key for HTTP request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTaskID, id))
	}
	if name, ok := services.TaskNameFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTask, name))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
