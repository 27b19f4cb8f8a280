package logging

import (
	"context"
	"log/slog"

	"needle/internal/services"
)

const (
	FieldComponent      = "component"
	FieldDownloadID     = "download_id"
	FieldStage          = "stage"
	FieldCorrelationID  = "correlation_id"
	FieldEventType      = "event_type"
	FieldErrorHint      = "error_hint"
	FieldImpact         = "impact"
	FieldDecisionType   = "decision_type"
	FieldDecisionResult = "decision_result"
	FieldDecisionReason = "decision_reason"
	FieldArtist         = "artist"
	FieldAlbum          = "album"
	FieldRelease        = "release"
	FieldPath           = "path"
	FieldIndexer        = "indexer"
	FieldClient         = "download_client"
)

// ContextFields extracts standardized attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.DownloadIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDownloadID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger augmented with the fields carried by ctx.
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
