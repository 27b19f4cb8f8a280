package services

import "context"

type contextKey string

const (
	downloadIDKey contextKey = "download_id"
	stageKey      contextKey = "stage"
	requestIDKey  contextKey = "request_id"
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithDownloadID tags ctx with the download client's id for the item being
// reconciled or imported.
func WithDownloadID(ctx context.Context, id string) context.Context {
	return withValue(ctx, downloadIDKey, id)
}

func DownloadIDFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, downloadIDKey)
}

// WithStage tags ctx with the loop or pipeline step: rss, search, downloads,
// reconcile or import.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, stageKey)
}

// WithRequestID tags ctx with the correlation id shared by every log line of
// one loop run or manual import.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueOf(ctx, requestIDKey)
}
