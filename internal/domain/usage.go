package domain

import "context"

// UsageEvent captures the outcome of one generation request. Only outcome
// metadata is recorded; image bytes and prompt text never leave the
// request scope.
type UsageEvent struct {
	RequestID  string
	Model      string
	Country    string
	Success    bool
	StatusCode int
	LatencyMS  int64
}

// UsageRecorder persists usage events. Recording is best-effort: callers
// log failures and never surface them to the client.
type UsageRecorder interface {
	Record(ctx context.Context, event UsageEvent) error
}
