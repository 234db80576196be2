package repo

import (
	"context"

	"floorvis/internal/domain"
	"floorvis/internal/infra"
	"floorvis/internal/sqlinline"
)

// UsageRepositoryPG implements domain.UsageRecorder on PostgreSQL. It goes
// through infra.SQLExecutor so the audit marker on every statement is
// checked and logged at execution time.
type UsageRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUsageRepository constructs the repository.
func NewUsageRepository(sql infra.SQLExecutor) *UsageRepositoryPG {
	return &UsageRepositoryPG{sql: sql}
}

// Record inserts one usage event.
func (r *UsageRepositoryPG) Record(ctx context.Context, event domain.UsageEvent) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertUsageEvent,
		event.RequestID,
		event.Model,
		event.Country,
		event.Success,
		event.StatusCode,
		event.LatencyMS,
	)
	return err
}

// NoopUsageRecorder drops events. It stands in for the Postgres recorder
// when no database is configured.
type NoopUsageRecorder struct{}

// Record discards the event.
func (NoopUsageRecorder) Record(context.Context, domain.UsageEvent) error {
	return nil
}

var (
	_ domain.UsageRecorder = (*UsageRepositoryPG)(nil)
	_ domain.UsageRecorder = NoopUsageRecorder{}
)
