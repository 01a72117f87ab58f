package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// EventRepo appends to the event_log table. Writes are best-effort by
// contract: a failed append is logged and otherwise ignored, and must never
// fail the request that produced the event.
type EventRepo struct {
	db     *sql.DB
	siteID string
	log    *zap.Logger
}

func NewEventRepo(db *sql.DB, siteID string, log *zap.Logger) *EventRepo {
	return &EventRepo{db: db, siteID: siteID, log: log}
}

func (r *EventRepo) Emit(ctx context.Context, typ, key string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		r.log.Warn("event payload marshal failed", zap.String("typ", typ), zap.Error(err))
		return
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(payload), time.Now().Unix())
	if err != nil {
		r.log.Warn("event append failed", zap.String("typ", typ), zap.String("key", key), zap.Error(err))
	}
}
