package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLStore persists attempts over database/sql, against sqlite (modernc) or
// postgres (pgx stdlib). Timestamps are stored as unix seconds.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Get(ctx context.Context, userID, instrumentID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, user_email, instrument_id, status, item_order_json, created_at, updated_at, completed_at
		   FROM attempts WHERE user_id=$1 AND instrument_id=$2`, userID, instrumentID)

	var (
		a           Attempt
		orderJSON   string
		created     int64
		updated     int64
		completedAt sql.NullInt64
		status      string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.UserEmail, &a.InstrumentID, &status,
		&orderJSON, &created, &updated, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	switch Status(status) {
	case StatusInProgress, StatusCompleted:
		a.Status = Status(status)
	default:
		return Attempt{}, fmt.Errorf("malformed attempt %s: bad status %q", a.ID, status)
	}
	if err := json.Unmarshal([]byte(orderJSON), &a.ItemOrder); err != nil {
		return Attempt{}, fmt.Errorf("malformed attempt %s: item order: %w", a.ID, err)
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	a.UpdatedAt = time.Unix(updated, 0).UTC()
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		a.CompletedAt = &t
	}

	entries, err := s.loadEntries(ctx, a.ID)
	if err != nil {
		return Attempt{}, err
	}
	a.Entries = entries
	return a, nil
}

func (s *SQLStore) loadEntries(ctx context.Context, attemptID string) (map[string]ResponseEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, shown_at, answered_at, value_json
		   FROM attempt_entries WHERE attempt_id=$1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]ResponseEntry{}
	for rows.Next() {
		var (
			e        ResponseEntry
			shown    sql.NullInt64
			answered sql.NullInt64
			value    sql.NullString
		)
		if err := rows.Scan(&e.ItemID, &shown, &answered, &value); err != nil {
			return nil, err
		}
		if shown.Valid {
			t := time.Unix(shown.Int64, 0).UTC()
			e.ShownAt = &t
		}
		if answered.Valid {
			t := time.Unix(answered.Int64, 0).UTC()
			e.AnsweredAt = &t
		}
		if value.Valid {
			e.Value = json.RawMessage(value.String)
		}
		out[e.ItemID] = e
	}
	return out, rows.Err()
}

func (s *SQLStore) Create(ctx context.Context, a Attempt) error {
	orderJSON, err := json.Marshal(a.ItemOrder)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, user_email, instrument_id, status, item_order_json, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.UserID, a.UserEmail, a.InstrumentID, string(a.Status), string(orderJSON),
		a.CreatedAt.Unix(), a.UpdatedAt.Unix())
	if isUniqueViolation(err) {
		return ErrDuplicateAttempt
	}
	return err
}

func (s *SQLStore) InsertShown(ctx context.Context, attemptID, itemID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempt_entries (attempt_id, item_id, shown_at)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (attempt_id, item_id) DO NOTHING`,
		attemptID, itemID, at.Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return true, s.touch(ctx, attemptID, at)
}

func (s *SQLStore) UpsertAnswer(ctx context.Context, attemptID, itemID string, value json.RawMessage, at time.Time) error {
	// The insert path covers answers arriving before any shown event was
	// recorded; on conflict the original shown_at is kept. The EXISTS guard
	// keeps the completed state terminal even against a racing status flip.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempt_entries (attempt_id, item_id, shown_at, answered_at, value_json)
		 SELECT $1,$2,$3,$4,$5
		  WHERE EXISTS (SELECT 1 FROM attempts WHERE id=$1 AND status='in_progress')
		 ON CONFLICT (attempt_id, item_id) DO UPDATE
		 SET answered_at=excluded.answered_at, value_json=excluded.value_json`,
		attemptID, itemID, at.Unix(), at.Unix(), string(value))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAttemptCompleted
	}
	return s.touch(ctx, attemptID, at)
}

func (s *SQLStore) MarkCompleted(ctx context.Context, attemptID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status='completed', completed_at=$1, updated_at=$2
		  WHERE id=$3 AND status='in_progress'`,
		at.Unix(), at.Unix(), attemptID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) touch(ctx context.Context, attemptID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET updated_at=$1 WHERE id=$2`, at.Unix(), attemptID)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// modernc sqlite surfaces constraint failures as plain error strings.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
