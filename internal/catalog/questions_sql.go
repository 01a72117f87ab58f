package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("catalog entry not found")

// QuestionStore is the quiz question catalog: admin CRUD plus the read
// surface the attempt engine consumes.
type QuestionStore struct {
	db *sql.DB
}

func NewQuestionStore(db *sql.DB) *QuestionStore { return &QuestionStore{db: db} }

func (s *QuestionStore) Create(ctx context.Context, q Question) (Question, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.Active = true
	q.CreatedAt = time.Now().UTC()
	cj, err := json.Marshal(q.Choices)
	if err != nil {
		return Question{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (id, stem, subtitle, choices_json, active, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		q.ID, q.Stem, q.Subtitle, string(cj), q.Active, q.CreatedAt.Unix())
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *QuestionStore) Get(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, stem, subtitle, choices_json, active, created_at FROM questions WHERE id=$1`, id)
	return scanQuestion(row)
}

// List returns questions, newest first. limit == 0 applies the default page
// size of 100; limit < 0 returns the whole table (attempt assignment draws
// from the full pool).
func (s *QuestionStore) List(ctx context.Context, activeOnly bool, limit int) ([]Question, error) {
	q := `SELECT id, stem, subtitle, choices_json, active, created_at FROM questions`
	if activeOnly {
		q += ` WHERE active=TRUE`
	}
	q += ` ORDER BY created_at DESC`
	if limit == 0 {
		limit = 100
	}
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Question{}
	for rows.Next() {
		qq, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qq)
	}
	return out, rows.Err()
}

func (s *QuestionStore) Update(ctx context.Context, q Question) (Question, error) {
	cj, err := json.Marshal(q.Choices)
	if err != nil {
		return Question{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET stem=$1, subtitle=$2, choices_json=$3 WHERE id=$4`,
		q.Stem, q.Subtitle, string(cj), q.ID)
	if err != nil {
		return Question{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Question{}, ErrNotFound
	}
	return s.Get(ctx, q.ID)
}

func (s *QuestionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanQuestion(row rowScanner) (Question, error) {
	var (
		q        Question
		subtitle sql.NullString
		cj       string
		created  int64
	)
	if err := row.Scan(&q.ID, &q.Stem, &subtitle, &cj, &q.Active, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrNotFound
		}
		return Question{}, err
	}
	q.Subtitle = subtitle.String
	if err := json.Unmarshal([]byte(cj), &q.Choices); err != nil {
		return Question{}, err
	}
	q.CreatedAt = time.Unix(created, 0).UTC()
	return q, nil
}
