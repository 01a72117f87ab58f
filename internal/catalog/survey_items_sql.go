package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SurveyItemStore manages the survey item catalog. Listing orders by the
// declared order field ascending, ties broken by insertion.
type SurveyItemStore struct {
	db *sql.DB
}

func NewSurveyItemStore(db *sql.DB) *SurveyItemStore { return &SurveyItemStore{db: db} }

const surveyItemCols = `id, stage, prompt, item_type, required, ord, active, category, reverse_scored, scale_json, options_json, created_at, updated_at`

func (s *SurveyItemStore) Create(ctx context.Context, it SurveyItem) (SurveyItem, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	scaleJSON, optionsJSON, err := marshalItemJSON(it)
	if err != nil {
		return SurveyItem{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO survey_items (`+surveyItemCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		it.ID, it.Stage, it.Prompt, it.Type, it.Required, it.Order, it.Active,
		it.Category, it.ReverseScored, scaleJSON, optionsJSON,
		it.CreatedAt.Unix(), it.UpdatedAt.Unix())
	if err != nil {
		return SurveyItem{}, err
	}
	return it, nil
}

func (s *SurveyItemStore) Get(ctx context.Context, id string) (SurveyItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+surveyItemCols+` FROM survey_items WHERE id=$1`, id)
	return scanSurveyItem(row)
}

// List returns items of a stage (or all stages when empty), optionally
// filtered to active ones.
func (s *SurveyItemStore) List(ctx context.Context, stage string, activeOnly bool) ([]SurveyItem, error) {
	q := `SELECT ` + surveyItemCols + ` FROM survey_items`
	var (
		conds []string
		args  []any
	)
	if stage != "" {
		args = append(args, stage)
		conds = append(conds, `stage=$1`)
	}
	if activeOnly {
		conds = append(conds, `active=TRUE`)
	}
	for i, c := range conds {
		if i == 0 {
			q += ` WHERE ` + c
		} else {
			q += ` AND ` + c
		}
	}
	q += ` ORDER BY ord ASC, created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SurveyItem{}
	for rows.Next() {
		it, err := scanSurveyItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SurveyItemStore) Update(ctx context.Context, id string, patch SurveyItemPatch) (SurveyItem, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return SurveyItem{}, err
	}
	if patch.Prompt != nil {
		it.Prompt = *patch.Prompt
	}
	if patch.Type != nil {
		it.Type = *patch.Type
	}
	if patch.Required != nil {
		it.Required = *patch.Required
	}
	if patch.Order != nil {
		it.Order = *patch.Order
	}
	if patch.Active != nil {
		it.Active = *patch.Active
	}
	if patch.Category != nil {
		it.Category = *patch.Category
	}
	if patch.ReverseScored != nil {
		it.ReverseScored = *patch.ReverseScored
	}
	if patch.Scale != nil {
		it.Scale = patch.Scale
	}
	if patch.Options != nil {
		it.Options = patch.Options
	}
	it.UpdatedAt = time.Now().UTC()

	scaleJSON, optionsJSON, err := marshalItemJSON(it)
	if err != nil {
		return SurveyItem{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE survey_items
		    SET prompt=$1, item_type=$2, required=$3, ord=$4, active=$5, category=$6,
		        reverse_scored=$7, scale_json=$8, options_json=$9, updated_at=$10
		  WHERE id=$11`,
		it.Prompt, it.Type, it.Required, it.Order, it.Active, it.Category,
		it.ReverseScored, scaleJSON, optionsJSON, it.UpdatedAt.Unix(), it.ID)
	if err != nil {
		return SurveyItem{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return SurveyItem{}, ErrNotFound
	}
	return it, nil
}

func (s *SurveyItemStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM survey_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalItemJSON(it SurveyItem) (scale, options sql.NullString, err error) {
	if it.Scale != nil {
		b, e := json.Marshal(it.Scale)
		if e != nil {
			return scale, options, e
		}
		scale = sql.NullString{String: string(b), Valid: true}
	}
	if it.Options != nil {
		b, e := json.Marshal(it.Options)
		if e != nil {
			return scale, options, e
		}
		options = sql.NullString{String: string(b), Valid: true}
	}
	return scale, options, nil
}

func scanSurveyItem(row rowScanner) (SurveyItem, error) {
	var (
		it       SurveyItem
		category sql.NullString
		scaleS   sql.NullString
		optionsS sql.NullString
		created  int64
		updated  int64
	)
	if err := row.Scan(&it.ID, &it.Stage, &it.Prompt, &it.Type, &it.Required, &it.Order,
		&it.Active, &category, &it.ReverseScored, &scaleS, &optionsS, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SurveyItem{}, ErrNotFound
		}
		return SurveyItem{}, err
	}
	it.Category = category.String
	if scaleS.Valid {
		if err := json.Unmarshal([]byte(scaleS.String), &it.Scale); err != nil {
			return SurveyItem{}, err
		}
	}
	if optionsS.Valid {
		if err := json.Unmarshal([]byte(optionsS.String), &it.Options); err != nil {
			return SurveyItem{}, err
		}
	}
	it.CreatedAt = time.Unix(created, 0).UTC()
	it.UpdatedAt = time.Unix(updated, 0).UTC()
	return it, nil
}
