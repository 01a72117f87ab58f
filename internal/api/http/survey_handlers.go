package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/motivlab/platform-backend/internal/attempt"
	"github.com/motivlab/platform-backend/internal/auth"
	"github.com/motivlab/platform-backend/internal/catalog"
)

type surveyAttemptPublic struct {
	Stage         string `json:"stage"`
	Status        string `json:"status"`
	AnsweredCount int    `json:"answered_count"`
	TotalItems    int    `json:"total_items"`
}

type surveyAnswerPublic struct {
	ItemID     string          `json:"item_id"`
	Value      json.RawMessage `json:"value"`
	ShownAt    *string         `json:"shown_at"`
	AnsweredAt *string         `json:"answered_at"`
}

type surveyStateResponse struct {
	Attempt surveyAttemptPublic  `json:"attempt"`
	Items   []catalog.SurveyItem `json:"items"`
	Answers []surveyAnswerPublic `json:"answers"`
}

func surveyState(stage string, view attempt.StateView, items []catalog.SurveyItem) surveyStateResponse {
	answers := make([]surveyAnswerPublic, 0, len(view.Entries))
	for _, e := range view.Entries {
		answers = append(answers, surveyAnswerPublic{
			ItemID:     e.ItemID,
			Value:      e.Value,
			ShownAt:    fmtTime(e.ShownAt),
			AnsweredAt: fmtTime(e.AnsweredAt),
		})
	}
	return surveyStateResponse{
		Attempt: surveyAttemptPublic{
			Stage:         stage,
			Status:        string(view.Status),
			AnsweredCount: view.AnsweredCount,
			TotalItems:    view.TotalItems,
		},
		Items:   items,
		Answers: answers,
	}
}

// GET /surveys/{stage}/state
// The survey client records shown events explicitly, so state-fetch does not
// mark anything shown.
func SurveyStateHandler(eng *attempt.Engine, insts Instruments, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		stage := chi.URLParam(r, "stage")

		view, err := eng.State(r.Context(), insts.Survey(stage), id.ID, id.Email, false)
		if err != nil {
			engineError(w, log, err)
			return
		}
		items, err := insts.SurveyItems.List(r.Context(), stage, true)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, surveyState(stage, view, items))
	}
}

// POST /surveys/{stage}/record_shown  {item_id}
func SurveyRecordShownHandler(eng *attempt.Engine, insts Instruments, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		stage := chi.URLParam(r, "stage")

		var req struct {
			ItemID string `json:"item_id" validate:"required"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := eng.RecordShown(r.Context(), insts.Survey(stage), id.ID, req.ItemID); err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// POST /surveys/{stage}/submit  {answers: [{item_id, value}]}
// The whole batch is validated before anything is written.
func SurveySubmitHandler(eng *attempt.Engine, insts Instruments, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		stage := chi.URLParam(r, "stage")

		var req struct {
			Answers []struct {
				ItemID string          `json:"item_id" validate:"required"`
				Value  json.RawMessage `json:"value" validate:"required"`
			} `json:"answers" validate:"required,min=1,dive"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		answers := make([]attempt.Answer, 0, len(req.Answers))
		for _, a := range req.Answers {
			answers = append(answers, attempt.Answer{ItemID: a.ItemID, Value: a.Value})
		}

		view, err := eng.SubmitAnswers(r.Context(), insts.Survey(stage), id.ID, answers)
		if err != nil {
			engineError(w, log, err)
			return
		}
		items, err := insts.SurveyItems.List(r.Context(), stage, true)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, surveyState(stage, view, items))
	}
}
