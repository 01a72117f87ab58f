package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/motivlab/platform-backend/internal/catalog"
)

type questionBody struct {
	Stem     string           `json:"stem" validate:"required"`
	Subtitle string           `json:"subtitle,omitempty"`
	Choices  []catalog.Choice `json:"choices" validate:"required,min=2,dive"`
}

// POST /questions
func CreateQuestionHandler(store *catalog.QuestionStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionBody
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q, err := store.Create(r.Context(), catalog.Question{
			Stem: req.Stem, Subtitle: req.Subtitle, Choices: req.Choices,
		})
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /questions?limit=100
func ListQuestionsHandler(store *catalog.QuestionStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		qs, err := store.List(r.Context(), false, limit)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// PUT /questions/{id}
func UpdateQuestionHandler(store *catalog.QuestionStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionBody
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q, err := store.Update(r.Context(), catalog.Question{
			ID: chi.URLParam(r, "id"), Stem: req.Stem, Subtitle: req.Subtitle, Choices: req.Choices,
		})
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DELETE /questions/{id}
func DeleteQuestionHandler(store *catalog.QuestionStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
