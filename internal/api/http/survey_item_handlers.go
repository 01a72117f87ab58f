package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/motivlab/platform-backend/internal/catalog"
)

type surveyItemBody struct {
	Stage         string           `json:"stage" validate:"required"`
	Prompt        string           `json:"prompt" validate:"required"`
	Type          string           `json:"type" validate:"required,oneof=likert text single_select multi_select"`
	Required      *bool            `json:"required,omitempty"`
	Order         int              `json:"order"`
	Active        *bool            `json:"active,omitempty"`
	Category      string           `json:"category,omitempty"`
	ReverseScored bool             `json:"reverse_scored"`
	Scale         *catalog.Scale   `json:"scale,omitempty"`
	Options       []catalog.Choice `json:"options,omitempty"`
}

// POST /surveys/items
func CreateSurveyItemHandler(store *catalog.SurveyItemStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req surveyItemBody
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		it := catalog.SurveyItem{
			Stage:         req.Stage,
			Prompt:        req.Prompt,
			Type:          req.Type,
			Required:      true,
			Order:         req.Order,
			Active:        true,
			Category:      req.Category,
			ReverseScored: req.ReverseScored,
			Scale:         req.Scale,
			Options:       req.Options,
		}
		if req.Required != nil {
			it.Required = *req.Required
		}
		if req.Active != nil {
			it.Active = *req.Active
		}
		created, err := store.Create(r.Context(), it)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, created)
	}
}

// GET /surveys/items?stage=pre
func ListSurveyItemsHandler(store *catalog.SurveyItemStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := store.List(r.Context(), r.URL.Query().Get("stage"), false)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// PUT /surveys/items/{id}
func UpdateSurveyItemHandler(store *catalog.SurveyItemStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch catalog.SurveyItemPatch
		if err := decodeValid(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		it, err := store.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, it)
	}
}

// DELETE /surveys/items/{id}
func DeleteSurveyItemHandler(store *catalog.SurveyItemStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
