package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/motivlab/platform-backend/internal/auth"
	"github.com/motivlab/platform-backend/internal/users"
)

// POST /demographics/me
func SaveDemographicsHandler(store *users.SQLStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		var req struct {
			Gender        string   `json:"gender" validate:"required"`
			OtherGender   string   `json:"otherGender,omitempty"`
			RaceEthnicity []string `json:"race_ethnicity"`
			Year          string   `json:"year" validate:"required"`
			Major         string   `json:"major,omitempty"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload, err := json.Marshal(req)
		if err != nil {
			engineError(w, log, err)
			return
		}
		if err := store.SaveDemographics(r.Context(), id.ID, payload); err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
