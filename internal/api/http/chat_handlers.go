package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/motivlab/platform-backend/internal/auth"
	"github.com/motivlab/platform-backend/internal/chat"
)

// POST /chat  {message} -> {reply}
func ChatHandler(svc *chat.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		var req struct {
			Message string `json:"message" validate:"required"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		reply, err := svc.Send(r.Context(), id.ID, req.Message)
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrNotConfigured):
				writeError(w, http.StatusInternalServerError, "chat backend not configured")
			case errors.Is(err, chat.ErrUpstream):
				writeError(w, http.StatusBadGateway, "upstream AI request failed")
			default:
				engineError(w, log, err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
	}
}
