package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/motivlab/platform-backend/internal/attempt"
	"github.com/motivlab/platform-backend/internal/catalog"
	"github.com/motivlab/platform-backend/internal/users"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// decodeValid decodes a JSON body into dst and runs struct validation.
func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("malformed JSON body")
	}
	return validate.Struct(dst)
}

// engineError maps attempt-engine sentinels onto HTTP statuses. Client-input
// errors carry their message; desync errors stay opaque.
func engineError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, attempt.ErrNoItemsAvailable),
		errors.Is(err, attempt.ErrAttemptNotFound),
		errors.Is(err, attempt.ErrAttemptCompleted),
		errors.Is(err, attempt.ErrItemNotInAttempt),
		errors.Is(err, attempt.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, attempt.ErrItemLookupFailed):
		log.Error("catalog/attempt desync", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, users.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func fmtTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
