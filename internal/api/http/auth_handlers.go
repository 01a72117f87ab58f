package http

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/motivlab/platform-backend/internal/auth"
	"github.com/motivlab/platform-backend/internal/users"
)

// SessionCookie describes how the session token travels.
type SessionCookie struct {
	Name   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

func (c SessionCookie) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c SessionCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type userPublic struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	IsAdmin               bool   `json:"is_admin"`
	DemographicsCompleted bool   `json:"demographics_completed"`
}

func toUserPublic(u users.User) userPublic {
	return userPublic{
		ID:                    u.ID,
		Email:                 u.Email,
		IsAdmin:               u.IsAdmin,
		DemographicsCompleted: u.DemographicsCompleted,
	}
}

// POST /auth/signup  {email, password}
func SignupHandler(store *users.SQLStore, svc *auth.Service, cookie SessionCookie, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required,min=8"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		u, err := store.Create(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, users.ErrEmailTaken) {
				writeError(w, http.StatusBadRequest, "email already registered")
				return
			}
			engineError(w, log, err)
			return
		}
		token, err := svc.IssueToken(u.Email)
		if err != nil {
			engineError(w, log, err)
			return
		}
		cookie.set(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user": toUserPublic(u)})
	}
}

// POST /auth/login  {email, password}
func LoginHandler(store *users.SQLStore, svc *auth.Service, cookie SessionCookie, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		u, err := store.CheckPassword(r.Context(), req.Email, req.Password)
		if err != nil {
			// same response for unknown email and wrong password
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		token, err := svc.IssueToken(u.Email)
		if err != nil {
			engineError(w, log, err)
			return
		}
		cookie.set(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user": toUserPublic(u)})
	}
}

// GET /auth/me
func MeHandler(store *users.SQLStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		u, err := store.GetByEmail(r.Context(), id.Email)
		if err != nil {
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": toUserPublic(u)})
	}
}

// POST /auth/logout
func LogoutHandler(cookie SessionCookie) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie.clear(w)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// POST /auth/change-password  {current_password, new_password}
func ChangePasswordHandler(store *users.SQLStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		var req struct {
			CurrentPassword string `json:"current_password" validate:"required"`
			NewPassword     string `json:"new_password" validate:"required,min=8"`
		}
		if err := decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := store.ChangePassword(r.Context(), id.Email, req.CurrentPassword, req.NewPassword); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "current password is incorrect")
				return
			}
			engineError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
