package httpapi

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"omnihub.io/internal/audit"
	"omnihub.io/internal/auth"
	"omnihub.io/internal/ledger"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      ledger.User `json:"user"`
}

// New signups start with zero credits; an admin grants the first balance.
const signupCredits = 0

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, r, http.StatusBadRequest, "a valid email is required")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	user := &ledger.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         ledger.RoleUser,
		Credits:      signupCredits,
		Active:       true,
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.user.registered", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})

	a.issueToken(w, r, *user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.store.GetUserByEmail(r.Context(), email)
	if err != nil || auth.VerifyPassword(user.PasswordHash, req.Password) != nil {
		// Same answer for unknown email and wrong password.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.Active {
		writeError(w, r, http.StatusForbidden, "account suspended")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.user.login", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})

	a.issueToken(w, r, user)
}

func (a *API) issueToken(w http.ResponseWriter, r *http.Request, user ledger.User) {
	token, err := auth.GenerateToken(user.ID, string(user.Role), a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	user.PasswordHash = ""
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(a.tokenTTL),
		User:      user,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	user.PasswordHash = ""
	writeJSON(w, http.StatusOK, user)
}
