package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"amparo.org/internal/audit"
	"amparo.org/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type claimData struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.UserType) == "" {
		respondError(w, r, http.StatusBadRequest, codeValidationError, "email, password and userType are required")
		return
	}
	if !auth.ValidEmail(email) {
		respondError(w, r, http.StatusBadRequest, codeValidationEmail, "")
		return
	}
	if err := auth.ValidateStrength(req.Password); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationWeakPass, "")
		return
	}

	if err := a.accounts.Register(r.Context(), email, req.Password, req.UserType); err != nil {
		if errors.Is(err, auth.ErrInvalidInput) {
			respondError(w, r, http.StatusBadRequest, codeValidationError, "unsupported user type")
			return
		}
		respondError(w, r, http.StatusInternalServerError, codeInternalError, "")
		return
	}

	// Identical response for fresh and duplicate registration: account
	// existence is never observable here.
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{})
	respondOK(w, http.StatusOK, codeRegistrationSuccess, nil)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}

	token, expiresAt, user, err := a.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, r, http.StatusUnauthorized, codeInvalidCredentials, "")
			return
		}
		respondError(w, r, http.StatusInternalServerError, codeInternalError, "")
		return
	}

	w.Header().Set(authHeader, "Bearer "+token)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	respondOK(w, http.StatusOK, codeLoginSuccess, map[string]any{
		"role":               string(user.Role),
		"password_temporary": user.PasswordTemporary,
		"expires_at":         expiresAt.Format(time.RFC3339),
	})
}

// handleVerify reads the bearer token from the header only; the cookie
// channel is deliberately ignored here.
func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	identity, ok := a.identity(w, r)
	if !ok {
		return
	}
	claims, _ := a.tokens.Verify(mustTokenFromHeader(r))
	data := claimData{
		UserID: identity.UserID,
		Email:  identity.Email,
		Role:   string(identity.Role),
	}
	if claims != nil {
		data.IssuedAt = claims.IssuedAt.Time
		data.ExpiresAt = claims.ExpiresAt.Time
	}
	respondOK(w, http.StatusOK, codeTokenValid, data)
}

func mustTokenFromHeader(r *http.Request) string {
	token, _ := auth.ExtractBearer(r.Header.Get(authHeader))
	return token
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}

	err := a.accounts.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		_ = audit.LogEvent(r.Context(), "auth.password.change", map[string]any{})
		respondOK(w, http.StatusOK, codePasswordChanged, nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, r, http.StatusUnauthorized, codeInvalidCredentials, "")
	case errors.Is(err, auth.ErrPasswordReuse):
		respondError(w, r, http.StatusBadRequest, codePasswordReuse, "")
	case errors.Is(err, auth.ErrWeakPassword):
		respondError(w, r, http.StatusBadRequest, codeValidationWeakPass, "")
	case errors.Is(err, auth.ErrInvalidInput):
		respondError(w, r, http.StatusBadRequest, codeValidationError, "")
	default:
		respondError(w, r, http.StatusInternalServerError, codeInternalError, "")
	}
}
