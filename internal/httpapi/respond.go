package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Stable machine-readable codes. Human-facing text is looked up by code in
// the translation layer; the API itself never emits free-text for users.
const (
	codeRegistrationSuccess = "REGISTRATION_SUCCESS"
	codeLoginSuccess        = "LOGIN_SUCCESS"
	codeTokenValid          = "TOKEN_VALID"
	codePasswordChanged     = "PASSWORD_CHANGED"
	codeRequestCreated      = "REQUEST_CREATED"
	codeRequestList         = "REQUEST_LIST"
	codeStatusUpdated       = "STATUS_UPDATED"
	codeCompanyCreated      = "COMPANY_CREATED"
	codeCompanyInfo         = "COMPANY_INFO"
	codeUserProvisioned     = "USER_PROVISIONED"
	codePixChargeCreated    = "PIX_CHARGE_CREATED"
	codePixChargeStatus     = "PIX_CHARGE_STATUS"

	codeAuthTokenMissing   = "AUTH_TOKEN_MISSING"
	codeAuthTokenInvalid   = "AUTH_TOKEN_INVALID"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeInsufficientPerms  = "INSUFFICIENT_PERMISSIONS"
	codeSuperAdminRequired = "SUPER_ADMIN_REQUIRED"

	codeValidationError       = "VALIDATION_ERROR"
	codeValidationEmail       = "VALIDATION_EMAIL_INVALID"
	codeValidationWeakPass    = "VALIDATION_WEAK_PASSWORD"
	codePasswordReuse         = "PASSWORD_REUSE"
	codeEmailExists           = "EMAIL_ALREADY_EXISTS"
	codeCompanyExists         = "COMPANY_EXISTS"
	codeCompanySetupRequired  = "COMPANY_SETUP_REQUIRED"
	codeRequestCreateFailed   = "REQUEST_CREATE_FAILED"
	codeNotFound              = "NOT_FOUND"
	codeMethodNotAllowed      = "METHOD_NOT_ALLOWED"
	codeRateLimited           = "RATE_LIMITED"
	codeInternalError         = "INTERNAL_ERROR"
)

// envelope is the uniform response shape. Code is mandatory by
// construction: the write helpers take it as a required argument, so no
// handler can forget it.
type envelope struct {
	Code    string `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, status int, code string, data any) {
	writeJSON(w, status, envelope{Code: code, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	env := envelope{Code: code, Message: message}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		w.Header().Set("X-Request-ID", rid)
	}
	writeJSON(w, status, env)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	respondError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
