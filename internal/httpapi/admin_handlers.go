package httpapi

import (
	"errors"
	"net/http"

	"amparo.org/internal/audit"
	"amparo.org/internal/auth"
	"amparo.org/internal/sealed"
)

type provisionUserRequest struct {
	Email        string `json:"email"`
	TempPassword string `json:"tempPassword"`
	Role         string `json:"role"`
	CompanyID    string `json:"companyId"`
}

type createCompanyRequest struct {
	Name      string `json:"name"`
	PublicKey string `json:"publicKey"`
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireSuperAdmin(w, r); !ok {
		return
	}
	var req provisionUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}
	role, ok := auth.ParseRole(req.Role)
	if !ok {
		respondError(w, r, http.StatusBadRequest, codeValidationError, "role must be admin or employee")
		return
	}

	user, err := a.accounts.Provision(r.Context(), req.Email, req.TempPassword, role, req.CompanyID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyExists):
			respondError(w, r, http.StatusConflict, codeEmailExists, "")
		case errors.Is(err, auth.ErrWeakPassword):
			respondError(w, r, http.StatusBadRequest, codeValidationWeakPass, "")
		case errors.Is(err, auth.ErrInvalidInput):
			respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		default:
			respondError(w, r, http.StatusInternalServerError, codeInternalError, "")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.user.create", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	respondOK(w, http.StatusCreated, codeUserProvisioned, map[string]any{
		"id":                 user.ID,
		"email":              user.Email,
		"role":               string(user.Role),
		"password_temporary": user.PasswordTemporary,
	})
}

func (a *API) handleCompany(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createCompany(w, r)
	case http.MethodGet:
		a.getCompany(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createCompany(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireSuperAdmin(w, r); !ok {
		return
	}
	var req createCompanyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}

	company, err := a.requests.SetupCompany(r.Context(), req.Name, req.PublicKey)
	if err != nil {
		handleLGPDError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "company.create", map[string]any{
		"company_id":      company.ID,
		"key_fingerprint": sealed.Fingerprint(company.PublicKey),
	})
	respondOK(w, http.StatusCreated, codeCompanyCreated, map[string]any{
		"id":              company.ID,
		"name":            company.Name,
		"key_fingerprint": sealed.Fingerprint(company.PublicKey),
	})
}

func (a *API) getCompany(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireCompanyRole(w, r); !ok {
		return
	}
	company, err := a.requests.Company(r.Context())
	if err != nil {
		handleLGPDError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, codeCompanyInfo, map[string]any{
		"id":              company.ID,
		"name":            company.Name,
		"public_key":      company.PublicKey,
		"key_fingerprint": sealed.Fingerprint(company.PublicKey),
		"created_at":      company.CreatedAt,
	})
}
