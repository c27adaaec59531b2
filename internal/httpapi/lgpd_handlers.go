package httpapi

import (
	"errors"
	"net/http"
	"time"

	"amparo.org/internal/audit"
	"amparo.org/internal/lgpd"
)

type createRequestRequest struct {
	Type        string `json:"type"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	CPF         string `json:"cpf"`
}

type updateStatusRequest struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

func (a *API) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createRequest(w, r)
	case http.MethodGet:
		a.listMyRequests(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req createRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}

	result, err := a.requests.Submit(r.Context(), identity, lgpd.SubmitInput{
		Type:        req.Type,
		Reason:      req.Reason,
		Description: req.Description,
		CPF:         req.CPF,
	})
	if err != nil {
		handleLGPDError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "lgpd.request.create", map[string]any{
		"request_id":      result.RequestID,
		"key_fingerprint": result.KeyFingerprint,
	})
	respondOK(w, http.StatusCreated, codeRequestCreated, map[string]any{
		"id":              result.RequestID,
		"encrypted":       result.Encrypted,
		"key_fingerprint": result.KeyFingerprint,
	})
}

func (a *API) listMyRequests(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.identity(w, r)
	if !ok {
		return
	}
	items, err := a.requests.ListMine(r.Context(), identity.UserID)
	if err != nil {
		handleLGPDError(w, r, err)
		return
	}
	if items == nil {
		items = []lgpd.Request{}
	}
	respondOK(w, http.StatusOK, codeRequestList, map[string]any{
		"items": items,
		"as_of": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleCompanyRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCompanyRequests(w, r)
	case http.MethodPatch:
		a.updateRequestStatus(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) listCompanyRequests(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireCompanyRole(w, r); !ok {
		return
	}
	items, err := a.requests.Triage(r.Context())
	if err != nil {
		handleLGPDError(w, r, err)
		return
	}
	if items == nil {
		items = []lgpd.TriageItem{}
	}
	respondOK(w, http.StatusOK, codeRequestList, map[string]any{
		"items": items,
		"as_of": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) updateRequestStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.requireCompanyRole(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}

	updated, err := a.requests.UpdateStatus(r.Context(), req.RequestID, req.Status)
	if err != nil {
		handleLGPDError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "lgpd.status.update", map[string]any{
		"request_id": updated.ID,
		"status":     string(updated.Status),
		"actor":      identity.UserID,
	})
	respondOK(w, http.StatusOK, codeStatusUpdated, updated)
}

func handleLGPDError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lgpd.ErrValidation):
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
	case errors.Is(err, lgpd.ErrCompanyNotConfigured):
		respondError(w, r, http.StatusBadRequest, codeCompanySetupRequired, "")
	case errors.Is(err, lgpd.ErrCompanyExists):
		respondError(w, r, http.StatusConflict, codeCompanyExists, "")
	case errors.Is(err, lgpd.ErrNotFound):
		respondError(w, r, http.StatusNotFound, codeNotFound, "")
	case errors.Is(err, lgpd.ErrCreateFailed):
		respondError(w, r, http.StatusInternalServerError, codeRequestCreateFailed, "")
	default:
		respondError(w, r, http.StatusInternalServerError, codeInternalError, "")
	}
}
