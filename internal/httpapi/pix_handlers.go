package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"amparo.org/internal/lgpd"
	"amparo.org/internal/pix"
)

type createChargeRequest struct {
	CPF string `json:"cpf"`
}

func (a *API) handlePixCharges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.identity(w, r); !ok {
		return
	}
	var req createChargeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidationError, err.Error())
		return
	}
	if !lgpd.ValidCPF(req.CPF) {
		respondError(w, r, http.StatusBadRequest, codeValidationError, "cpf must match ddd.ddd.ddd-dd")
		return
	}

	// The provider only ever sees the CPF digest, matching the metadata
	// record; the raw CPF stays inside sealed payloads.
	charge, err := a.payments.CreateCharge(r.Context(), lgpd.HashCPF(req.CPF))
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, codeInternalError, "")
		return
	}
	respondOK(w, http.StatusCreated, codePixChargeCreated, charge)
}

func (a *API) handlePixChargeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.identity(w, r); !ok {
		return
	}
	txid := strings.TrimPrefix(r.URL.Path, "/v1/pix/charges/")
	if txid == "" || strings.Contains(txid, "/") {
		respondError(w, r, http.StatusNotFound, codeNotFound, "")
		return
	}

	charge, err := a.payments.VerifyPayment(r.Context(), txid)
	if err != nil {
		if errors.Is(err, pix.ErrChargeNotFound) {
			respondError(w, r, http.StatusNotFound, codeNotFound, "")
			return
		}
		respondError(w, r, http.StatusInternalServerError, codeInternalError, "")
		return
	}
	respondOK(w, http.StatusOK, codePixChargeStatus, charge)
}
