package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"amparo.org/internal/auth"
	"amparo.org/internal/lgpd"
	"amparo.org/internal/obs"
	"amparo.org/internal/pix"
)

// ReadyProbe checks the storage dependency for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer of the portal backend.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	accounts *auth.Service
	tokens   *auth.TokenService
	requests *lgpd.Service
	payments *pix.Verifier

	// secureCookies toggles the Secure attribute on session cookies; off
	// only for local development over plain HTTP.
	secureCookies bool

	rateBurst  int
	ratePerSec int
}

// New wires the API with its collaborators.
func New(rp ReadyProbe, version string, accounts *auth.Service, requests *lgpd.Service, payments *pix.Verifier) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		accounts:   accounts,
		tokens:     accounts.Tokens(),
		requests:   requests,
		payments:   payments,
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/verify", a.handleVerify)
	a.mux.HandleFunc("/v1/auth/change-password", a.handleChangePassword)

	a.mux.HandleFunc("/v1/lgpd-requests", a.handleRequests)
	a.mux.HandleFunc("/v1/company", a.handleCompany)
	a.mux.HandleFunc("/v1/company/lgpd-requests", a.handleCompanyRequests)
	a.mux.HandleFunc("/v1/admin/users", a.handleAdminUsers)

	a.mux.HandleFunc("/v1/pix/charges", a.handlePixCharges)
	a.mux.HandleFunc("/v1/pix/charges/", a.handlePixChargeStatus)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// EnableSecureCookies turns on the Secure cookie attribute (production).
func (a *API) EnableSecureCookies() { a.secureCookies = true }

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = a.withPageGate(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "amparo-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "amparo-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
