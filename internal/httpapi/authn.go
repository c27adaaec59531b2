package httpapi

import (
	"net/http"
	"strings"

	"amparo.org/internal/auth"
)

const (
	authHeader = "Authorization"

	// sessionCookie is the same-purpose fallback channel for browser
	// navigations; the Authorization header wins when both are present.
	sessionCookie = "amparo_token"
)

// publicPaths are API endpoints that skip authentication. Non-API paths are
// page routes; those are governed by the page gate, not this middleware.
var publicPaths = map[string]struct{}{
	"/v1/info":          {},
	"/v1/auth/register": {},
	"/v1/auth/login":    {},
}

// headerOnlyPaths ignore the cookie channel. Token verification endpoints
// read the header exclusively.
var headerOnlyPaths = map[string]struct{}{
	"/v1/auth/verify": {},
}

// withAuth authenticates API requests: extract the bearer token (header,
// then cookie where allowed), verify it, and attach the identity to the
// context. The rejection never reveals why verification failed beyond the
// coarse missing/invalid split.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		token, found := tokenFromRequest(r)
		if !found {
			respondError(w, r, http.StatusUnauthorized, codeAuthTokenMissing, "")
			return
		}
		claims, ok := a.tokens.Verify(token)
		if !ok {
			respondError(w, r, http.StatusUnauthorized, codeAuthTokenInvalid, "")
			return
		}

		identity := auth.Identity{
			UserID: claims.Subject,
			Email:  claims.Email,
			Role:   claims.Role,
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

// tokenFromRequest extracts the session token from the Authorization header
// or, when the path accepts it, the session cookie.
func tokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := auth.ExtractBearer(r.Header.Get(authHeader)); ok {
		return token, true
	}
	if _, headerOnly := headerOnlyPaths[r.URL.Path]; headerOnly {
		return "", false
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, true
		}
	}
	return "", false
}
