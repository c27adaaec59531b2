package httpapi

import (
	"net/http"
	"strings"

	"amparo.org/internal/auth"
)

// identity returns the authenticated caller or writes the 401. Handlers
// behind withAuth always find one; the guard keeps the failure mode
// explicit anyway.
func (a *API) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, codeAuthTokenMissing, "")
		return auth.Identity{}, false
	}
	return identity, true
}

// requireSuperAdmin enforces the exact-role policy used by provisioning
// surfaces. The caller is authenticated, so a mismatch is 403, never 401.
func (a *API) requireSuperAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := a.identity(w, r)
	if !ok {
		return auth.Identity{}, false
	}
	if identity.Role != auth.RoleSuperAdmin {
		respondError(w, r, http.StatusForbidden, codeSuperAdminRequired, "")
		return auth.Identity{}, false
	}
	return identity, true
}

// requireCompanyRole enforces the set-membership policy for company-scoped
// operations: role must be admin or employee.
func (a *API) requireCompanyRole(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := a.identity(w, r)
	if !ok {
		return auth.Identity{}, false
	}
	if !identity.Role.In(auth.CompanyRoles...) {
		respondError(w, r, http.StatusForbidden, codeInsufficientPerms, "")
		return auth.Identity{}, false
	}
	return identity, true
}

// pagePolicy is the route-gating table for browser navigations. Page routes
// redirect rather than returning envelope errors. Each policy covers its
// root and everything beneath it, so sub-paths and trailing-slash variants
// cannot slip past the gate.
type pagePolicy struct {
	root      string
	anyRole   bool
	roles     []auth.Role
	superOnly bool
}

var pagePolicies = []pagePolicy{
	{root: "/admin", superOnly: true},
	{root: "/company-dashboard", roles: auth.CompanyRoles},
	{root: "/company-setup", roles: auth.CompanyRoles},
	{root: "/dashboard", anyRole: true},
	{root: "/create-request", anyRole: true},
}

const loginPage = "/login"

// withPageGate enforces the route policy table at the edge for page routes.
// Unauthenticated navigations redirect to the login page; authenticated but
// unentitled ones redirect to the caller's own dashboard.
func (a *API) withPageGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		policy, gated := matchPagePolicy(r.URL.Path)
		if !gated {
			next.ServeHTTP(w, r)
			return
		}

		token, found := tokenFromRequest(r)
		if !found {
			http.Redirect(w, r, loginPage, http.StatusSeeOther)
			return
		}
		claims, ok := a.tokens.Verify(token)
		if !ok {
			http.Redirect(w, r, loginPage, http.StatusSeeOther)
			return
		}

		if !pageAllowed(policy, claims.Role) {
			http.Redirect(w, r, homeFor(claims.Role), http.StatusSeeOther)
			return
		}
		identity := auth.Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

func matchPagePolicy(path string) (pagePolicy, bool) {
	for _, policy := range pagePolicies {
		if path == policy.root || strings.HasPrefix(path, policy.root+"/") {
			return policy, true
		}
	}
	return pagePolicy{}, false
}

func pageAllowed(policy pagePolicy, role auth.Role) bool {
	switch {
	case policy.superOnly:
		return role == auth.RoleSuperAdmin
	case policy.anyRole:
		return role.Valid()
	default:
		return role.In(policy.roles...)
	}
}

// homeFor picks the landing page matching a role, used when a navigation is
// authenticated but not entitled to the requested page.
func homeFor(role auth.Role) string {
	switch role {
	case auth.RoleSuperAdmin:
		return "/admin/users"
	case auth.RoleAdmin, auth.RoleEmployee:
		return "/company-dashboard"
	default:
		return "/dashboard"
	}
}
