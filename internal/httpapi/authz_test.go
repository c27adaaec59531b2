package httpapi

import (
	"net/http"
	"testing"

	"amparo.org/internal/auth"
)

// noRedirect returns a client that surfaces 3xx responses instead of
// following them.
func (c *apiClient) noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (c *apiClient) navigate(path, token string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}
	resp, err := c.noRedirect().Do(req)
	if err != nil {
		c.t.Fatalf("navigate: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestPageGateRedirectsAnonymousToLogin(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/dashboard", "/create-request", "/company-dashboard", "/company-setup", "/admin/users"} {
		resp := api.navigate(path, "")
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s: status %d, want 303", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/login" {
			t.Fatalf("%s: redirected to %q, want /login", path, loc)
		}
	}
}

func TestPageGateRejectsInvalidToken(t *testing.T) {
	api := newTestAPI(t)

	resp := api.navigate("/dashboard", "not-a-jwt")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("invalid session: status=%d location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestPageGateRoleEntitlements(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("subject@example.com", "Passw0rd!", auth.RoleDataSubject)
	api.seedUser("reviewer@acme.com", "Passw0rd!", auth.RoleEmployee)
	api.seedUser("root@amparo.org", "Passw0rd!", auth.RoleSuperAdmin)
	subject := api.login("subject@example.com", "Passw0rd!")
	reviewer := api.login("reviewer@acme.com", "Passw0rd!")
	root := api.login("root@amparo.org", "Passw0rd!")

	// An entitled navigation passes the gate; the API itself serves no page
	// markup, so the pass shows up as a plain 404 rather than a redirect.
	cases := []struct {
		path     string
		token    string
		redirect string
	}{
		{"/dashboard", subject, ""},
		{"/create-request", subject, ""},
		{"/company-dashboard", subject, "/dashboard"},
		{"/admin/users", subject, "/dashboard"},
		{"/company-dashboard", reviewer, ""},
		{"/company-setup", reviewer, ""},
		{"/admin/users", reviewer, "/company-dashboard"},
		{"/admin/users", root, ""},
		{"/company-dashboard", root, "/admin/users"},
	}
	for _, tc := range cases {
		resp := api.navigate(tc.path, tc.token)
		if tc.redirect == "" {
			if resp.StatusCode == http.StatusSeeOther {
				t.Fatalf("%s: unexpected redirect to %q", tc.path, resp.Header.Get("Location"))
			}
			continue
		}
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s: status %d, want 303", tc.path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != tc.redirect {
			t.Fatalf("%s: redirected to %q, want %q", tc.path, loc, tc.redirect)
		}
	}
}

func TestPageGateCoversPathVariants(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("subject@example.com", "Passw0rd!", auth.RoleDataSubject)
	subject := api.login("subject@example.com", "Passw0rd!")

	// Trailing slashes and sub-paths stay behind the gate.
	for _, path := range []string{"/company-dashboard/", "/dashboard/settings", "/admin", "/admin/users/"} {
		resp := api.navigate(path, "")
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s anonymous: status %d, want 303", path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/login" {
			t.Fatalf("%s anonymous: redirected to %q, want /login", path, loc)
		}
	}
	for _, path := range []string{"/company-dashboard/", "/admin/users/"} {
		resp := api.navigate(path, subject)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
			t.Fatalf("%s as subject: status=%d location=%q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}

	// Similarly named siblings outside the gated roots stay open.
	resp := api.navigate("/dashboard-help", "")
	if resp.StatusCode == http.StatusSeeOther {
		t.Fatal("/dashboard-help must not be gated")
	}
}

func TestUngatedPagesPassThrough(t *testing.T) {
	api := newTestAPI(t)

	resp := api.navigate("/login", "")
	if resp.StatusCode == http.StatusSeeOther {
		t.Fatal("the login page itself must not be gated")
	}
	resp = api.navigate("/", "")
	if resp.StatusCode == http.StatusSeeOther {
		t.Fatal("the landing page must not be gated")
	}
}
