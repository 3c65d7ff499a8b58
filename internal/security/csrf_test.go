// ABOUTME: Tests for the double-submit-cookie CSRF guard.
// ABOUTME: Covers minting on safe methods, token matching on unsafe methods, and exemptions.
package security

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newGuard(t *testing.T) *CSRFGuard {
	t.Helper()
	return NewCSRFGuard([]string{"/api/auth/callback", "/api/webhooks"}, false)
}

func csrfRequest(method, path string, cookie, header string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: cookie})
	}
	if header != "" {
		r.Header.Set(CSRFHeaderName, header)
	}
	return r
}

func TestCSRF_GETWithoutCookieMintsToken(t *testing.T) {
	t.Parallel()
	g := newGuard(t)

	res := g.Check(csrfRequest(http.MethodGet, "/api/portfolios", "", ""))
	if !res.Decision.Allow {
		t.Fatalf("GET should be allowed, got deny %d", res.Decision.Status)
	}
	if !res.Minted || res.SetCookie == nil {
		t.Fatal("GET without cookie should mint a token and set a cookie")
	}

	c := res.SetCookie
	if c.Name != CSRFCookieName {
		t.Errorf("cookie name: got %q, want %q", c.Name, CSRFCookieName)
	}
	if c.Value != res.Token {
		t.Error("cookie value must equal the minted token")
	}
	if !ValidTokenShape(c.Value) {
		t.Errorf("minted token has wrong shape: %q", c.Value)
	}
	if !c.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Error("cookie must be SameSite=Strict")
	}
	if c.Path != "/" {
		t.Errorf("cookie path: got %q, want /", c.Path)
	}
	if c.MaxAge != 86400 {
		t.Errorf("cookie max-age: got %d, want 86400", c.MaxAge)
	}
	if c.Secure {
		t.Error("secure flag must follow the secureCookies setting (false here)")
	}
}

func TestCSRF_SecureCookieInProduction(t *testing.T) {
	t.Parallel()
	g := NewCSRFGuard(nil, true)
	res := g.Check(csrfRequest(http.MethodGet, "/api/portfolios", "", ""))
	if res.SetCookie == nil || !res.SetCookie.Secure {
		t.Error("production guard must mint Secure cookies")
	}
}

func TestCSRF_GETWithValidCookieLeavesItUntouched(t *testing.T) {
	t.Parallel()
	g := newGuard(t)
	tok := strings.Repeat("ab", 32)

	res := g.Check(csrfRequest(http.MethodGet, "/api/portfolios", tok, ""))
	if !res.Decision.Allow {
		t.Fatal("GET with valid cookie should be allowed")
	}
	if res.Minted || res.SetCookie != nil {
		t.Error("no refresh on every GET: existing valid cookie must not be superseded")
	}
	if res.Token != tok {
		t.Errorf("existing token should be echoed: got %q", res.Token)
	}
}

func TestCSRF_GETWithMalformedCookieMintsReplacement(t *testing.T) {
	t.Parallel()
	g := newGuard(t)

	res := g.Check(csrfRequest(http.MethodGet, "/api/portfolios", "not-a-token", ""))
	if !res.Minted || res.SetCookie == nil {
		t.Error("malformed cookie must be superseded by a fresh token")
	}
}

func TestCSRF_UnsafeMethodTokenMatrix(t *testing.T) {
	t.Parallel()
	g := newGuard(t)
	tok := strings.Repeat("cd", 32)
	other := strings.Repeat("ef", 32)

	tests := []struct {
		name      string
		cookie    string
		header    string
		wantAllow bool
		wantBody  string
	}{
		{"both present and equal", tok, tok, true, ""},
		{"missing both", "", "", false, `{"error":"Missing CSRF token"}`},
		{"missing header", tok, "", false, `{"error":"Missing CSRF token"}`},
		{"missing cookie", "", tok, false, `{"error":"Missing CSRF token"}`},
		{"mismatch", tok, other, false, `{"error":"Invalid CSRF token"}`},
		{"case difference", tok, strings.ToUpper(tok), false, `{"error":"Invalid CSRF token"}`},
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		for _, tt := range tests {
			res := g.Check(csrfRequest(method, "/api/portfolios", tt.cookie, tt.header))
			if res.Decision.Allow != tt.wantAllow {
				t.Errorf("%s %s: allow = %v, want %v", method, tt.name, res.Decision.Allow, tt.wantAllow)
				continue
			}
			if tt.wantAllow {
				continue
			}
			if res.Decision.Status != http.StatusForbidden {
				t.Errorf("%s %s: status = %d, want 403", method, tt.name, res.Decision.Status)
			}
			if res.Decision.Body != tt.wantBody {
				t.Errorf("%s %s: body = %s, want %s", method, tt.name, res.Decision.Body, tt.wantBody)
			}
		}
	}
}

// Not parallel: swaps the default logger to capture the failure log.
func TestCSRF_MintFailureFailsClosedAndLogs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	g := newGuard(t)
	g.mint = func() (string, error) { return "", errors.New("entropy exhausted") }

	res := g.Check(csrfRequest(http.MethodGet, "/api/portfolios", "", ""))
	if res.Decision.Allow {
		t.Fatal("mint failure must deny, never serve the page unprotected")
	}
	if res.Decision.Status != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", res.Decision.Status)
	}
	if !strings.Contains(buf.String(), "csrf token mint failed") {
		t.Errorf("mint failure must be logged before the deny returns, log: %s", buf.String())
	}
}

func TestCSRF_ExemptRoutesBypassEntirely(t *testing.T) {
	t.Parallel()
	g := newGuard(t)

	// Unsafe method, no tokens at all: exemption wins over the method check.
	res := g.Check(csrfRequest(http.MethodPost, "/api/auth/callback/google", "", ""))
	if !res.Decision.Allow {
		t.Error("exempt POST must bypass CSRF")
	}

	// Safe method on an exempt path: nothing is minted either.
	res = g.Check(csrfRequest(http.MethodGet, "/api/webhooks/stripe", "", ""))
	if !res.Decision.Allow || res.Minted {
		t.Error("exempt GET must not mint a token")
	}
}
