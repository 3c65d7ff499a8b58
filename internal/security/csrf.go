// ABOUTME: Double-submit-cookie CSRF guard for state-changing requests.
// ABOUTME: Cookie prisma-csrf-token must match the x-csrf-token request header.
package security

import (
	"log/slog"
	"net/http"
	"strings"
)

const (
	// CSRFCookieName is the double-submit cookie holding the secret.
	CSRFCookieName = "prisma-csrf-token"

	// CSRFHeaderName is the request/response header mirroring the token.
	CSRFHeaderName = "x-csrf-token"

	// csrfCookieMaxAge is one day, matching the token rotation cadence.
	csrfCookieMaxAge = 86400
)

// CSRFGuard implements the double-submit cookie pattern.
//
// Safe methods always proceed; when no valid cookie token exists one is
// minted and attached to the response. Unsafe methods on non-exempt routes
// require the header token and cookie token to be present and equal.
//
// Cross-origin attackers can neither read nor set the cookie, so a matching
// header proves the request originated from a page that could read the token.
type CSRFGuard struct {
	exemptPrefixes []string
	secureCookies  bool
	mint           func() (string, error)
}

// NewCSRFGuard builds a guard. exemptPrefixes are path prefixes (OAuth
// callbacks, payment-provider webhooks) that bypass CSRF for any method —
// those endpoints authenticate via signatures or OAuth state and are invoked
// cross-origin by design. secureCookies must be true in production with TLS.
func NewCSRFGuard(exemptPrefixes []string, secureCookies bool) *CSRFGuard {
	return &CSRFGuard{
		exemptPrefixes: exemptPrefixes,
		secureCookies:  secureCookies,
		mint:           GenerateToken,
	}
}

// CSRFResult is the outcome of one guard evaluation.
type CSRFResult struct {
	Decision Decision

	// SetCookie is non-nil when a fresh token was minted on a safe method.
	SetCookie *http.Cookie

	// Token is the current token for this client: the cookie value, or the
	// freshly minted value. Mirrored in the x-csrf-token response header when
	// minted, and exposed to handlers via the request context.
	Token string

	// Minted reports whether Token was generated during this evaluation.
	Minted bool
}

// Exempt reports whether path bypasses CSRF entirely.
func (g *CSRFGuard) Exempt(path string) bool {
	for _, p := range g.exemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Check evaluates the request. Exemptions are evaluated before the method
// check, so exempt POSTs pass without a token and exempt GETs mint nothing.
func (g *CSRFGuard) Check(r *http.Request) CSRFResult {
	if g.Exempt(r.URL.Path) {
		return CSRFResult{Decision: Allowed()}
	}

	cookieToken := ""
	if c, err := r.Cookie(CSRFCookieName); err == nil {
		cookieToken = c.Value
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return g.ensureToken(cookieToken)
	}

	headerToken := r.Header.Get(CSRFHeaderName)
	if headerToken == "" || cookieToken == "" {
		return CSRFResult{
			Decision: Denied(http.StatusForbidden, "csrf_token_missing", "Missing CSRF token"),
		}
	}
	if !VerifyToken(headerToken, cookieToken) {
		return CSRFResult{
			Decision: Denied(http.StatusForbidden, "csrf_token_mismatch", "Invalid CSRF token"),
		}
	}
	return CSRFResult{Decision: Allowed(), Token: cookieToken}
}

// ensureToken keeps a valid existing cookie untouched (no refresh on every
// GET) or mints a replacement when the cookie is absent or malformed.
func (g *CSRFGuard) ensureToken(cookieToken string) CSRFResult {
	if ValidTokenShape(cookieToken) {
		return CSRFResult{Decision: Allowed(), Token: cookieToken}
	}

	tok, err := g.mint()
	if err != nil {
		// CSPRNG failure: fail closed rather than serve an unprotected page.
		slog.Error("csrf token mint failed", "error", err)
		return CSRFResult{
			Decision: Denied(http.StatusInternalServerError, "csrf_mint_failed", "Internal security error"),
		}
	}
	return CSRFResult{
		Decision:  Allowed(),
		Token:     tok,
		Minted:    true,
		SetCookie: g.cookie(tok),
	}
}

func (g *CSRFGuard) cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: true,
		Secure:   g.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}
