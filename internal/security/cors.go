// ABOUTME: Origin allow-list and preflight response construction.
// ABOUTME: Non-allow-listed origins get no Access-Control-Allow-Origin; the browser enforces.
package security

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSPolicy is immutable cross-origin configuration, loaded once at
// process start. Zero-value method/header/max-age fields take the defaults
// applied by NewCORSNegotiator.
type CORSPolicy struct {
	AllowedOrigins []string // "*" entry allows any origin (echoed, not wildcarded)
	AllowedMethods []string
	AllowedHeaders []string
	MaxAgeSeconds  int
}

// CORSNegotiator answers preflight requests and annotates ordinary
// responses with CORS headers for allow-listed origins.
type CORSNegotiator struct {
	policy      CORSPolicy
	origins     map[string]struct{}
	anyOrigin   bool
	methodsLine string
	headersLine string
	maxAgeLine  string
}

// NewCORSNegotiator compiles policy. Defaults: methods GET, POST, PUT,
// DELETE, OPTIONS; headers Content-Type, Authorization, x-csrf-token;
// max-age 86400.
func NewCORSNegotiator(policy CORSPolicy) *CORSNegotiator {
	if len(policy.AllowedMethods) == 0 {
		policy.AllowedMethods = []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}
	}
	if len(policy.AllowedHeaders) == 0 {
		policy.AllowedHeaders = []string{"Content-Type", "Authorization", CSRFHeaderName}
	}
	if policy.MaxAgeSeconds == 0 {
		policy.MaxAgeSeconds = 86400
	}

	n := &CORSNegotiator{
		policy:      policy,
		origins:     make(map[string]struct{}, len(policy.AllowedOrigins)),
		methodsLine: strings.Join(policy.AllowedMethods, ", "),
		headersLine: strings.Join(policy.AllowedHeaders, ", "),
		maxAgeLine:  strconv.Itoa(policy.MaxAgeSeconds),
	}
	for _, o := range policy.AllowedOrigins {
		if o == "*" {
			n.anyOrigin = true
			continue
		}
		n.origins[o] = struct{}{}
	}
	return n
}

// OriginAllowed reports whether origin is on the allow-list. The empty
// origin (same-origin request) is never "allowed" in the CORS sense — it
// simply needs no CORS headers.
func (n *CORSNegotiator) OriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if n.anyOrigin {
		return true
	}
	_, ok := n.origins[origin]
	return ok
}

// Preflight writes the response to an OPTIONS preflight for origin.
// Always 204: an absent Origin is same-origin and needs no CORS headers; a
// non-allow-listed origin gets a response without Access-Control-Allow-Origin,
// which the browser's CORS check then rejects client-side.
func (n *CORSNegotiator) Preflight(w http.ResponseWriter, origin string) {
	h := w.Header()
	// The response differs by Origin whether or not it is allow-listed, so
	// shared caches must always key on it.
	h.Set("Vary", "Origin")
	if n.OriginAllowed(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", n.methodsLine)
		h.Set("Access-Control-Allow-Headers", n.headersLine)
		h.Set("Access-Control-Max-Age", n.maxAgeLine)
		if !n.anyOrigin {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Annotate applies the allow/deny-origin computation of Preflight to a
// non-preflight response's headers. Idempotent: repeated calls overwrite.
func (n *CORSNegotiator) Annotate(h http.Header, origin string) {
	h.Set("Vary", "Origin")
	if !n.OriginAllowed(origin) {
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	if !n.anyOrigin {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}
