// ABOUTME: Tests for the hardening header injector, including idempotence and HSTS gating.
package security

import (
	"net/http"
	"reflect"
	"testing"
)

func TestHeaderInjector_BaselineSet(t *testing.T) {
	t.Parallel()
	i := NewHeaderInjector(false, nil)
	h := http.Header{}

	i.Apply(h, "")

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-Xss-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
	if got := h.Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS must be absent outside production, got %q", got)
	}
}

func TestHeaderInjector_HSTSOnlyInProduction(t *testing.T) {
	t.Parallel()
	i := NewHeaderInjector(true, nil)
	h := http.Header{}

	i.Apply(h, "")

	want := "max-age=31536000; includeSubDomains"
	if got := h.Get("Strict-Transport-Security"); got != want {
		t.Errorf("HSTS: got %q, want %q", got, want)
	}
}

func TestHeaderInjector_ApplyTwiceIsIdempotent(t *testing.T) {
	t.Parallel()
	cors := NewCORSNegotiator(CORSPolicy{AllowedOrigins: []string{"https://example.com"}})
	i := NewHeaderInjector(true, cors)

	once := http.Header{}
	i.Apply(once, "https://example.com")

	twice := http.Header{}
	i.Apply(twice, "https://example.com")
	i.Apply(twice, "https://example.com")

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("double application differs:\nonce:  %v\ntwice: %v", once, twice)
	}
	for k, vals := range twice {
		if len(vals) != 1 {
			t.Errorf("header %s appended instead of overwritten: %v", k, vals)
		}
	}
}

func TestHeaderInjector_CORSAnnotationForAllowedOrigin(t *testing.T) {
	t.Parallel()
	cors := NewCORSNegotiator(CORSPolicy{AllowedOrigins: []string{"https://example.com"}})
	i := NewHeaderInjector(false, cors)
	h := http.Header{}

	i.Apply(h, "https://example.com")
	if got := h.Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("allow-origin: got %q", got)
	}
	if got := h.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("allow-credentials: got %q", got)
	}

	other := http.Header{}
	i.Apply(other, "https://evil.example.net")
	if got := other.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin must get no allow-origin, got %q", got)
	}
}
