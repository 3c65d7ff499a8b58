// ABOUTME: Ordered, short-circuiting security pipeline evaluated before business logic.
// ABOUTME: Fails closed — any panic in a check becomes a 500 Deny, never an implicit allow.
package security

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PipelineConfig carries the construction-time knobs of the pipeline.
type PipelineConfig struct {
	// ProtectedPrefix is the API surface that requires CSRF checks.
	ProtectedPrefix string

	// MaxBodyBytes is the content-length ceiling; 0 disables the check.
	MaxBodyBytes int64

	// TrustProxyHeaders enables x-forwarded-for / x-real-ip resolution.
	// Leave false unless a trusted reverse proxy controls those headers.
	TrustProxyHeaders bool

	// EnforceJSONContentType rejects unsafe-method requests whose
	// Content-Type is not application/json with 415.
	EnforceJSONContentType bool
}

// Pipeline composes the security checks in a fixed order:
// blocklist, content scan, body size, rate limit, CORS preflight, CSRF.
// The first Deny wins and later checks are skipped. The pipeline mutates
// only response headers and cookies, never the inbound request.
type Pipeline struct {
	cfg       PipelineConfig
	blocklist *Blocklist
	scanner   *ContentScanner
	limiter   RateLimiter
	csrf      *CSRFGuard
	cors      *CORSNegotiator
	injector  *HeaderInjector
	sinks     []EventSink
}

// NewPipeline wires the components together. All components are required
// except sinks, which may be empty (denies then go unrecorded, which is a
// deployment mistake but not an enforcement one).
func NewPipeline(
	cfg PipelineConfig,
	blocklist *Blocklist,
	scanner *ContentScanner,
	limiter RateLimiter,
	csrf *CSRFGuard,
	cors *CORSNegotiator,
	injector *HeaderInjector,
	sinks ...EventSink,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		blocklist: blocklist,
		scanner:   scanner,
		limiter:   limiter,
		csrf:      csrf,
		cors:      cors,
		injector:  injector,
		sinks:     sinks,
	}
}

// Outcome is the terminal result of one pipeline evaluation.
type Outcome struct {
	Decision   Decision
	ClientAddr string

	// Preflight marks a terminal OPTIONS response handled by the
	// CORSNegotiator; the request never reaches business logic.
	Preflight bool

	// CSRF state to attach to the response on Allow.
	SetCookie *http.Cookie
	CSRFToken string
	Minted    bool
}

// Evaluate runs the ordered checks against r and produces exactly one
// terminal decision. A panic in any check is converted to a Deny(500) here,
// at the orchestrator boundary.
func (p *Pipeline) Evaluate(r *http.Request) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(r.Context(), "security pipeline panic",
				"panic", rec, "method", r.Method, "url", r.URL.String())
			out = Outcome{
				Decision:   Denied(http.StatusInternalServerError, "pipeline_panic", "Internal security error"),
				ClientAddr: out.ClientAddr,
			}
		}
	}()

	addr := ResolveClientAddress(r, p.cfg.TrustProxyHeaders)
	out.ClientAddr = addr

	// 1. Blocklist — cheapest check first.
	if p.blocklist.IsBlocked(addr) {
		p.record(r, addr, EventBlockedIP, "")
		out.Decision = Denied(http.StatusForbidden, "ip_blocked", "Access denied")
		return out
	}

	// 2. Content scan over decoded path and query values.
	if res := p.scanner.Scan(r.URL.Path, r.URL.Query()); res.Suspicious {
		p.record(r, addr, EventSuspiciousContent, res.Pattern)
		out.Decision = Denied(http.StatusBadRequest, "suspicious_content", "Suspicious request content")
		return out
	}

	// 3. Body-size ceiling from content-length.
	if p.cfg.MaxBodyBytes > 0 {
		size := int64(-1)
		if cl := r.Header.Get("Content-Length"); cl != "" {
			// Non-numeric means unknown-and-allowed: it cannot be validated
			// without reading the body, which belongs to the handler.
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = n
			}
		} else if r.ContentLength > 0 {
			size = r.ContentLength
		}
		if size > p.cfg.MaxBodyBytes {
			p.record(r, addr, EventRequestTooLarge, strconv.FormatInt(size, 10))
			out.Decision = Denied(http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
			return out
		}
	}

	if p.cfg.EnforceJSONContentType && isUnsafeMethod(r.Method) {
		ct := r.Header.Get("Content-Type")
		if ct != "" && !strings.HasPrefix(ct, "application/json") {
			// No event type covers media-type denials; log directly so the
			// deny still leaves a trace.
			slog.WarnContext(r.Context(), "request denied",
				"reason", "unsupported_media_type", "ip", addr,
				"method", r.Method, "url", r.URL.String(), "content_type", ct)
			out.Decision = Denied(http.StatusUnsupportedMediaType, "unsupported_media_type", "Unsupported media type")
			return out
		}
	}

	// 4. Rate limit. The limiter's verdict is returned unchanged.
	if v := p.limiter.Allow(r.URL.Path, addr); !v.Allowed {
		p.record(r, addr, EventRateLimited, "")
		d := Denied(http.StatusTooManyRequests, "rate_limited", "Too many requests")
		d.RetryAfterSeconds = v.RetryAfterSeconds
		out.Decision = d
		return out
	}

	// 5. OPTIONS is terminal: the CORSNegotiator answers and business
	// logic (and CSRF) never run.
	if r.Method == http.MethodOptions {
		out.Decision = Allowed()
		out.Preflight = true
		return out
	}

	// 6. CSRF only under the protected API surface.
	if p.cfg.ProtectedPrefix != "" && strings.HasPrefix(r.URL.Path, p.cfg.ProtectedPrefix) {
		res := p.csrf.Check(r)
		if !res.Decision.Allow {
			if res.Decision.Status == http.StatusForbidden {
				p.record(r, addr, EventCSRFFailed, res.Decision.Reason)
			}
			out.Decision = res.Decision
			return out
		}
		out.Decision = res.Decision
		out.SetCookie = res.SetCookie
		out.CSRFToken = res.Token
		out.Minted = res.Minted
		return out
	}

	// 7. Outside the protected surface: allow.
	out.Decision = Allowed()
	return out
}

// Middleware adapts the pipeline to chi-style middleware. Hardening headers
// go on before anything is written so they appear on every response,
// including denials; the CSRF cookie and mirror header are attached on
// Allow; preflights and denials are written here and never reach next.
func (p *Pipeline) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			p.injector.Apply(w.Header(), origin)

			out := p.Evaluate(r)

			if !out.Decision.Allow {
				out.Decision.Write(w)
				return
			}
			if out.Preflight {
				p.cors.Preflight(w, origin)
				return
			}
			if out.SetCookie != nil {
				http.SetCookie(w, out.SetCookie)
			}
			if out.Minted {
				w.Header().Set(CSRFHeaderName, out.CSRFToken)
			}

			ctx := r.Context()
			ctx = ContextWithClientAddr(ctx, out.ClientAddr)
			if out.CSRFToken != "" {
				ctx = ContextWithCSRFToken(ctx, out.CSRFToken)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// record fans the event out to every sink. Best-effort: a panicking sink
// must not suppress the security decision, so panics are swallowed here.
func (p *Pipeline) record(r *http.Request, addr string, typ EventType, detail string) {
	e := Event{
		ID:        uuid.New(),
		Type:      typ,
		IP:        addr,
		Method:    r.Method,
		URL:       r.URL.String(),
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}
	for _, s := range p.sinks {
		func() {
			defer func() { _ = recover() }()
			s.Record(r.Context(), e)
		}()
	}
}

func isUnsafeMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// ── Request context plumbing ──────────────────────────────────────────────────

type contextKey int

const (
	ctxClientAddr contextKey = iota // string — resolved client address
	ctxCSRFToken                    // string — current CSRF token for this client
)

// ContextWithClientAddr stores the resolved client address.
func ContextWithClientAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ctxClientAddr, addr)
}

// ClientAddrFromContext returns the resolved client address, or "".
func ClientAddrFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxClientAddr).(string)
	return s
}

// ContextWithCSRFToken stores the current CSRF token for downstream handlers.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxCSRFToken, token)
}

// CSRFTokenFromContext returns the current CSRF token, or "".
func CSRFTokenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxCSRFToken).(string)
	return s
}
