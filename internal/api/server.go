// ABOUTME: HTTP server struct, constructor, and handler wiring for the security gateway.
// ABOUTME: Builds the pipeline from config and mounts infra, token, and admin endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/madfam-io/ai-portfolio-builder-sub004/internal/config"
	"github.com/madfam-io/ai-portfolio-builder-sub004/internal/metrics"
	"github.com/madfam-io/ai-portfolio-builder-sub004/internal/security"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	cfg       *config.Config
	pipeline  *security.Pipeline
	blocklist *security.Blocklist
	injector  *security.HeaderInjector
	backend   http.Handler
}

// NewServer builds the pipeline components from cfg and wires them into a
// Server. backend receives every request the pipeline allows; nil installs
// a 404 placeholder for deployments that only want the admin surface.
func NewServer(cfg *config.Config, backend http.Handler) *Server {
	if backend == nil {
		backend = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		})
	}

	blocklist := security.NewBlocklist(cfg.BlocklistTTL)
	limiter := security.NewTokenBucketLimiter(
		rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.RateLimitEvictTTL)
	// Secure cookies whenever the deployment says so or we are in production.
	secureCookies := cfg.CookieSecure || cfg.IsProduction()
	csrf := security.NewCSRFGuard(cfg.CSRFExemptRoutes, secureCookies)
	cors := security.NewCORSNegotiator(security.CORSPolicy{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxAgeSeconds:  cfg.CORSMaxAgeSeconds,
	})
	injector := security.NewHeaderInjector(cfg.IsProduction(), cors)

	pipeline := security.NewPipeline(
		security.PipelineConfig{
			ProtectedPrefix:        cfg.ProtectedPrefix,
			MaxBodyBytes:           cfg.MaxBodyBytes,
			TrustProxyHeaders:      cfg.TrustProxyHeaders,
			EnforceJSONContentType: cfg.EnforceJSONContentType,
		},
		blocklist,
		security.NewContentScanner(),
		limiter,
		csrf,
		cors,
		injector,
		security.NewSlogSink(slog.Default()),
		metrics.Sink{},
	)

	return &Server{
		cfg:       cfg,
		pipeline:  pipeline,
		blocklist: blocklist,
		injector:  injector,
		backend:   backend,
	}
}

// Blocklist exposes the injected blocklist for the sweep goroutine in main.
func (srv *Server) Blocklist() *security.Blocklist {
	return srv.blocklist
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(countRequests)
	// Inside countRequests so a recovered panic is still counted as a 500.
	// The pipeline recovers its own checks; this catches panics in the
	// backend, the admin handlers, and the gateway's own endpoints.
	r.Use(middleware.Recoverer)

	// Hardening headers on every response, including infra endpoints and
	// errors. The pipeline re-applies them; the injector overwrites, so the
	// result is identical.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			srv.injector.Apply(w.Header(), req.Header.Get("Origin"))
			next.ServeHTTP(w, req)
		})
	})

	// Infrastructure endpoints sit outside the pipeline: health probes and
	// Prometheus scrapes must not consume rate-limit budget or mint cookies.
	r.Get("/healthz", healthzHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(srv.pipeline.Middleware())

		r.Get("/api/csrf-token", srv.csrfTokenHandler)

		if srv.cfg.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(srv.requireAdmin)
				registerAdminRoutes(r, srv)
			})
		}

		// Everything else is the protected platform behind the gateway.
		r.NotFound(srv.backend.ServeHTTP)
	})

	return r
}

// csrfTokenHandler lets SPAs bootstrap: the cookie is HttpOnly, so scripts
// fetch the token here and echo it back in the x-csrf-token request header.
func (srv *Server) csrfTokenHandler(w http.ResponseWriter, r *http.Request) {
	token := security.CSRFTokenFromContext(r.Context())
	if token == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal security error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// healthzHandler reports liveness. The gateway holds no database: if we can
// answer, we are healthy.
func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// countRequests records finished requests by status class.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.CountRequest(ww.Status())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
