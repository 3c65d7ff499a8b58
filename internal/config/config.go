// Package config parses and validates all application configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all gateway configuration sourced from environment variables.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────────
	ListenAddr             string `env:"LISTEN_ADDR"              envDefault:":8080"`
	AppEnv                 string `env:"APP_ENV"                  envDefault:"development"`
	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"30"`
	// UpstreamURL is the platform backend the gateway fronts. Empty serves
	// only the gateway's own endpoints (token, admin, infra).
	UpstreamURL string `env:"UPSTREAM_URL"`

	// ── CSRF ─────────────────────────────────────────────────────────────────────
	// Must be false for http://localhost; must be true in production with TLS.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"false"`
	// Path prefixes that bypass CSRF: OAuth callbacks and payment webhooks
	// authenticate via signatures / OAuth state, not cookies.
	CSRFExemptRoutes []string `env:"CSRF_EXEMPT_ROUTES" envSeparator:"," envDefault:"/api/auth/callback,/api/webhooks/stripe"`
	// ProtectedPrefix is the API surface requiring CSRF on unsafe methods.
	ProtectedPrefix string `env:"PROTECTED_PREFIX" envDefault:"/api"`

	// ── CORS ─────────────────────────────────────────────────────────────────────
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	CORSMaxAgeSeconds  int      `env:"CORS_MAX_AGE_SECONDS" envDefault:"86400"`

	// ── Request limits ───────────────────────────────────────────────────────────
	MaxBodyBytes           int64 `env:"MAX_BODY_BYTES"            envDefault:"10485760"`
	EnforceJSONContentType bool  `env:"ENFORCE_JSON_CONTENT_TYPE" envDefault:"false"`

	// ── Client address resolution ────────────────────────────────────────────────
	// Honour x-forwarded-for / x-real-ip. Only enable behind a reverse proxy
	// that strips or overwrites these headers at the network edge.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// ── Rate limiting ────────────────────────────────────────────────────────────
	RateLimitRPS      float64       `env:"RATE_LIMIT_RPS"       envDefault:"10"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST"     envDefault:"20"`
	RateLimitEvictTTL time.Duration `env:"RATE_LIMIT_EVICT_TTL" envDefault:"15m"`

	// ── Blocklist ────────────────────────────────────────────────────────────────
	// 0 disables automatic expiry: entries persist until explicit unblock.
	BlocklistTTL time.Duration `env:"BLOCKLIST_TTL" envDefault:"0"`

	// ── Admin API ────────────────────────────────────────────────────────────────
	// Bearer token required on /admin routes. Empty disables the admin API.
	AdminToken string `env:"ADMIN_TOKEN"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses and returns Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the gateway runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
