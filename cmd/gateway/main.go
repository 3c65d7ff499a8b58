// Command gateway is the security gateway for the portfolio platform.
//
// Subcommands:
//
//	serve — run the HTTP gateway in front of the platform backend
//	scan  — run the content scanner against a URL and report the verdict
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Automatically sets GOMEMLIMIT from the cgroup memory limit so that
	// the Go GC triggers before the OOM killer fires in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/spf13/cobra"

	"github.com/madfam-io/ai-portfolio-builder-sub004/internal/api"
	"github.com/madfam-io/ai-portfolio-builder-sub004/internal/config"
	"github.com/madfam-io/ai-portfolio-builder-sub004/internal/security"
)

func main() {
	root := &cobra.Command{
		Use:   "gateway",
		Short: "Portfolio platform security gateway",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		serveCmd(),
		scanCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// ── serve ─────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	gw := api.NewServer(cfg, backend)

	// Blocklist TTL sweep is a no-op goroutine unless BLOCKLIST_TTL is set.
	go gw.Blocklist().StartSweep(ctx)

	// Explicit timeouts to prevent Slowloris attacks. WriteTimeout omitted:
	// the upstream proxy may legitimately stream slow responses.
	srv := &http.Server{ //nolint:exhaustruct // WriteTimeout intentionally omitted
		Addr:              cfg.ListenAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("gateway started", "addr", cfg.ListenAddr, "upstream", cfg.UpstreamURL)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		stop() // release signal notification
	}

	slog.Info("shutting down", "timeout_seconds", cfg.ShutdownTimeoutSeconds)
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("gateway stopped")
	return nil
}

// newBackend builds the handler that receives allowed requests: a reverse
// proxy to UPSTREAM_URL, or nil (gateway-only endpoints) when unset.
func newBackend(cfg *config.Config) (http.Handler, error) {
	if cfg.UpstreamURL == "" {
		return nil, nil
	}
	u, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// ── scan ──────────────────────────────────────────────────────────────────────

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <url>",
		Short: "Run the content scanner against a URL and exit non-zero on a match",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}
}

func runScan(_ *cobra.Command, args []string) error {
	u, err := url.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	res := security.NewContentScanner().Scan(u.Path, u.Query())
	if res.Suspicious {
		fmt.Printf("suspicious: matched %s\n", res.Pattern)
		os.Exit(1)
	}
	fmt.Println("clean")
	return nil
}

// ── logging ───────────────────────────────────────────────────────────────────

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" || cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
