// ABOUTME: Structured security event types and the EventSink collaborator.
// ABOUTME: Sinks are best-effort relative to enforcement — a sink must never panic the pipeline.
package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the class of security denial being recorded.
type EventType string

const (
	EventBlockedIP         EventType = "BLOCKED_IP"
	EventSuspiciousContent EventType = "SUSPICIOUS_CONTENT"
	EventRequestTooLarge   EventType = "REQUEST_TOO_LARGE"
	EventRateLimited       EventType = "RATE_LIMITED"
	EventCSRFFailed        EventType = "CSRF_FAILED"
)

// Event is one recorded security denial.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	IP        string
	Method    string
	URL       string
	Timestamp time.Time

	// Detail carries the matched scanner pattern or deny reason, when known.
	Detail string
}

// EventSink receives security events. Implementations must be safe for
// concurrent use and must not block the request path on slow backends.
type EventSink interface {
	Record(ctx context.Context, e Event)
}

// SlogSink writes events as structured warn-level log records.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink writing to logger, or slog.Default() when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Record logs the event. Logging is best-effort: slog handlers that fail
// swallow their own errors, so enforcement is never affected.
func (s *SlogSink) Record(ctx context.Context, e Event) {
	s.logger.LogAttrs(ctx, slog.LevelWarn, "security event",
		slog.String("event", string(e.Type)),
		slog.String("event_id", e.ID.String()),
		slog.String("ip", e.IP),
		slog.String("method", e.Method),
		slog.String("url", e.URL),
		slog.Time("timestamp", e.Timestamp),
		slog.String("detail", e.Detail),
	)
}
