// ABOUTME: Decision value type shared by every check in the pipeline.
// ABOUTME: Exactly one terminal decision is produced per request; never persisted.
package security

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Decision is the transient per-request verdict of a security check.
// The zero value is NOT a valid decision; use Allowed() or Denied().
type Decision struct {
	Allow bool

	// Set only when Allow is false.
	Status            int
	Body              string // JSON error body, already encoded
	Reason            string // short machine-readable reason for logs
	RetryAfterSeconds int    // >0 only for rate-limit denials
}

// Allowed returns the affirmative decision.
func Allowed() Decision {
	return Decision{Allow: true}
}

// Denied builds a deny decision with a {"error": message} JSON body.
func Denied(status int, reason, message string) Decision {
	body, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		// map[string]string cannot fail to marshal; guard anyway.
		body = []byte(`{"error":"Access denied"}`)
	}
	return Decision{
		Allow:  false,
		Status: status,
		Body:   string(body),
		Reason: reason,
	}
}

// Write serialises a deny decision onto w. Calling Write on an allow
// decision is a programming error and writes nothing.
func (d Decision) Write(w http.ResponseWriter) {
	if d.Allow {
		return
	}
	if d.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.Status)
	_, _ = w.Write([]byte(d.Body))
}
