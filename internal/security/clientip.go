// ABOUTME: Client address resolution from forwarded headers or the socket peer.
// ABOUTME: Forwarded headers are honoured only when the deployment trusts its proxy.
package security

import (
	"net"
	"net/http"
	"strings"
)

// UnknownAddress is returned when no client address can be determined.
const UnknownAddress = "unknown"

// ResolveClientAddress determines the client address for blocklist and
// rate-limit keying.
//
// With trustProxy set, x-forwarded-for's first hop wins, then x-real-ip,
// then the socket peer. Without it, forwarded headers are ignored entirely:
// a direct client can set them freely, so honouring them requires a trusted
// reverse proxy that strips or overwrites them at the network edge.
func ResolveClientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := xff
			if i := strings.IndexByte(xff, ','); i >= 0 {
				first = xff[:i]
			}
			if addr := strings.TrimSpace(first); addr != "" {
				return addr
			}
		}
		if rip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); rip != "" {
			return rip
		}
	}

	if r.RemoteAddr == "" {
		return UnknownAddress
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
