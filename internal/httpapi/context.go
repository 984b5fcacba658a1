package httpapi

import (
	"net/http"
	"strings"

	"github.com/pnwatin/auth-server/internal/domain"
)

// requestMetadata extracts advisory audit fields: IP and user-agent are
// never authentication inputs, only best-effort fields stamped on the
// family row.
func requestMetadata(r *http.Request) domain.RequestMetadata {
	ip := clientIP(r)
	ua := r.UserAgent()

	meta := domain.RequestMetadata{}
	if ip != "" {
		meta.IPAddress = &ip
	}
	if ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}

// clientIP prefers the first hop of X-Forwarded-For (set by a reverse
// proxy) and falls back to RemoteAddr's host part.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
