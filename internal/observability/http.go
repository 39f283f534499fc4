package observability

import (
	"net"
	"net/http"
	"strings"
)

// IPFromRequest resolves the client address, preferring the first hop
// recorded in X-Forwarded-For over the raw socket peer.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RequestIDFromRequest reads the correlation id set by the edge proxy.
func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// DeviceIDFromRequest reads the device identifier supplied by mobile
// and web clients.
func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}
