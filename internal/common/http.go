package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address from RemoteAddr. Proxy headers are not read
// here; the router's RealIP middleware rewrites RemoteAddr from them when mounted.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
