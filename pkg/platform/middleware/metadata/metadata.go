// Package metadata records who is calling: the client address used to key
// rate limits and the User-Agent logged alongside it.
package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"xclone/pkg/requestcontext"
)

// TrustedProxies lists the networks whose X-Forwarded-For and X-Real-IP
// headers are believed. Empty trusts nobody.
type TrustedProxies []netip.Prefix

func (t TrustedProxies) trusts(raw string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientMetadata stores the client IP and User-Agent in the request context.
// Apply it before anything that rate limits by client.
func ClientMetadata(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r, trusted), r.Header.Get("User-Agent"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromRequest returns the connection's remote address unless it is a
// trusted proxy. Behind one, the nearest untrusted X-Forwarded-For hop wins,
// then X-Real-IP.
func ClientIPFromRequest(r *http.Request, trusted TrustedProxies) string {
	remote := remoteHost(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}
	if !trusted.trusts(remote) {
		return remote
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !trusted.trusts(hop) {
				return hop
			}
		}
		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return remote
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
