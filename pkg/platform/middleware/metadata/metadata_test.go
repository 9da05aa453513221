package metadata

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"xclone/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	proxies := TrustedProxies{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		trusted TrustedProxies
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for behind trusted proxy", trusted: proxies, headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "trusted hops are skipped", trusted: proxies, headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "spoofed leading hop is ignored", trusted: proxies, headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.9"}, remote: "10.0.0.2:1234", want: "198.51.100.9"},
		{name: "every hop trusted", trusted: proxies, headers: map[string]string{"X-Forwarded-For": " 10.1.1.1 , 10.0.0.1"}, remote: "10.0.0.2:1234", want: "10.1.1.1"},
		{name: "real ip behind trusted proxy", trusted: proxies, headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "10.0.0.2:1234", want: "198.51.100.4"},
		{name: "mapped ipv4 proxy", trusted: proxies, headers: map[string]string{"X-Real-IP": "198.51.100.4"}, remote: "[::ffff:10.0.0.2]:1234", want: "198.51.100.4"},
		{name: "trusted proxy without headers", trusted: proxies, remote: "10.0.0.2:1234", want: "10.0.0.2"},
		{name: "forwarded for from untrusted client", trusted: proxies, headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "no trusted proxies", headers: map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.4"}, remote: "10.0.0.2:1234", want: "10.0.0.2"},
		{name: "remote ipv6", remote: "[::1]:5555", want: "::1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "nothing", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(req, tt.trusted))
		})
	}
}

func TestClientMetadata(t *testing.T) {
	var ip, ua string
	h := ClientMetadata(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:80"
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.9", ip)
	assert.Equal(t, "curl/8.0", ua)
}
