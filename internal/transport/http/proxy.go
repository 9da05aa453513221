package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"xclone/internal/backend"
	"xclone/internal/platform/metrics"
	"xclone/internal/platform/middleware"
	ratelimit "xclone/internal/ratelimit/middleware"
	"xclone/pkg/platform/httputil"
	"xclone/pkg/platform/middleware/metadata"
)

// Upstream relays browser requests to the username service.
type Upstream interface {
	ForwardCheckUsername(ctx context.Context, username string, cookies []*http.Cookie) (backend.Upstream, error)
	ForwardCookieTest(ctx context.Context, cookies []*http.Cookie) (backend.Upstream, error)
}

// ProxyHandler serves the pass-through routes the browser calls directly.
// Their error bodies are the plain {"error": ...} objects browsers of the
// username service already understand, not the signup error envelope.
type ProxyHandler struct {
	upstream Upstream
	limiter  *ratelimit.Middleware
	logger   *slog.Logger
	metrics  *metrics.Metrics
	trusted  metadata.TrustedProxies
}

type ProxyOption func(*ProxyHandler)

// WithTrustedProxies names the reverse proxies whose forwarding headers
// identify the client for rate limiting.
func WithTrustedProxies(trusted metadata.TrustedProxies) ProxyOption {
	return func(h *ProxyHandler) { h.trusted = trusted }
}

// NewProxyHandler creates the proxy routes. A nil limiter disables rate
// limiting.
func NewProxyHandler(upstream Upstream, limiter *ratelimit.Middleware, logger *slog.Logger, metrics *metrics.Metrics, opts ...ProxyOption) *ProxyHandler {
	h := &ProxyHandler{
		upstream: upstream,
		limiter:  limiter,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the proxy routes with the chi router.
func (h *ProxyHandler) Register(r chi.Router) {
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Recovery(h.logger))
		pr.Use(middleware.RequestID)
		pr.Use(metadata.ClientMetadata(h.trusted))
		pr.Use(middleware.Logger(h.logger))
		pr.Use(middleware.LatencyMiddleware(h.metrics))
		if h.limiter != nil {
			pr.Use(h.limiter.RateLimit())
		}
		pr.Get("/api/check-username", h.handleCheckUsername)
		pr.Get("/api/cookie-test", h.handleCookieTest)
	})
}

type proxyError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type cookieJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (h *ProxyHandler) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.URL.Query().Get("username")
	if username == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, proxyError{Error: "Username parameter is required"})
		return
	}

	up, err := h.upstream.ForwardCheckUsername(ctx, username, r.Cookies())
	if err != nil {
		h.internalError(ctx, w, "check-username", err)
		return
	}
	if !up.OK() {
		h.relayFailure(w, up, "Failed to check username")
		return
	}

	var data any
	if err := json.Unmarshal(up.Body, &data); err != nil {
		h.internalError(ctx, w, "check-username", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

// handleCookieTest echoes what the username service saw, plus the cookies
// this service forwarded.
func (h *ProxyHandler) handleCookieTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cookies := r.Cookies()

	up, err := h.upstream.ForwardCookieTest(ctx, cookies)
	if err != nil {
		h.internalError(ctx, w, "cookie-test", err)
		return
	}
	if !up.OK() {
		h.relayFailure(w, up, "Failed to call debug-cookies endpoint")
		return
	}

	data := map[string]any{}
	if err := json.Unmarshal(up.Body, &data); err != nil {
		h.internalError(ctx, w, "cookie-test", err)
		return
	}
	all := make([]cookieJSON, 0, len(cookies))
	for _, c := range cookies {
		all = append(all, cookieJSON{Name: c.Name, Value: c.Value})
	}
	data["cookiesSent"] = backend.CookieHeader(cookies)
	data["cookieCount"] = len(cookies)
	data["allCookies"] = all
	httputil.WriteJSON(w, http.StatusOK, data)
}

// relayFailure passes a non-2xx answer through with its status. A body that
// is not JSON is replaced by fallback.
func (h *ProxyHandler) relayFailure(w http.ResponseWriter, up backend.Upstream, fallback string) {
	var data any
	if err := json.Unmarshal(up.Body, &data); err != nil {
		data = proxyError{Error: fallback}
	}
	httputil.WriteJSON(w, up.Status, data)
}

func (h *ProxyHandler) internalError(ctx context.Context, w http.ResponseWriter, route string, err error) {
	h.logger.ErrorContext(ctx, "proxy request failed",
		"request_id", middleware.GetRequestID(ctx),
		"route", route,
		"error", err.Error(),
	)
	httputil.WriteJSON(w, http.StatusInternalServerError, proxyError{
		Error:   "Internal server error",
		Details: err.Error(),
	})
}
