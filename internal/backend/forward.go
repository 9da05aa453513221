package backend

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxForwardBody caps a relayed upstream body.
const maxForwardBody = 1 << 20

// Upstream is a raw username-service answer relayed by the proxy routes.
type Upstream struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (u Upstream) OK() bool {
	return u.Status >= 200 && u.Status <= 299
}

// ForwardCheckUsername relays a check-username query with the caller's
// cookies and returns the upstream answer untouched.
func (c *Client) ForwardCheckUsername(ctx context.Context, username string, cookies []*http.Cookie) (Upstream, error) {
	return c.forward(ctx, "ForwardCheckUsername", c.checkUsernameURL(username), cookies)
}

// ForwardCookieTest relays the caller's cookies to the username service's
// debug echo.
func (c *Client) ForwardCookieTest(ctx context.Context, cookies []*http.Cookie) (Upstream, error) {
	return c.forward(ctx, "ForwardCookieTest", c.usernameURL.JoinPath("cookie-test"), cookies)
}

// CookieHeader renders cookies as a single Cookie request header value.
func CookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

func (c *Client) forward(ctx context.Context, op string, target *url.URL, cookies []*http.Cookie) (Upstream, error) {
	ctx, span := c.startSpan(ctx, op, http.MethodGet, target)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Upstream{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(cookies) > 0 {
		req.Header.Set("Cookie", CookieHeader(cookies))
	}

	client := &http.Client{Transport: c.transport, Timeout: c.timeout}
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Upstream{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxForwardBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Upstream{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return Upstream{Status: resp.StatusCode, Body: body}, nil
}
