// Package backend talks to the external signup collaborators: the account
// backend (registration, email confirmation, password) and the username
// uniqueness service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"xclone/internal/signup/models"
	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/platform/sentinel"
	"xclone/pkg/requestcontext"
)

const (
	tracerName = "xclone/internal/backend"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Client holds the collaborator endpoints and the shared transport. It is
// safe for concurrent use; per-flow state lives in Session.
type Client struct {
	backendURL  *url.URL
	usernameURL *url.URL
	transport   http.RoundTripper
	timeout     time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Client)

// WithTransport overrides the round tripper shared by every session.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithTimeout bounds each collaborator call. Zero leaves calls unbounded
// except by their context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New parses the collaborator base URLs and builds a Client.
func New(backendURL, usernameURL string, opts ...Option) (*Client, error) {
	b, err := parseBase(backendURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	u, err := parseBase(usernameURL)
	if err != nil {
		return nil, fmt.Errorf("parse username check url: %w", err)
	}
	c := &Client{
		backendURL:  b,
		usernameURL: u,
		transport:   http.DefaultTransport,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute url", raw)
	}
	return u, nil
}

// Session is one signup flow's connection to the collaborators. Cookies the
// backend sets at registration (register_token) stay in the session's jar and
// authenticate that flow's later calls only.
type Session struct {
	client *Client
	http   *http.Client
}

// NewSession creates a session with an empty cookie jar.
func (c *Client) NewSession() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Session{
		client: c,
		http: &http.Client{
			Transport: c.transport,
			Timeout:   c.timeout,
			Jar:       jar,
		},
	}, nil
}

// Cookies returns the cookies the session would send to the backend.
func (s *Session) Cookies() []*http.Cookie {
	return s.http.Jar.Cookies(s.client.backendURL)
}

type registerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	BirthDate string `json:"birthDate"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

type verifyCodeRequest struct {
	Code     string `json:"code"`
	Username string `json:"username"`
}

type updatePasswordRequest struct {
	Password string `json:"password"`
	Username string `json:"username"`
}

// RegisterUser creates the unverified account. The backend assigns the
// username and sets the register_token cookie.
func (s *Session) RegisterUser(ctx context.Context, name, email string, birthDate models.BirthDate) (models.RegisteredUser, error) {
	var user models.RegisteredUser
	err := s.do(ctx, "RegisterUser", http.MethodPost, s.client.backendURL.JoinPath("auth", "register"),
		registerRequest{Name: name, Email: email, BirthDate: birthDate.String()}, &user)
	if err != nil {
		return models.RegisteredUser{}, err
	}
	if user.Username == "" {
		return models.RegisteredUser{}, dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUnavailable, "registration returned no username")
	}
	return user, nil
}

func (s *Session) SendEmailConfirmationCode(ctx context.Context, username string) error {
	return s.do(ctx, "SendEmailConfirmationCode", http.MethodPost, s.client.backendURL.JoinPath("auth", "email", "code"),
		usernameRequest{Username: username}, nil)
}

func (s *Session) VerifyEmailConfirmationCode(ctx context.Context, code, username string) error {
	return s.do(ctx, "VerifyEmailConfirmationCode", http.MethodPost, s.client.backendURL.JoinPath("auth", "email", "code", "verify"),
		verifyCodeRequest{Code: code, Username: username}, nil)
}

func (s *Session) UpdatePassword(ctx context.Context, password, username string) error {
	return s.do(ctx, "UpdatePassword", http.MethodPut, s.client.backendURL.JoinPath("auth", "update", "password"),
		updatePasswordRequest{Password: password, Username: username}, nil)
}

// CheckUsernameAvailability asks the username service whether username is
// free. The session's cookies go along with the query.
func (s *Session) CheckUsernameAvailability(ctx context.Context, username string) (models.Availability, error) {
	var avail models.Availability
	if err := s.do(ctx, "CheckUsernameAvailability", http.MethodGet, s.client.checkUsernameURL(username), nil, &avail); err != nil {
		return models.Availability{}, err
	}
	return avail, nil
}

func (c *Client) checkUsernameURL(username string) *url.URL {
	u := c.usernameURL.JoinPath("check-username")
	u.RawQuery = url.Values{"username": {username}}.Encode()
	return u
}

func (s *Session) do(ctx context.Context, op, method string, target *url.URL, in, out any) error {
	ctx, span := s.client.startSpan(ctx, op, method, target)
	defer span.End()

	err := s.roundTrip(ctx, method, target, in, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.client.logger.DebugContext(ctx, "collaborator call failed",
			"request_id", requestcontext.RequestID(ctx),
			"operation", op,
			"exception", string(models.ExceptionOf(err)),
			"error", err,
		)
	}
	return err
}

func (s *Session) roundTrip(ctx context.Context, method string, target *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeRemoteError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err), dErrors.CodeUnavailable, "malformed collaborator response")
	}
	return nil
}

func (c *Client) startSpan(ctx context.Context, op, method string, target *url.URL) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("server.address", target.Host),
			attribute.String("url.path", target.Path),
		),
	)
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "collaborator timed out")
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "collaborator timed out")
	}
	return dErrors.Wrap(fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err), dErrors.CodeUnavailable, "collaborator unreachable")
}

// decodeRemoteError turns a non-2xx response into a coded *models.RemoteError.
// The backend answers with a JSON payload for most failures and plain text
// for a few; plain text becomes the message with no exception tag.
func decodeRemoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	remote := &models.RemoteError{Status: resp.StatusCode}

	var payload models.RemoteError
	if err := json.Unmarshal(raw, &payload); err == nil && (payload.Message != "" || payload.Exception != models.ExceptionNone) {
		payload.Status = resp.StatusCode
		remote = &payload
	} else if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "{") {
		remote.Message = text
	}

	return dErrors.Wrap(remote, statusCode(resp.StatusCode), remote.Message)
}

func statusCode(status int) dErrors.Code {
	switch status {
	case http.StatusBadRequest:
		return dErrors.CodeBadRequest
	case http.StatusUnauthorized:
		return dErrors.CodeUnauthorized
	case http.StatusForbidden:
		return dErrors.CodeForbidden
	case http.StatusNotFound:
		return dErrors.CodeNotFound
	case http.StatusConflict:
		return dErrors.CodeConflict
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return dErrors.CodeUnavailable
	case http.StatusGatewayTimeout:
		return dErrors.CodeTimeout
	default:
		return dErrors.CodeInternal
	}
}
