package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"xclone/internal/signup/models"
	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/platform/sentinel"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Cookie string
	Body   map[string]string
}

type ClientSuite struct {
	suite.Suite
	ctx      context.Context
	backend  *httptest.Server
	username *httptest.Server
	client   *Client

	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
	s.requests = nil
	s.handlers = map[string]http.HandlerFunc{}

	record := func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Cookie: r.Header.Get("Cookie"),
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		s.mu.Lock()
		s.requests = append(s.requests, rec)
		h, ok := s.handlers[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		h(w, r)
	}
	s.backend = httptest.NewServer(http.HandlerFunc(record))
	s.username = httptest.NewServer(http.HandlerFunc(record))

	var err error
	s.client, err = New(s.backend.URL+"/", s.username.URL+"/")
	s.Require().NoError(err)
}

func (s *ClientSuite) TearDownTest() {
	s.backend.Close()
	s.username.Close()
}

func (s *ClientSuite) handle(route string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[route] = h
}

func (s *ClientSuite) lastRequest() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().NotEmpty(s.requests)
	return s.requests[len(s.requests)-1]
}

func (s *ClientSuite) session() *Session {
	sess, err := s.client.NewSession()
	s.Require().NoError(err)
	return sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *ClientSuite) registerHandler() {
	s.handle("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "register_token", Value: "tok-123", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusCreated, map[string]string{
			"username":  "ada8812",
			"name":      "Ada",
			"email":     "ada@example.com",
			"birthDate": "1990-02-03",
		})
	})
}

func (s *ClientSuite) TestNewRejectsRelativeURL() {
	_, err := New("/relative", s.username.URL)
	s.Error(err)
}

func (s *ClientSuite) TestRegisterUser() {
	s.registerHandler()
	sess := s.session()

	user, err := sess.RegisterUser(s.ctx, "Ada", "ada@example.com", models.BirthDate{Year: 1990, Month: 2, Day: 3})
	s.Require().NoError(err)
	s.Equal("ada8812", user.Username)

	req := s.lastRequest()
	s.Equal(http.MethodPost, req.Method)
	s.Equal("/auth/register", req.Path)
	s.Equal(map[string]string{"name": "Ada", "email": "ada@example.com", "birthDate": "1990-02-03"}, req.Body)
}

func (s *ClientSuite) TestRegisterTokenAuthenticatesLaterCalls() {
	s.registerHandler()
	sess := s.session()

	_, err := sess.RegisterUser(s.ctx, "Ada", "ada@example.com", models.BirthDate{Year: 1990, Month: 2, Day: 3})
	s.Require().NoError(err)

	s.Require().NoError(sess.SendEmailConfirmationCode(s.ctx, "ada8812"))
	req := s.lastRequest()
	s.Equal("/auth/email/code", req.Path)
	s.Equal("register_token=tok-123", req.Cookie)
	s.Equal(map[string]string{"username": "ada8812"}, req.Body)

	s.Require().NoError(sess.VerifyEmailConfirmationCode(s.ctx, "123456", "ada8812"))
	req = s.lastRequest()
	s.Equal("/auth/email/code/verify", req.Path)
	s.Equal(map[string]string{"code": "123456", "username": "ada8812"}, req.Body)

	s.Require().NoError(sess.UpdatePassword(s.ctx, "hunter22!", "ada8812"))
	req = s.lastRequest()
	s.Equal(http.MethodPut, req.Method)
	s.Equal("/auth/update/password", req.Path)
	s.Equal("register_token=tok-123", req.Cookie)

	s.Len(sess.Cookies(), 1)
}

func (s *ClientSuite) TestSessionsDoNotShareCookies() {
	s.registerHandler()
	first := s.session()
	second := s.session()

	_, err := first.RegisterUser(s.ctx, "Ada", "ada@example.com", models.BirthDate{Year: 1990, Month: 2, Day: 3})
	s.Require().NoError(err)

	s.Require().NoError(second.SendEmailConfirmationCode(s.ctx, "someone"))
	s.Empty(s.lastRequest().Cookie)
}

func (s *ClientSuite) TestStructuredErrorPayload() {
	s.handle("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"exception": "EmailAlreadyTakenException",
			"error":     "Email already taken",
			"path":      "/auth/register",
			"timestamp": "2024-05-01T10:00:00.123",
		})
	})

	_, err := s.session().RegisterUser(s.ctx, "Ada", "taken@example.com", models.BirthDate{Year: 1990, Month: 1, Day: 1})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	remote, ok := models.AsRemote(err)
	s.Require().True(ok)
	s.Equal(http.StatusConflict, remote.Status)
	s.Equal(models.ExceptionEmailAlreadyTaken, remote.Exception)
	s.Equal("Email already taken", remote.Message)
	s.Equal("/auth/register", remote.Path)
}

func (s *ClientSuite) TestPlainTextErrorBody() {
	s.handle("POST /auth/email/code/verify", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Incorrect verification code\n"))
	})

	err := s.session().VerifyEmailConfirmationCode(s.ctx, "000000", "ada8812")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	remote, ok := models.AsRemote(err)
	s.Require().True(ok)
	s.Equal(models.ExceptionNone, remote.Exception)
	s.Equal("Incorrect verification code", remote.Message)
}

func (s *ClientSuite) TestEmptyErrorBody() {
	s.handle("PUT /auth/update/password", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := s.session().UpdatePassword(s.ctx, "hunter22!", "ada8812")
	s.Require().Error(err)
	remote, ok := models.AsRemote(err)
	s.Require().True(ok)
	s.Equal(http.StatusInternalServerError, remote.Status)
	s.Empty(remote.Message)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ClientSuite) TestStatusClassification() {
	cases := map[int]dErrors.Code{
		http.StatusBadRequest:          dErrors.CodeBadRequest,
		http.StatusUnauthorized:        dErrors.CodeUnauthorized,
		http.StatusForbidden:           dErrors.CodeForbidden,
		http.StatusNotFound:            dErrors.CodeNotFound,
		http.StatusConflict:            dErrors.CodeConflict,
		http.StatusInternalServerError: dErrors.CodeInternal,
		http.StatusServiceUnavailable:  dErrors.CodeUnavailable,
	}
	for status, want := range cases {
		s.Equal(want, statusCode(status), status)
	}
}

func (s *ClientSuite) TestMissingUsernameInRegistration() {
	s.handle("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]string{})
	})

	_, err := s.session().RegisterUser(s.ctx, "Ada", "ada@example.com", models.BirthDate{Year: 1990, Month: 2, Day: 3})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ClientSuite) TestTransportFailure() {
	sess := s.session()
	s.backend.Close()

	err := sess.SendEmailConfirmationCode(s.ctx, "ada8812")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.ErrorIs(err, sentinel.ErrUnavailable)
	_, ok := models.AsRemote(err)
	s.False(ok)
}

func (s *ClientSuite) TestTimeout() {
	s.handle("POST /auth/email/code", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	})
	client, err := New(s.backend.URL, s.username.URL, WithTimeout(20*time.Millisecond))
	s.Require().NoError(err)
	sess, err := client.NewSession()
	s.Require().NoError(err)

	err = sess.SendEmailConfirmationCode(s.ctx, "ada8812")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *ClientSuite) TestCheckUsernameAvailability() {
	s.registerHandler()
	s.handle("GET /check-username", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"available": false, "message": "Username is already taken"})
	})
	sess := s.session()
	_, err := sess.RegisterUser(s.ctx, "Ada", "ada@example.com", models.BirthDate{Year: 1990, Month: 2, Day: 3})
	s.Require().NoError(err)

	avail, err := sess.CheckUsernameAvailability(s.ctx, "a b&c")
	s.Require().NoError(err)
	s.False(avail.Available)
	s.Equal("Username is already taken", avail.Message)

	req := s.lastRequest()
	s.Equal("/check-username", req.Path)
	s.Equal("username=a+b%26c", req.Query)
	s.Equal("register_token=tok-123", req.Cookie)
}

func (s *ClientSuite) TestMalformedAvailabilityResponse() {
	s.handle("GET /check-username", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	})

	_, err := s.session().CheckUsernameAvailability(s.ctx, "ada")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ClientSuite) TestForwardCheckUsername() {
	s.handle("GET /check-username", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTeapot, map[string]string{"error": "nope"})
	})

	up, err := s.client.ForwardCheckUsername(s.ctx, "ada", []*http.Cookie{
		{Name: "register_token", Value: "tok"},
		{Name: "theme", Value: "dark"},
	})
	s.Require().NoError(err)
	s.False(up.OK())
	s.Equal(http.StatusTeapot, up.Status)
	s.JSONEq(`{"error":"nope"}`, string(up.Body))
	s.Equal("register_token=tok; theme=dark", s.lastRequest().Cookie)
}

func (s *ClientSuite) TestForwardCookieTest() {
	s.handle("GET /cookie-test", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"received": r.Header.Get("Cookie")})
	})

	up, err := s.client.ForwardCookieTest(s.ctx, []*http.Cookie{{Name: "a", Value: "1"}})
	s.Require().NoError(err)
	s.True(up.OK())
	s.JSONEq(`{"received":"a=1"}`, string(up.Body))
}

func (s *ClientSuite) TestForwardTransportFailure() {
	s.username.Close()
	_, err := s.client.ForwardCookieTest(s.ctx, nil)
	s.Error(err)
}
