package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"xclone/internal/platform/metrics"
	"xclone/internal/platform/middleware"
	"xclone/internal/signup/ambient"
	"xclone/internal/signup/availability"
	"xclone/internal/signup/flow"
	"xclone/internal/signup/models"
	"xclone/internal/signup/store"
	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/platform/httputil"
	"xclone/pkg/platform/middleware/requesttime"
	"xclone/pkg/platform/sentinel"
	"xclone/pkg/requestcontext"
)

const (
	BasePath          = "/i/flow/signup"
	SessionPath       = "/api/session"
	SessionCookieName = "xclone_session"

	// maxBodyBytes caps every signup request body.
	maxBodyBytes = 64 << 10
)

// Session is one flow's connection to the collaborators.
type Session interface {
	flow.Users
	availability.Lookup
}

// SessionFactory opens a collaborator session for a new flow.
type SessionFactory interface {
	NewSession() (Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func() (Session, error)

func (f SessionFactoryFunc) NewSession() (Session, error) { return f() }

// FlowStore keeps live flows between requests.
type FlowStore interface {
	Save(ctx context.Context, m *flow.Machine) error
	Find(ctx context.Context, id uuid.UUID) (*flow.Machine, error)
	Delete(ctx context.Context, id uuid.UUID, outcome string) error
}

// Ambient is the shell-wide state a finished signup is recorded in.
type Ambient interface {
	SignIn(ctx context.Context, user ambient.User) (string, error)
	CurrentUser(token string) (ambient.User, error)
	Theme() ambient.Theme
}

// Handler serves the signup wizard.
type Handler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	flows     FlowStore
	sessions  SessionFactory
	ambient   Ambient
	flowOpts  []flow.Option
	timeout   time.Duration
	secure    bool
	clock     func() time.Time
	newFlowID func() uuid.UUID
}

type Option func(*Handler)

// WithFlowOptions passes options to every machine the handler creates.
func WithFlowOptions(opts ...flow.Option) Option {
	return func(h *Handler) { h.flowOpts = append(h.flowOpts, opts...) }
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithSecureCookies marks the flow and session cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) { h.secure = secure }
}

// WithClock replaces the request clock.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.clock = now }
}

// WithFlowIDs replaces flow ID generation.
func WithFlowIDs(next func() uuid.UUID) Option {
	return func(h *Handler) { h.newFlowID = next }
}

// New creates a new signup Handler.
func New(
	flows FlowStore,
	sessions SessionFactory,
	amb Ambient,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		metrics:   metrics,
		flows:     flows,
		sessions:  sessions,
		ambient:   amb,
		clock:     time.Now,
		newFlowID: uuid.New,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the signup routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(signupRouter chi.Router) {
		signupRouter.Use(middleware.Recovery(h.logger))
		signupRouter.Use(middleware.RequestID)
		signupRouter.Use(middleware.Logger(h.logger))
		signupRouter.Use(middleware.Timeout(h.timeout))
		signupRouter.Use(middleware.ContentTypeJSON)
		signupRouter.Use(middleware.LatencyMiddleware(h.metrics))
		signupRouter.Use(requesttime.MiddlewareWithClock(h.clock))

		signupRouter.Post(BasePath, h.handleStart)
		signupRouter.Get(SessionPath, h.handleSession)

		signupRouter.Group(func(fr chi.Router) {
			fr.Use(middleware.RequireFlow(h.logger))
			fr.Get(BasePath, h.withFlow(h.handleView))
			fr.Delete(BasePath, h.handleAbandon)
			fr.Patch(BasePath+"/identity", h.withFlow(h.handleIdentity))
			fr.Post(BasePath+"/next", h.withFlow(h.handleNext))
			fr.Post(BasePath+"/back", h.withFlow(h.handleBack))
			fr.Post(BasePath+"/register", h.withFlow(h.handleRegister))
			fr.Put(BasePath+"/code", h.withFlow(h.handleSetCode))
			fr.Post(BasePath+"/code/verify", h.withFlow(h.handleVerifyCode))
			fr.Post(BasePath+"/code/resend", h.withFlow(h.handleResendCode))
			fr.Post(BasePath+"/password", h.withFlow(h.handlePassword))
			fr.Post(BasePath+"/profile-picture", h.withFlow(h.handleProfilePicture))
			fr.Put(BasePath+"/username", h.withFlow(h.handleCheckUsername))
			fr.Post(BasePath+"/username", h.withFlow(h.handleSubmitUsername))
			fr.Post(BasePath+"/username/skip", h.withFlow(h.handleSkipUsername))
		})
	})
}

// flowFunc runs one event against a flow. A nil error renders the view.
type flowFunc func(r *http.Request, m *flow.Machine) error

// withFlow resolves the cookie's flow, runs fn and answers with the view.
// Reaching done hands the user to the ambient context and retires the flow.
func (h *Handler) withFlow(fn flowFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := middleware.GetRequestID(ctx)
		flowID := requestcontext.FlowID(ctx)

		m, err := h.flows.Find(ctx, flowID)
		if err != nil {
			h.logger.WarnContext(ctx, "signup flow lookup failed",
				"request_id", requestID,
				"flow_id", flowID.String(),
				"error", err.Error(),
			)
			clearCookie(w, middleware.FlowCookieName, BasePath, h.secure)
			httputil.WriteError(w, lookupError(err))
			return
		}

		if err := fn(r, m); err != nil {
			h.writeFlowError(ctx, w, m, err)
			return
		}

		view := m.View(requestcontext.Now(ctx))
		if view.Step.IsTerminal() {
			if err := h.complete(ctx, w, m); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if cookie, err := r.Cookie(middleware.FlowCookieName); err == nil {
		if previous, err := uuid.Parse(cookie.Value); err == nil {
			// a restarted wizard abandons whatever the client had open
			_ = h.flows.Delete(ctx, previous, store.OutcomeAbandoned)
		}
	}

	session, err := h.sessions.NewSession()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open collaborator session",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start signup"))
		return
	}

	mode := models.ParseMode(r.URL.Query().Get("mode"))
	opts := append([]flow.Option{
		flow.WithLogger(h.logger),
		flow.WithMetrics(h.metrics),
		flow.WithClock(h.clock),
	}, h.flowOpts...)
	m := flow.New(h.newFlowID(), mode, session, session, opts...)
	if err := h.flows.Save(ctx, m); err != nil {
		m.Close()
		h.logger.ErrorContext(ctx, "failed to save signup flow",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start signup"))
		return
	}

	h.logger.InfoContext(ctx, "signup flow started",
		"request_id", requestID,
		"flow_id", m.ID().String(),
		"mode", string(mode),
	)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.FlowCookieName,
		Value:    m.ID().String(),
		Path:     BasePath,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusCreated, m.View(requestcontext.Now(ctx)))
}

func (h *Handler) handleView(*http.Request, *flow.Machine) error {
	return nil
}

// handleAbandon closes the wizard and discards its draft.
func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flowID := requestcontext.FlowID(ctx)

	if err := h.flows.Delete(ctx, flowID, store.OutcomeAbandoned); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		httputil.WriteError(w, err)
		return
	}
	clearCookie(w, middleware.FlowCookieName, BasePath, h.secure)
	w.WriteHeader(http.StatusNoContent)
}

// IdentityRequest carries identity edits. Absent fields are left alone.
type IdentityRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	BirthYear  *int    `json:"birth_year"`
	BirthMonth *int    `json:"birth_month"`
	BirthDay   *int    `json:"birth_day"`
}

// handleIdentity applies the edits as one batch: a refused field leaves the
// draft untouched.
func (h *Handler) handleIdentity(r *http.Request, m *flow.Machine) error {
	var req IdentityRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	return m.EditIdentity(flow.IdentityEdit{
		Name:       req.Name,
		Email:      req.Email,
		BirthYear:  req.BirthYear,
		BirthMonth: req.BirthMonth,
		BirthDay:   req.BirthDay,
	})
}

func (h *Handler) handleNext(r *http.Request, m *flow.Machine) error {
	return m.Next(r.Context())
}

func (h *Handler) handleBack(r *http.Request, m *flow.Machine) error {
	return m.Back(r.Context())
}

func (h *Handler) handleRegister(r *http.Request, m *flow.Machine) error {
	return m.Register(r.Context())
}

type CodeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleSetCode(r *http.Request, m *flow.Machine) error {
	var req CodeRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	return m.SetCode(req.Code)
}

func (h *Handler) handleVerifyCode(r *http.Request, m *flow.Machine) error {
	var req CodeRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.Code != "" {
		if err := m.SetCode(req.Code); err != nil {
			return err
		}
	}
	return m.VerifyCode(r.Context())
}

// handleResendCode is a no-op while the cooldown runs; the view still
// reports the time left.
func (h *Handler) handleResendCode(r *http.Request, m *flow.Machine) error {
	ctx := r.Context()
	sent, err := m.ResendCode(ctx)
	if err != nil {
		return err
	}
	if !sent {
		h.logger.InfoContext(ctx, "confirmation code resend ignored during cooldown",
			"request_id", middleware.GetRequestID(ctx),
			"flow_id", m.ID().String(),
		)
	}
	return nil
}

type PasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handlePassword(r *http.Request, m *flow.Machine) error {
	var req PasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	return m.SubmitPassword(r.Context(), req.Password)
}

// ProfilePictureRequest submits a picture, or skips the step when Skip is
// set or no picture is given.
type ProfilePictureRequest struct {
	Picture *models.Picture `json:"picture"`
	Skip    bool            `json:"skip"`
}

func (h *Handler) handleProfilePicture(r *http.Request, m *flow.Machine) error {
	var req ProfilePictureRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.Skip {
		return m.SkipProfilePicture(r.Context())
	}
	return m.SubmitProfilePicture(r.Context(), req.Picture)
}

type UsernameRequest struct {
	Username string `json:"username"`
}

// handleCheckUsername records a username edit. With ?wait=true the response
// waits for the availability answer instead of reporting it as pending.
func (h *Handler) handleCheckUsername(r *http.Request, m *flow.Machine) error {
	var req UsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	ctx := r.Context()
	if _, err := m.CheckUsername(ctx, req.Username); err != nil {
		return err
	}
	if r.URL.Query().Get("wait") == "true" {
		if _, err := m.AwaitUsername(ctx); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "username check did not finish")
		}
	}
	return nil
}

func (h *Handler) handleSubmitUsername(r *http.Request, m *flow.Machine) error {
	return m.SubmitUsername(r.Context())
}

func (h *Handler) handleSkipUsername(r *http.Request, m *flow.Machine) error {
	return m.SkipUsername(r.Context())
}

// SessionResponse describes who is signed in and the active theme.
type SessionResponse struct {
	User  *ambient.User `json:"user,omitempty"`
	Theme ambient.Theme `json:"theme"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{Theme: h.ambient.Theme()}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if user, err := h.ambient.CurrentUser(cookie.Value); err == nil {
			resp.User = &user
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// complete signs the new user in and retires the flow.
func (h *Handler) complete(ctx context.Context, w http.ResponseWriter, m *flow.Machine) error {
	draft := m.Draft()
	token, err := h.ambient.SignIn(ctx, ambient.User{
		Username:   draft.Username,
		Name:       draft.Name,
		Email:      draft.Email,
		SignedUpAt: requestcontext.Now(ctx),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to sign in new user",
			"request_id", middleware.GetRequestID(ctx),
			"flow_id", m.ID().String(),
			"error", err.Error(),
		)
		return err
	}

	if err := h.flows.Delete(ctx, m.ID(), store.OutcomeCompleted); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		h.logger.WarnContext(ctx, "failed to retire completed signup flow",
			"request_id", middleware.GetRequestID(ctx),
			"flow_id", m.ID().String(),
			"error", err.Error(),
		)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	clearCookie(w, middleware.FlowCookieName, BasePath, h.secure)
	return nil
}

func (h *Handler) writeFlowError(ctx context.Context, w http.ResponseWriter, m *flow.Machine, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", middleware.GetRequestID(ctx),
		"flow_id", m.ID().String(),
		"step", m.Step().String(),
		"error", err.Error(),
	}
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "signup event failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "signup event refused", attrs...)
	}
	httputil.WriteError(w, err)
}

func lookupError(err error) error {
	if errors.Is(err, sentinel.ErrExpired) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "Your signup session expired. Please start again.")
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "No signup in progress")
	}
	return err
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// zeroed.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

func clearCookie(w http.ResponseWriter, name, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
