// Package ambient holds the state shared by every screen of the shell: who is
// signed in and which theme is active. It is created once, initialised
// before the server accepts requests and torn down on shutdown.
package ambient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/platform/sentinel"
	"xclone/pkg/requestcontext"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" and "dark"; anything else is dark.
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// User is a user who finished signing up in this process.
type User struct {
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	SignedUpAt time.Time `json:"signed_up_at"`
}

// Context is the shell's ambient state. Users are keyed by an opaque session
// token handed to the client.
type Context struct {
	logger *slog.Logger

	mu    sync.RWMutex
	ready bool
	theme Theme
	users map[string]User
}

func New(theme Theme, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{logger: logger, theme: theme}
}

// Init makes the context usable. Calling it twice is an error.
func (c *Context) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return dErrors.New(dErrors.CodeInvalidState, "ambient context already initialised")
	}
	c.ready = true
	c.users = make(map[string]User)
	c.logger.InfoContext(ctx, "ambient context initialised", "theme", string(c.theme))
	return nil
}

// Teardown forgets every signed-in user. The context can be initialised
// again afterwards.
func (c *Context) Teardown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return
	}
	n := len(c.users)
	c.ready = false
	c.users = nil
	c.logger.InfoContext(ctx, "ambient context torn down", "users", n)
}

// SignIn records user as signed in and returns the session token for it.
func (c *Context) SignIn(ctx context.Context, user User) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return "", dErrors.Wrap(sentinel.ErrClosed, dErrors.CodeUnavailable, "ambient context not initialised")
	}
	if user.SignedUpAt.IsZero() {
		user.SignedUpAt = requestcontext.Now(ctx)
	}
	token := uuid.NewString()
	c.users[token] = user
	c.logger.InfoContext(ctx, "user signed in",
		"request_id", requestcontext.RequestID(ctx),
		"username", user.Username,
	)
	return token, nil
}

// CurrentUser returns the user behind a session token.
func (c *Context) CurrentUser(token string) (User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ready {
		return User{}, dErrors.Wrap(sentinel.ErrClosed, dErrors.CodeUnavailable, "ambient context not initialised")
	}
	user, ok := c.users[token]
	if !ok {
		return User{}, fmt.Errorf("session: %w", sentinel.ErrNotFound)
	}
	return user, nil
}

// Theme is the process-wide theme chosen at startup.
func (c *Context) Theme() Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.theme
}
