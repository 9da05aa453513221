package ambient

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "xclone/pkg/domain-errors"
	"xclone/pkg/platform/sentinel"
	"xclone/pkg/requestcontext"
)

func newContext() *Context {
	return New(ThemeDark, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseTheme(t *testing.T) {
	assert.Equal(t, ThemeLight, ParseTheme("light"))
	assert.Equal(t, ThemeDark, ParseTheme("dark"))
	assert.Equal(t, ThemeDark, ParseTheme("neon"))
}

func TestSignInRequiresInit(t *testing.T) {
	c := newContext()
	_, err := c.SignIn(context.Background(), User{Username: "ada"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrClosed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestSignInAndLookup(t *testing.T) {
	c := newContext()
	require.NoError(t, c.Init(context.Background()))

	now := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	token, err := c.SignIn(ctx, User{Username: "ada", Email: "ada@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, err := c.CurrentUser(token)
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, now, user.SignedUpAt)

	_, err = c.CurrentUser("unknown")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInitTwiceFails(t *testing.T) {
	c := newContext()
	require.NoError(t, c.Init(context.Background()))
	err := c.Init(context.Background())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestTeardownForgetsUsers(t *testing.T) {
	c := newContext()
	require.NoError(t, c.Init(context.Background()))
	token, err := c.SignIn(context.Background(), User{Username: "ada"})
	require.NoError(t, err)

	c.Teardown(context.Background())
	_, err = c.CurrentUser(token)
	assert.ErrorIs(t, err, sentinel.ErrClosed)

	require.NoError(t, c.Init(context.Background()), "context can be initialised again")
	_, err = c.CurrentUser(token)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestThemeSurvivesLifecycle(t *testing.T) {
	c := New(ThemeLight, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, ThemeLight, c.Theme())

	require.NoError(t, c.Init(context.Background()))
	c.Teardown(context.Background())
	assert.Equal(t, ThemeLight, c.Theme())
}
