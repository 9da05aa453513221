package requestcontext_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"xclone/pkg/platform/middleware/requesttime"
	"xclone/pkg/requestcontext"
	"xclone/pkg/testutil"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, uuid.Nil, requestcontext.FlowID(ctx))
	assert.Empty(t, requestcontext.RequestID(ctx))
	assert.Empty(t, requestcontext.ClientIP(ctx))
	assert.WithinDuration(t, time.Now(), requestcontext.Now(ctx), time.Second)
}

func TestRequestScopedValues(t *testing.T) {
	flowID := uuid.New()
	pinned := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testutil.Given(t, "a request bound to a flow at a fixed time", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = testutil.WithFlowID(req, flowID)
		req = testutil.WithTime(req, pinned)
		req = testutil.WithClient(req, "203.0.113.5", "curl/8.0")

		testutil.Then(t, "the accessors return the injected values", func(t *testing.T) {
			ctx := req.Context()
			assert.Equal(t, flowID, requestcontext.FlowID(ctx))
			assert.Equal(t, pinned, requestcontext.Now(ctx))
			assert.Equal(t, "203.0.113.5", requestcontext.ClientIP(ctx))
			assert.Equal(t, "curl/8.0", requestcontext.UserAgent(ctx))
		})
	})
}

func TestRequestTimeMiddleware(t *testing.T) {
	pinned := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var seen time.Time
	h := requesttime.MiddlewareWithClock(func() time.Time { return pinned })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.Now(r.Context())
		}))

	testutil.When(t, "the middleware serves a request", func(t *testing.T) {
		testutil.DoRequest(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, pinned, seen)
	})
}
