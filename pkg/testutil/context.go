package testutil

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"xclone/pkg/requestcontext"
)

// WithFlowID binds the request to a signup flow, as the flow cookie
// middleware would.
func WithFlowID(req *http.Request, flowID uuid.UUID) *http.Request {
	return req.WithContext(requestcontext.WithFlowID(req.Context(), flowID))
}

// WithTime pins the request clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithClient sets the client address and User-Agent the metadata middleware
// would record.
func WithClient(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
