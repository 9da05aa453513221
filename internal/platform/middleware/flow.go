package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"xclone/pkg/requestcontext"
)

// FlowCookieName names the cookie that binds a client to its signup flow.
const FlowCookieName = "signup_flow"

// RequireFlow resolves the signup flow cookie into a flow ID in the context.
// Requests without a usable cookie are rejected before reaching the handler.
func RequireFlow(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			cookie, err := r.Cookie(FlowCookieName)
			if err != nil {
				logger.WarnContext(ctx, "signup request without flow cookie",
					"request_id", GetRequestID(ctx),
				)
				writeNoFlow(w, "No signup in progress")
				return
			}
			flowID, err := uuid.Parse(cookie.Value)
			if err != nil {
				logger.WarnContext(ctx, "signup request with malformed flow cookie",
					"request_id", GetRequestID(ctx),
					"error", err,
				)
				writeNoFlow(w, "No signup in progress")
				return
			}

			ctx = requestcontext.WithFlowID(ctx, flowID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeNoFlow(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":"not_found","error_description":"` + description + `"}`))
}
