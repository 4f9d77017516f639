// Package request provides request-ID middleware and context accessors.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"wellgate/pkg/requestcontext"
)

// HeaderRequestID is the header used to propagate and echo request IDs.
const HeaderRequestID = "X-Request-ID"

// Middleware assigns every request a request ID. An inbound X-Request-ID is
// honored so IDs correlate across services; otherwise a fresh UUID is issued.
// The ID is stored in the context and echoed on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		w.Header().Set(HeaderRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
