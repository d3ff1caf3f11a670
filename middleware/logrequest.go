package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gabibotos/httpsrv/log"
	"github.com/google/uuid"
)

// RequestIDHeader carries the generated request id back to the client.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

func generateRequestID() string {
	// Generate a unique request ID using UUID.
	return uuid.New().String()
}

// RequestID returns the id LogRequests attached to the request context.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LogRequests logs one line per request once the handler returns.
func LogRequests(lg log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := time.Now()

			status := http.StatusOK
			rw = httpsnoop.Wrap(rw, httpsnoop.Hooks{
				WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
					return func(code int) {
						status = code
						next(code)
					}
				},
			})

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = generateRequestID()
			}
			rw.Header().Set(RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)

			defer func() {
				lg.Printf(
					"http request host=%s proto=%s method=%s path=%s status=%d took=%s requestID=%s",
					r.RemoteAddr,
					r.Proto,
					r.Method,
					r.RequestURI,
					status,
					time.Since(start).String(),
					requestID,
				)
			}()

			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}
