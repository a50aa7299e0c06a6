package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestID returns a middleware that stamps every request with a fresh
// X-Request-ID unless one is already set.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) != "" {
				return next.RoundTrip(req)
			}
			req = req.Clone(req.Context())
			req.Header.Set(RequestIDHeader, uuid.New().String())
			return next.RoundTrip(req)
		})
	}
}

// Logging returns a middleware that logs every request.
// It logs the operation, method, path, status and duration.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			attrs := []any{
				"operation", Operation(req.Context()),
				"method", req.Method,
				"path", req.URL.Path,
				"request_id", req.Header.Get(RequestIDHeader),
			}

			resp, err := next.RoundTrip(req)

			attrs = append(attrs, "duration_ms", time.Since(start).Milliseconds())
			switch {
			case err != nil:
				logger.Error("API request failed", append(attrs, "error", err)...)
			case resp.StatusCode >= 400:
				logger.Warn("API request error", append(attrs, "status", resp.StatusCode)...)
			default:
				logger.Debug("API request ok", append(attrs, "status", resp.StatusCode)...)
			}

			return resp, err
		})
	}
}
