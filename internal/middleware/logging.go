package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logging returns middleware that logs request processing time.
func Logging() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(req)

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"request_id", req.Header.Get(RequestIDHeader),
				"duration", time.Since(start),
			}
			if err != nil {
				slog.Debug("http request failed", append(attrs, "error", err)...)
				return nil, err
			}

			slog.Debug("http request", append(attrs, "status", resp.StatusCode)...)
			return resp, nil
		})
	}
}
