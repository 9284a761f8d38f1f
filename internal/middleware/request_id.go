package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every outgoing request with a unique id unless one is set.
func RequestID() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) == "" {
				req = req.Clone(req.Context())
				req.Header.Set(RequestIDHeader, uuid.New().String())
			}
			return next.RoundTrip(req)
		})
	}
}
