package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recover returns middleware that turns a panicking transport into an error.
func Recover() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (resp *http.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic recovered in transport",
						"panic", r,
						"stack", string(debug.Stack()),
					)
					resp, err = nil, fmt.Errorf("transport panic: %v", r)
				}
			}()
			return next.RoundTrip(req)
		})
	}
}
