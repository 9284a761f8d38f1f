package middleware

import (
	"log/slog"
	"net/http"
)

// TokenStore is the session state the auth middleware reads and clears.
type TokenStore interface {
	Token() string
	Clear()
}

// Auth attaches the bearer token and clears the session on 401 responses.
func Auth(store TokenStore) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if token := store.Token(); token != "" {
				req = req.Clone(req.Context())
				req.Header.Set("Authorization", "Bearer "+token)
			}

			resp, err := next.RoundTrip(req)
			if err != nil {
				return nil, err
			}

			if resp.StatusCode == http.StatusUnauthorized {
				slog.Warn("session rejected by backend, clearing", "path", req.URL.Path)
				store.Clear()
			}
			return resp, nil
		})
	}
}
