package middleware

import (
	"context"
	"net/http"
)

// TokenSource returns the current bearer token.
type TokenSource func(ctx context.Context) (string, error)

// Bearer returns a middleware that adds the Authorization header to every
// request not marked anonymous. When the token source fails the request is
// not sent and the error is returned to the caller.
func Bearer(tokens TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if IsAnonymous(req.Context()) {
				return next.RoundTrip(req)
			}

			token, err := tokens(req.Context())
			if err != nil {
				return nil, err
			}

			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(req)
		})
	}
}
