package testutil

import (
	"net/http"
	"time"

	"memberdir/pkg/requestcontext"
)

// WithSubject adds an authenticated subject to the request context.
// This simulates what the auth middleware does for a verified bearer token.
func WithSubject(req *http.Request, subject string) *http.Request {
	if subject == "" {
		return req
	}
	return req.WithContext(requestcontext.WithSubject(req.Context(), subject))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
