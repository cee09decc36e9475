package common

const (
	// DefaultSessionCookieName is the cookie carrying the signed session token.
	DefaultSessionCookieName = "mailvault_session"

	// RequestIDHeader echoes the per-request id assigned by the HTTP layer.
	RequestIDHeader = "X-Request-ID"
)
