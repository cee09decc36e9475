// Package client talks to the vault's HTTP API on behalf of the CLI.
//
// HTTPClient keeps the session cookie in a cookie jar, exactly as a browser
// would. SessionToken and SetSessionToken move that cookie in and out of
// the jar so the CLI can persist it between runs.
//
// Failures are reported with sentinel errors matched by errors.Is:
// ErrUnavailable, ErrUnauthorized, ErrAuthFailed, ErrBadRequest and
// ErrServer. The server's message is kept in the wrapped error text.
package client
