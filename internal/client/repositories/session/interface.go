// Package session persists the CLI's session cookie between runs, keyed by
// the server it was issued by.
package session

import (
	"context"
	"errors"
)

// ErrNoSession means nothing is stored for the server.
var ErrNoSession = errors.New("no stored session")

type Repository interface {
	Load(ctx context.Context, server string) (string, error)
	Save(ctx context.Context, server, token string) error
	Clear(ctx context.Context, server string) error
}
