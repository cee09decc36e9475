package services

import (
	"context"

	"github.com/dmitrijs2005/mailvault/internal/server/models"
)

type credentialKey struct{}

// WithCredential attaches a resolved credential to ctx. It lives as long
// as the request context does and is never stored anywhere else.
func WithCredential(ctx context.Context, cred models.Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, cred)
}

// CredentialFrom returns the credential attached by WithCredential.
func CredentialFrom(ctx context.Context) (models.Credential, bool) {
	cred, ok := ctx.Value(credentialKey{}).(models.Credential)
	return cred, ok
}
