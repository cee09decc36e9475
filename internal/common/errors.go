// Package common defines sentinel errors and small helpers shared by the
// vault, the gateway and the CLI. Callers should use errors.Is to match
// these values; lower layers wrap them with fmt.Errorf("...: %w", err).
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrVersionConflict  = errors.New("version conflict")

	// Session / gate errors. Both surface externally as the same 401.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionInvalid   = errors.New("session invalid")

	// Remote mailbox errors.
	ErrAuthRejected  = errors.New("authentication rejected by remote service")
	ErrRemoteService = errors.New("remote service error")

	// Request validation.
	ErrValidation = errors.New("validation error")

	// Cipher errors.
	ErrMalformedToken   = errors.New("malformed ciphertext token")
	ErrDecryptionFailed = errors.New("decryption failed")
)
