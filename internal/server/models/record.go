// Package models defines the server-side records kept in the vault.
package models

import "log/slog"

// Calendar is one entry of a user's calendar registry. Order in the
// registry is display order; ids are not forced to be unique.
type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserRecord is everything the vault stores for one mailbox identity.
type UserRecord struct {
	// Email is the case-sensitive primary key.
	Email string
	// CredentialCiphertext is the cryptox token over a serialized Credential.
	CredentialCiphertext string
	// Calendars is the user's registry, possibly empty.
	Calendars []Calendar
	// Version increases on every write and backs optimistic updates.
	Version int64
}

// RecordFields names the fields a Put writes. Nil fields are left as they
// are in the stored record.
type RecordFields struct {
	CredentialCiphertext *string
	Calendars            *[]Calendar
}

// Empty reports whether no field is set.
func (f RecordFields) Empty() bool {
	return f.CredentialCiphertext == nil && f.Calendars == nil
}

// Credential is the plaintext email/password pair sealed inside a record.
// It only lives in memory for the duration of a request.
type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LogValue keeps the password out of structured logs.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(slog.String("email", c.Email))
}

// CloneCalendars returns a copy of cals that never aliases the input.
// The result is non-nil so it encodes as [] rather than null.
func CloneCalendars(cals []Calendar) []Calendar {
	out := make([]Calendar, len(cals))
	copy(out, cals)
	return out
}
