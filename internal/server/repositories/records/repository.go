// Package records stores one UserRecord per mailbox identity.
//
// Three backends share the Repository contract: a redis hash per email
// (the default), a postgres table with one row per hash field, and an
// in-process map. Every backend reports a missing record as
// common.ErrNotFound and any connectivity problem as
// common.ErrStoreUnavailable.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/mailvault/internal/server/models"
)

// Hash field names. They are shared by the redis and postgres layouts.
const (
	FieldPassword  = "password"
	FieldCalendars = "calendarIds"
	FieldVersion   = "version"
)

// MaxUpdateRetries bounds how many times an optimistic calendar update is
// retried after losing a race before common.ErrVersionConflict is returned.
const MaxUpdateRetries = 5

// CalendarsFunc computes the new registry from the current one. It must
// not keep or mutate its argument.
type CalendarsFunc func(current []models.Calendar) []models.Calendar

type Repository interface {
	// Get returns the record for email or common.ErrNotFound.
	Get(ctx context.Context, email string) (*models.UserRecord, error)
	// Put upserts the named fields only, creating the record if needed.
	Put(ctx context.Context, email string, fields models.RecordFields) error
	// ListCalendars returns the registry of an existing record.
	ListCalendars(ctx context.Context, email string) ([]models.Calendar, error)
	// SetCalendars replaces the registry of an existing record.
	SetCalendars(ctx context.Context, email string, cals []models.Calendar) error
	// UpdateCalendars applies fn atomically with respect to other writers
	// of the same record and returns the stored result.
	UpdateCalendars(ctx context.Context, email string, fn CalendarsFunc) ([]models.Calendar, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, email string) error
	Ping(ctx context.Context) error
	Close() error
}

func encodeCalendars(cals []models.Calendar) (string, error) {
	b, err := json.Marshal(models.CloneCalendars(cals))
	if err != nil {
		return "", fmt.Errorf("encode calendars: %w", err)
	}
	return string(b), nil
}

func decodeCalendars(raw string) ([]models.Calendar, error) {
	if raw == "" {
		return []models.Calendar{}, nil
	}
	var cals []models.Calendar
	if err := json.Unmarshal([]byte(raw), &cals); err != nil {
		return nil, fmt.Errorf("decode calendars: %w", err)
	}
	return models.CloneCalendars(cals), nil
}

// recordFromHash builds a record from its stored hash fields.
func recordFromHash(email string, h map[string]string) (*models.UserRecord, error) {
	cals, err := decodeCalendars(h[FieldCalendars])
	if err != nil {
		return nil, err
	}

	var version int64
	if v, ok := h[FieldVersion]; ok && v != "" {
		version, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode version: %w", err)
		}
	}

	return &models.UserRecord{
		Email:                email,
		CredentialCiphertext: h[FieldPassword],
		Calendars:            cals,
		Version:              version,
	}, nil
}

// hashFromFields renders the named fields as hash values.
func hashFromFields(fields models.RecordFields) (map[string]string, error) {
	h := make(map[string]string, 2)
	if fields.CredentialCiphertext != nil {
		h[FieldPassword] = *fields.CredentialCiphertext
	}
	if fields.Calendars != nil {
		raw, err := encodeCalendars(*fields.Calendars)
		if err != nil {
			return nil, err
		}
		h[FieldCalendars] = raw
	}
	return h, nil
}
