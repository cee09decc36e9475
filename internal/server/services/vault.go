// Package services holds the vault's business logic. VaultService owns the
// credential lifecycle: login, the per-request session gate and logout.
// CalendarService edits the stored registry and MailboxService runs
// mailbox reads with a resolved credential.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/cryptox"
	"github.com/dmitrijs2005/mailvault/internal/logging"
	"github.com/dmitrijs2005/mailvault/internal/server/metrics"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
	"github.com/dmitrijs2005/mailvault/internal/server/repositories/records"
)

// LoginStatus is what check-login reports for a session.
type LoginStatus struct {
	LoggedIn      bool
	Email         string
	HasCalendarID bool
	Calendars     []models.Calendar
}

type VaultService struct {
	repo    records.Repository
	cipher  *cryptox.Cipher
	gateway remote.Gateway
	logger  logging.Logger
}

func NewVaultService(repo records.Repository, cipher *cryptox.Cipher, gateway remote.Gateway, logger logging.Logger) *VaultService {
	return &VaultService{
		repo:    repo,
		cipher:  cipher,
		gateway: gateway,
		logger:  logger.With("module", "vault"),
	}
}

// Login validates the credential against the mailbox service and only then
// stores it, together with the calendars the service reported. A rejected
// login leaves any existing record untouched.
func (s *VaultService) Login(ctx context.Context, email, password string) ([]models.Calendar, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	cred := models.Credential{Email: email, Password: password}

	cals, err := s.gateway.Login(ctx, cred)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		s.logger.Info(ctx, "login rejected by mailbox service", "email", email, "error", err)
		if !errors.Is(err, common.ErrAuthRejected) {
			err = fmt.Errorf("%w: %v", common.ErrAuthRejected, err)
		}
		return nil, err
	}
	cals = models.CloneCalendars(cals)

	token, err := s.cipher.SealJSON(cred)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("seal credential: %w", err)
	}

	if err := s.repo.Put(ctx, email, models.RecordFields{CredentialCiphertext: &token, Calendars: &cals}); err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		s.logger.Error(ctx, "storing record failed", "email", email, "error", err)
		return nil, fmt.Errorf("store record: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info(ctx, "login accepted", "email", email, "calendars", len(cals))
	return cals, nil
}

// Resolve is the session gate: it turns the email named by a valid session
// into the plaintext credential stored for it.
//
// A missing record and an unreadable ciphertext are both
// common.ErrSessionInvalid; only the log line tells them apart. Store
// failures keep common.ErrStoreUnavailable so callers answer 5xx.
func (s *VaultService) Resolve(ctx context.Context, email string) (models.Credential, error) {
	rec, err := s.repo.Get(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.reject(ctx, "record_missing", email)
			return models.Credential{}, common.ErrSessionInvalid
		}
		s.logger.Error(ctx, "record store failed in gate", "email", email, "error", err)
		return models.Credential{}, fmt.Errorf("load record: %w", err)
	}

	var cred models.Credential
	if err := s.cipher.OpenJSON(rec.CredentialCiphertext, &cred); err != nil {
		cause := "decrypt_failed"
		if errors.Is(err, common.ErrMalformedToken) {
			cause = "malformed_token"
		}
		s.reject(ctx, cause, email)
		return models.Credential{}, common.ErrSessionInvalid
	}
	if cred.Email != email || cred.Password == "" {
		s.reject(ctx, "credential_mismatch", email)
		return models.Credential{}, common.ErrSessionInvalid
	}
	return cred, nil
}

func (s *VaultService) reject(ctx context.Context, cause, email string) {
	metrics.GateRejectionsTotal.WithLabelValues(cause).Inc()
	s.logger.Warn(ctx, "session rejected", "cause", cause, "email", email)
}

// CheckLogin reports the state of the session naming email. It never
// fails: any problem reads as logged out.
func (s *VaultService) CheckLogin(ctx context.Context, email string) LoginStatus {
	if email == "" {
		return LoginStatus{}
	}
	rec, err := s.repo.Get(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "check-login could not read record", "email", email, "error", err)
		}
		return LoginStatus{}
	}
	return LoginStatus{
		LoggedIn:      true,
		Email:         rec.Email,
		HasCalendarID: len(rec.Calendars) > 0,
		Calendars:     models.CloneCalendars(rec.Calendars),
	}
}

// Logout forgets the record for email.
func (s *VaultService) Logout(ctx context.Context, email string) error {
	if err := s.repo.Delete(ctx, email); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.logger.Info(ctx, "record deleted on logout", "email", email)
	return nil
}

// Ping reports whether the record store answers.
func (s *VaultService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
