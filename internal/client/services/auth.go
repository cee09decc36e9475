// Package services contains application services for the MailVault CLI.
// This file defines the authentication service: login, session restore
// from the keyring, status and logout.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mailvault/internal/client/client"
	"github.com/dmitrijs2005/mailvault/internal/client/models"
	"github.com/dmitrijs2005/mailvault/internal/client/repositories/session"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Restore: reuse a session saved by an earlier run, if the server still accepts it.
//   - Login: authenticate through the server and persist the new session.
//   - Status: ask the server what it knows about the current session.
//   - Logout: end the session on the server and forget it locally.
type AuthService interface {
	Restore(ctx context.Context) (*models.LoginStatus, error)
	Login(ctx context.Context, email string, password []byte) (*models.LoginStatus, error)
	Status(ctx context.Context) (*models.LoginStatus, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}

type authService struct {
	client   client.Client
	sessions session.Repository
	server   string
}

// NewAuthService binds the API client to the session store entry of server.
func NewAuthService(c client.Client, sessions session.Repository, server string) AuthService {
	return &authService{client: c, sessions: sessions, server: server}
}

func (a *authService) Restore(ctx context.Context) (*models.LoginStatus, error) {
	token, err := a.sessions.Load(ctx, a.server)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return &models.LoginStatus{}, nil
		}
		return nil, err
	}

	a.client.SetSessionToken(token)
	st, err := a.client.CheckLogin(ctx)
	if err != nil {
		return nil, err
	}
	if !st.LoggedIn {
		a.client.SetSessionToken("")
		if err := a.sessions.Clear(ctx, a.server); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (a *authService) Login(ctx context.Context, email string, password []byte) (*models.LoginStatus, error) {
	st, err := a.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token := a.client.SessionToken()
	if token == "" {
		return nil, fmt.Errorf("%w: login did not set a session", client.ErrServer)
	}
	if err := a.sessions.Save(ctx, a.server, token); err != nil {
		return nil, err
	}
	return st, nil
}

func (a *authService) Status(ctx context.Context) (*models.LoginStatus, error) {
	return a.client.CheckLogin(ctx)
}

// Logout forgets the local session even when the server cannot be reached.
func (a *authService) Logout(ctx context.Context) error {
	serverErr := a.client.Logout(ctx)
	a.client.SetSessionToken("")
	if err := a.sessions.Clear(ctx, a.server); err != nil {
		return err
	}
	return serverErr
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
