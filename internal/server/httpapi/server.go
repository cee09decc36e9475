// Package httpapi is the JSON surface of the vault: login, session checks,
// mailbox reads and calendar registry edits, all behind a session cookie.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/logging"
	"github.com/dmitrijs2005/mailvault/internal/server/auth"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
	"github.com/dmitrijs2005/mailvault/internal/server/services"
)

const shutdownTimeout = 15 * time.Second

// Vault is the credential lifecycle the handlers depend on.
type Vault interface {
	Login(ctx context.Context, email, password string) ([]models.Calendar, error)
	Resolve(ctx context.Context, email string) (models.Credential, error)
	CheckLogin(ctx context.Context, email string) services.LoginStatus
	Logout(ctx context.Context, email string) error
}

// Registry edits the calendar list of a logged in user.
type Registry interface {
	Add(ctx context.Context, email, id, name string) error
	Remove(ctx context.Context, email, id string) error
	ReplaceActive(ctx context.Context, email, id string) error
}

// Mailbox reads mail and calendar data with a resolved credential.
type Mailbox interface {
	Inbox(ctx context.Context, cred models.Credential, limit int) ([]remote.Message, error)
	Events(ctx context.Context, cred models.Credential, calendarID string, start, end time.Time) (*remote.CalendarView, error)
}

type Server struct {
	addr      string
	vault     Vault
	calendars Registry
	mailbox   Mailbox
	binder    *auth.SessionBinder
	logger    logging.Logger
	handler   http.Handler
}

func NewServer(addr string, l logging.Logger, binder *auth.SessionBinder, vault Vault, calendars Registry, mailbox Mailbox) *Server {
	s := &Server{
		addr:      addr,
		vault:     vault,
		calendars: calendars,
		mailbox:   mailbox,
		binder:    binder,
		logger:    l.With("module", "http_server"),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(context.Background(), "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
