package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/mailvault/internal/client/client"
	"github.com/dmitrijs2005/mailvault/internal/client/config"
	"github.com/dmitrijs2005/mailvault/internal/client/models"
	"github.com/dmitrijs2005/mailvault/internal/client/repositories/session"
	"github.com/dmitrijs2005/mailvault/internal/client/services"
)

type App struct {
	config         *config.Config
	authService    services.AuthService
	mailboxService services.MailboxService
	status         *models.LoginStatus
	reader         *bufio.Reader
	out            io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	sessions, err := session.OpenKeyring(c.KeyringBackend, c.KeyringDir, c.KeyringFilePassword)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	as := services.NewAuthService(apiClient, sessions, c.ServerURL)
	ms := services.NewMailboxService(apiClient, sessions, c.ServerURL)

	return &App{
		config:         c,
		authService:    as,
		mailboxService: ms,
		status:         &models.LoginStatus{},
		reader:         bufio.NewReader(os.Stdin),
		out:            os.Stdout,
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.status != nil && a.status.LoggedIn
}

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return "(logged out)"
	}
	if c, ok := a.status.ActiveCalendar(); ok {
		return fmt.Sprintf("(%s, %s)", a.status.Email, c.Name)
	}
	return fmt.Sprintf("(%s)", a.status.Email)
}

// Run restores a saved session, then reads commands until the user exits.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to MailVault CLI (type 'help' for commands)")

	if err := a.restore(ctx); err != nil {
		a.report(err)
	}

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) restore(ctx context.Context) error {
	st, err := a.authService.Restore(ctx)
	if err != nil {
		return err
	}
	a.status = st
	if st.LoggedIn {
		fmt.Fprintf(a.out, "Resumed session for %s\n", st.Email)
	}
	return nil
}
