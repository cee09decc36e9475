package services

import (
	"context"
	"time"

	"github.com/99designs/keyring"
	"github.com/dmitrijs2005/mailvault/internal/client/client"
	"github.com/dmitrijs2005/mailvault/internal/client/models"
	"github.com/dmitrijs2005/mailvault/internal/client/repositories/session"
)

// fakeClient implements client.Client for unit tests.
type fakeClient struct {
	token string

	loginStatus *models.LoginStatus
	loginErr    error
	loginToken  string

	checkStatus *models.LoginStatus
	checkErr    error

	logoutErr error
	err       error

	calls []string
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Ping(context.Context) error { f.calls = append(f.calls, "ping"); return f.err }

func (f *fakeClient) Login(_ context.Context, _ string, _ []byte) (*models.LoginStatus, error) {
	f.calls = append(f.calls, "login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.token = f.loginToken
	return f.loginStatus, nil
}

func (f *fakeClient) CheckLogin(context.Context) (*models.LoginStatus, error) {
	f.calls = append(f.calls, "check-login:"+f.token)
	return f.checkStatus, f.checkErr
}

func (f *fakeClient) Logout(context.Context) error {
	f.calls = append(f.calls, "logout")
	return f.logoutErr
}

func (f *fakeClient) Emails(context.Context, int) ([]models.Message, error) {
	f.calls = append(f.calls, "emails")
	return nil, f.err
}

func (f *fakeClient) Calendar(context.Context, string, time.Time, time.Time) (*models.CalendarView, error) {
	f.calls = append(f.calls, "calendar")
	return nil, f.err
}

func (f *fakeClient) AddCalendar(context.Context, string, string) error {
	f.calls = append(f.calls, "addcal")
	return f.err
}

func (f *fakeClient) DeleteCalendar(context.Context, string) error {
	f.calls = append(f.calls, "delcal")
	return f.err
}

func (f *fakeClient) UseCalendar(context.Context, string) error {
	f.calls = append(f.calls, "usecal")
	return f.err
}

func (f *fakeClient) SessionToken() string         { return f.token }
func (f *fakeClient) SetSessionToken(token string) { f.token = token }

func newSessions() *session.KeyringRepository {
	return session.NewKeyringRepository(keyring.NewArrayKeyring(nil))
}
