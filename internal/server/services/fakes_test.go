package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/cryptox"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
	"github.com/dmitrijs2005/mailvault/internal/server/repositories/records"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu sync.Mutex

	loginCals []models.Calendar
	loginErr  error
	msgs      []remote.Message
	view      *remote.CalendarView
	err       error

	gotCred   models.Credential
	gotLimit  int
	gotID     string
	gotWindow remote.Window
	calls     int
}

func (f *fakeGateway) Login(_ context.Context, cred models.Credential) ([]models.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotCred = cred
	return f.loginCals, f.loginErr
}

func (f *fakeGateway) ListInboxMessages(_ context.Context, cred models.Credential, limit int) ([]remote.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotCred, f.gotLimit = cred, limit
	return f.msgs, f.err
}

func (f *fakeGateway) ListCalendarEvents(_ context.Context, cred models.Credential, id string, w remote.Window) (*remote.CalendarView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotCred, f.gotID, f.gotWindow = cred, id, w
	return f.view, f.err
}

// brokenRepo fails every call the way an unreachable store does.
type brokenRepo struct{}

func (brokenRepo) Get(context.Context, string) (*models.UserRecord, error) {
	return nil, common.ErrStoreUnavailable
}
func (brokenRepo) Put(context.Context, string, models.RecordFields) error {
	return common.ErrStoreUnavailable
}
func (brokenRepo) ListCalendars(context.Context, string) ([]models.Calendar, error) {
	return nil, common.ErrStoreUnavailable
}
func (brokenRepo) SetCalendars(context.Context, string, []models.Calendar) error {
	return common.ErrStoreUnavailable
}
func (brokenRepo) UpdateCalendars(context.Context, string, records.CalendarsFunc) ([]models.Calendar, error) {
	return nil, common.ErrStoreUnavailable
}
func (brokenRepo) Delete(context.Context, string) error { return common.ErrStoreUnavailable }
func (brokenRepo) Ping(context.Context) error           { return common.ErrStoreUnavailable }
func (brokenRepo) Close() error                         { return nil }

func testCipher(t *testing.T, b byte) *cryptox.Cipher {
	t.Helper()
	c, err := cryptox.NewCipher(bytes.Repeat([]byte{b}, cryptox.KeySize))
	require.NoError(t, err)
	return c
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
