package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/client/client"
	"github.com/dmitrijs2005/mailvault/internal/client/models"
	"github.com/dmitrijs2005/mailvault/internal/client/repositories/session"
)

// MailboxService reads mail and edits the calendar registry. A session the
// server no longer accepts is dropped from the session store.
type MailboxService interface {
	Emails(ctx context.Context, top int) ([]models.Message, error)
	Calendar(ctx context.Context, calendarID string, from, to time.Time) (*models.CalendarView, error)
	AddCalendar(ctx context.Context, calendarID, name string) error
	DeleteCalendar(ctx context.Context, calendarID string) error
	UseCalendar(ctx context.Context, calendarID string) error
}

type mailboxService struct {
	client   client.Client
	sessions session.Repository
	server   string
}

func NewMailboxService(c client.Client, sessions session.Repository, server string) MailboxService {
	return &mailboxService{client: c, sessions: sessions, server: server}
}

func (m *mailboxService) check(ctx context.Context, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		m.client.SetSessionToken("")
		_ = m.sessions.Clear(ctx, m.server)
	}
	return err
}

func (m *mailboxService) Emails(ctx context.Context, top int) ([]models.Message, error) {
	msgs, err := m.client.Emails(ctx, top)
	return msgs, m.check(ctx, err)
}

func (m *mailboxService) Calendar(ctx context.Context, calendarID string, from, to time.Time) (*models.CalendarView, error) {
	view, err := m.client.Calendar(ctx, calendarID, from, to)
	return view, m.check(ctx, err)
}

func (m *mailboxService) AddCalendar(ctx context.Context, calendarID, name string) error {
	return m.check(ctx, m.client.AddCalendar(ctx, calendarID, name))
}

func (m *mailboxService) DeleteCalendar(ctx context.Context, calendarID string) error {
	return m.check(ctx, m.client.DeleteCalendar(ctx, calendarID))
}

func (m *mailboxService) UseCalendar(ctx context.Context, calendarID string) error {
	return m.check(ctx, m.client.UseCalendar(ctx, calendarID))
}
