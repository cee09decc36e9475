package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
)

// MailboxService runs mailbox reads for an already resolved credential.
type MailboxService struct {
	gateway remote.Gateway
	now     func() time.Time
}

func NewMailboxService(gateway remote.Gateway, now func() time.Time) *MailboxService {
	if now == nil {
		now = time.Now
	}
	return &MailboxService{gateway: gateway, now: now}
}

// Inbox lists the newest limit messages; limit is clamped to the service
// maximum and defaults when not positive.
func (s *MailboxService) Inbox(ctx context.Context, cred models.Credential, limit int) ([]remote.Message, error) {
	return s.gateway.ListInboxMessages(ctx, cred, remote.ClampLimit(limit))
}

// Events lists one calendar over [start, end). Zero bounds default to now
// and start plus one day.
func (s *MailboxService) Events(ctx context.Context, cred models.Credential, calendarID string, start, end time.Time) (*remote.CalendarView, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("%w: calendarId is required", common.ErrValidation)
	}
	w := remote.ResolveWindow(start, end, s.now())
	if !w.End.After(w.Start) {
		return nil, fmt.Errorf("%w: timeMax must be after timeMin", common.ErrValidation)
	}
	return s.gateway.ListCalendarEvents(ctx, cred, calendarID, w)
}
