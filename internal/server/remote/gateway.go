// Package remote is the boundary to the user's mailbox service. Every
// operation authenticates afresh with the credential it is given; no remote
// session outlives the call that opened it.
package remote

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/server/models"
)

const (
	// DefaultInboxLimit is used when the caller does not ask for a size.
	DefaultInboxLimit = 100
	// MaxInboxLimit is the largest page the mailbox service returns.
	MaxInboxLimit = 1000
	// DefaultWindow is the calendar window length when no end is given.
	DefaultWindow = 24 * time.Hour
	// ReceivedDateLayout renders a message's receive time.
	ReceivedDateLayout = "2006/01/02 15:04"
)

// Message is one inbox entry.
type Message struct {
	Subject      string `json:"subject"`
	ReceivedDate string `json:"receivedDate"`
	From         string `json:"from"`
	Link         string `json:"link"`
}

// Event is one calendar item inside a window.
type Event struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    *string   `json:"location,omitempty"`
	IsAllDay    bool      `json:"isAllDay"`
	IsRecurring bool      `json:"isRecurring"`
}

// CalendarView is a calendar's display name and its events in a window.
type CalendarView struct {
	CalendarName string  `json:"calendarName"`
	Events       []Event `json:"events"`
}

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Gateway talks to the mailbox service on behalf of one credential.
//
// Login reports every failure as common.ErrAuthRejected. The other
// operations report common.ErrAuthRejected only when the service itself
// rejects the credential and common.ErrRemoteService for everything else.
type Gateway interface {
	Login(ctx context.Context, cred models.Credential) ([]models.Calendar, error)
	ListInboxMessages(ctx context.Context, cred models.Credential, limit int) ([]Message, error)
	ListCalendarEvents(ctx context.Context, cred models.Credential, calendarID string, w Window) (*CalendarView, error)
}

// ResolveWindow fills in missing bounds: the start defaults to now and the
// end to start plus DefaultWindow. Each bound defaults independently.
func ResolveWindow(start, end, now time.Time) Window {
	if start.IsZero() {
		start = now
	}
	if end.IsZero() {
		end = start.Add(DefaultWindow)
	}
	return Window{Start: start, End: end}
}

// ClampLimit maps a requested inbox size onto (0, MaxInboxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultInboxLimit
	case limit > MaxInboxLimit:
		return MaxInboxLimit
	default:
		return limit
	}
}

// EscapeItemID escapes the "+" characters of a mailbox item id so the id
// survives being placed in a URL. Nothing else is changed.
func EscapeItemID(id string) string {
	return strings.ReplaceAll(id, "+", "%2B")
}

// FormatReceived renders t with ReceivedDateLayout in loc.
func FormatReceived(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(ReceivedDateLayout)
}
