// Package models holds the shapes the CLI exchanges with the vault server.
package models

import "time"

type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoginStatus is the answer of /check-login. Only LoggedIn is set for a
// client without a live session.
type LoginStatus struct {
	LoggedIn      bool       `json:"loggedIn"`
	Email         string     `json:"email,omitempty"`
	HasCalendarID bool       `json:"hasCalendarId,omitempty"`
	Calendars     []Calendar `json:"calendars,omitempty"`
}

// ActiveCalendar is the first registered calendar, if any.
func (s LoginStatus) ActiveCalendar() (Calendar, bool) {
	if len(s.Calendars) == 0 {
		return Calendar{}, false
	}
	return s.Calendars[0], true
}

type Message struct {
	Subject      string `json:"subject"`
	ReceivedDate string `json:"receivedDate"`
	From         string `json:"from"`
	Link         string `json:"link"`
}

type Event struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    *string   `json:"location,omitempty"`
	IsAllDay    bool      `json:"isAllDay"`
	IsRecurring bool      `json:"isRecurring"`
}

type CalendarView struct {
	CalendarName string  `json:"calendarName"`
	Events       []Event `json:"events"`
}
