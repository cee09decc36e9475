package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/client/models"
)

type Client interface {
	Ping(ctx context.Context) error
	Login(ctx context.Context, email string, password []byte) (*models.LoginStatus, error)
	CheckLogin(ctx context.Context) (*models.LoginStatus, error)
	Logout(ctx context.Context) error
	Emails(ctx context.Context, top int) ([]models.Message, error)
	Calendar(ctx context.Context, calendarID string, from, to time.Time) (*models.CalendarView, error)
	AddCalendar(ctx context.Context, calendarID, name string) error
	DeleteCalendar(ctx context.Context, calendarID string) error
	UseCalendar(ctx context.Context, calendarID string) error

	SessionToken() string
	SetSessionToken(token string)
}
