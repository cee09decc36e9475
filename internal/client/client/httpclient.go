package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/client/models"
	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/netx"
)

type HTTPClient struct {
	base       *url.URL
	http       *http.Client
	jar        *cookiejar.Jar
	cookieName string
}

func NewHTTPClient(serverURL string, timeout time.Duration) (*HTTPClient, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", serverURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &HTTPClient{
		base:       base,
		http:       &http.Client{Jar: jar, Timeout: timeout},
		jar:        jar,
		cookieName: common.DefaultSessionCookieName,
	}, nil
}

func (c *HTTPClient) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	return mapError(netx.DoJSON(ctx, c.http, method, c.endpoint(path, query), in, out))
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) (*models.LoginStatus, error) {
	req := map[string]string{"email": email, "password": string(password)}
	var resp models.LoginStatus
	if err := c.do(ctx, http.MethodPost, "/login", nil, req, &resp); err != nil {
		return nil, err
	}
	resp.HasCalendarID = len(resp.Calendars) > 0
	return &resp, nil
}

func (c *HTTPClient) CheckLogin(ctx context.Context) (*models.LoginStatus, error) {
	var resp models.LoginStatus
	if err := c.do(ctx, http.MethodGet, "/check-login", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, nil)
}

// Emails lists the newest top messages. A top of zero lets the server pick.
func (c *HTTPClient) Emails(ctx context.Context, top int) ([]models.Message, error) {
	var query url.Values
	if top > 0 {
		query = url.Values{"top": {strconv.Itoa(top)}}
	}
	var msgs []models.Message
	if err := c.do(ctx, http.MethodPost, "/emails", query, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Calendar lists events of one calendar. Zero bounds are left to the server.
func (c *HTTPClient) Calendar(ctx context.Context, calendarID string, from, to time.Time) (*models.CalendarView, error) {
	req := map[string]string{"calendarId": calendarID}
	if !from.IsZero() {
		req["timeMin"] = from.Format(time.RFC3339)
	}
	if !to.IsZero() {
		req["timeMax"] = to.Format(time.RFC3339)
	}
	var view models.CalendarView
	if err := c.do(ctx, http.MethodPost, "/calendar", nil, req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) AddCalendar(ctx context.Context, calendarID, name string) error {
	return c.do(ctx, http.MethodPost, "/add-calendar", nil, map[string]string{"calendarId": calendarID, "calendarName": name}, nil)
}

func (c *HTTPClient) DeleteCalendar(ctx context.Context, calendarID string) error {
	return c.do(ctx, http.MethodPost, "/delete-calendar", nil, map[string]string{"calendarId": calendarID}, nil)
}

func (c *HTTPClient) UseCalendar(ctx context.Context, calendarID string) error {
	return c.do(ctx, http.MethodPost, "/update-calendar-id", nil, map[string]string{"calendarId": calendarID}, nil)
}

// SessionToken returns the session cookie currently held for the server,
// or "" when there is none.
func (c *HTTPClient) SessionToken() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == c.cookieName {
			return ck.Value
		}
	}
	return ""
}

// SetSessionToken installs token as the session cookie. An empty token
// drops the cookie.
func (c *HTTPClient) SetSessionToken(token string) {
	ck := &http.Cookie{Name: c.cookieName, Value: token, Path: "/"}
	if token == "" {
		ck.MaxAge = -1
	}
	c.jar.SetCookies(c.base, []*http.Cookie{ck})
}
