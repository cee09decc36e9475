package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/cryptox"
	"github.com/dmitrijs2005/mailvault/internal/logging"
	"github.com/dmitrijs2005/mailvault/internal/server/auth"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
	"github.com/dmitrijs2005/mailvault/internal/server/repositories/records"
	"github.com/dmitrijs2005/mailvault/internal/server/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type fakeGateway struct {
	mu        sync.Mutex
	password  string
	calendars []models.Calendar
	msgs      []remote.Message
	err       error
	gotLimit  int
	gotID     string
	gotWindow remote.Window
}

func (f *fakeGateway) Login(_ context.Context, cred models.Credential) ([]models.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cred.Password != f.password {
		return nil, fmt.Errorf("%w: status 401", common.ErrAuthRejected)
	}
	return f.calendars, nil
}

func (f *fakeGateway) ListInboxMessages(_ context.Context, _ models.Credential, limit int) ([]remote.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotLimit = limit
	return f.msgs, f.err
}

func (f *fakeGateway) ListCalendarEvents(_ context.Context, _ models.Credential, id string, w remote.Window) (*remote.CalendarView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotID, f.gotWindow = id, w
	if f.err != nil {
		return nil, f.err
	}
	return &remote.CalendarView{CalendarName: "Calendar"}, nil
}

type env struct {
	t       *testing.T
	handler http.Handler
	repo    records.Repository
	gw      *fakeGateway
}

func newEnv(t *testing.T) *env {
	return newEnvWithRepo(t, records.NewMemoryRepository())
}

func newEnvWithRepo(t *testing.T, repo records.Repository) *env {
	t.Helper()

	cipher, err := cryptox.NewCipher(bytes.Repeat([]byte{7}, cryptox.KeySize))
	require.NoError(t, err)
	binder, err := auth.NewSessionBinder([]byte("session-secret"), "", 365*24*time.Hour)
	require.NoError(t, err)

	gw := &fakeGateway{password: "p", calendars: []models.Calendar{{ID: "F1", Name: "Calendar"}}}
	vault := services.NewVaultService(repo, cipher, gw, logging.Nop{})
	cals := services.NewCalendarService(repo, logging.Nop{})
	mailbox := services.NewMailboxService(gw, func() time.Time { return testNow })

	s := NewServer(":0", logging.Nop{}, binder, vault, cals, mailbox)
	return &env{t: t, handler: s.Handler(), repo: repo, gw: gw}
}

func (e *env) do(method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) login() *http.Cookie {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/login", map[string]string{"email": "a@x.com", "password": "p"})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == common.DefaultSessionCookieName {
			return c
		}
	}
	e.t.Fatal("login did not set a session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestLogin_SetsSessionCookieAndCheckLoginRoundTrips(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/login", map[string]string{"email": "a@x.com", "password": "p"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"loggedIn":true,"email":"a@x.com","calendars":[{"id":"F1","name":"Calendar"}]}`, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, common.DefaultSessionCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 365*24*60*60, c.MaxAge)

	rec = e.do(http.MethodGet, "/check-login", nil, c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"loggedIn":true,"email":"a@x.com","hasCalendarId":true,"calendars":[{"id":"F1","name":"Calendar"}]}`, rec.Body.String())
}

func TestCheckLogin_LoggedOut(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/check-login", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"loggedIn":false}`, rec.Body.String())

	rec = e.do(http.MethodGet, "/check-login", nil, &http.Cookie{Name: common.DefaultSessionCookieName, Value: "garbage"})
	assert.JSONEq(t, `{"loggedIn":false}`, rec.Body.String())

	c := e.login()
	require.NoError(t, e.repo.Delete(context.Background(), "a@x.com"))
	rec = e.do(http.MethodGet, "/check-login", nil, c)
	assert.JSONEq(t, `{"loggedIn":false}`, rec.Body.String())
}

func TestLogin_Failures(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/login", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec = e.do(http.MethodPost, "/login", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "authentication failed", body.Error)
	assert.NotEmpty(t, body.Details)
	assert.NotContains(t, body.Details, "wrong")
	assert.Empty(t, rec.Result().Cookies())

	_, err := e.repo.Get(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGate_RejectsWithoutValidSession(t *testing.T) {
	e := newEnv(t)
	c := e.login()

	other, err := auth.NewSessionBinder([]byte("other-secret"), "", time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue("a@x.com")
	require.NoError(t, err)

	cases := map[string][]*http.Cookie{
		"no cookie":      nil,
		"garbage cookie": {{Name: common.DefaultSessionCookieName, Value: "abc"}},
		"forged cookie":  {{Name: common.DefaultSessionCookieName, Value: forged}},
	}

	for name, cookies := range cases {
		t.Run(name, func(t *testing.T) {
			for _, path := range []string{"/emails", "/calendar", "/add-calendar", "/delete-calendar", "/update-calendar-id"} {
				rec := e.do(http.MethodPost, path, map[string]string{"calendarId": "F1"}, cookies...)
				assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
				assert.JSONEq(t, `{"error":"not authenticated"}`, rec.Body.String(), path)
			}
		})
	}

	t.Run("record gone", func(t *testing.T) {
		require.NoError(t, e.repo.Delete(context.Background(), "a@x.com"))
		rec := e.do(http.MethodPost, "/emails", nil, c)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"not authenticated"}`, rec.Body.String())
	})

	t.Run("record unreadable", func(t *testing.T) {
		c := e.login()
		bad := "00:11"
		require.NoError(t, e.repo.Put(context.Background(), "a@x.com", models.RecordFields{CredentialCiphertext: &bad}))
		rec := e.do(http.MethodPost, "/emails", nil, c)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"not authenticated"}`, rec.Body.String())
	})
}

func TestCalendarRegistryScenario(t *testing.T) {
	e := newEnv(t)
	c := e.login()

	calendars := func() []models.Calendar {
		st := decode[checkLoginResponse](t, e.do(http.MethodGet, "/check-login", nil, c))
		return st.Calendars
	}

	rec := e.do(http.MethodPost, "/add-calendar", map[string]string{"calendarId": "F2", "calendarName": "Team"}, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, []models.Calendar{{ID: "F1", Name: "Calendar"}, {ID: "F2", Name: "Team"}}, calendars())

	for i := 0; i < 2; i++ {
		rec = e.do(http.MethodPost, "/delete-calendar", map[string]string{"calendarId": "F2"}, c)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []models.Calendar{{ID: "F1", Name: "Calendar"}}, calendars())
	}

	rec = e.do(http.MethodPost, "/update-calendar-id", map[string]string{"calendarId": "F7"}, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.Calendar{{ID: "F7", Name: "F7"}, {ID: "F1", Name: "Calendar"}}, calendars())

	rec = e.do(http.MethodPost, "/add-calendar", map[string]string{"calendarId": "F3"}, c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(http.MethodPost, "/delete-calendar", map[string]string{}, c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmails(t *testing.T) {
	e := newEnv(t)
	c := e.login()
	e.gw.msgs = []remote.Message{{
		Subject:      "hi",
		ReceivedDate: "2024/05/06 07:08",
		From:         "Bob",
		Link:         "https://owa/?ItemID=AA%2BBB&exvsurl=1&viewmodel=ReadMessageItem",
	}}

	rec := e.do(http.MethodPost, "/emails", nil, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"subject":"hi","receivedDate":"2024/05/06 07:08","from":"Bob","link":"https://owa/?ItemID=AA%2BBB&exvsurl=1&viewmodel=ReadMessageItem"}]`, rec.Body.String())
	assert.Equal(t, remote.DefaultInboxLimit, e.gw.gotLimit)

	rec = e.do(http.MethodPost, "/emails?top=5000", nil, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, remote.MaxInboxLimit, e.gw.gotLimit)

	for _, top := range []string{"abc", "0", "-3", "1.5"} {
		rec = e.do(http.MethodPost, "/emails?top="+top, nil, c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, top)
	}

	e.gw.msgs = nil
	rec = e.do(http.MethodPost, "/emails?top=1", nil, c)
	assert.JSONEq(t, `[]`, rec.Body.String())

	e.gw.err = fmt.Errorf("%w: soap fault", common.ErrRemoteService)
	rec = e.do(http.MethodPost, "/emails", nil, c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "remote service error", decode[errorResponse](t, rec).Error)
}

func TestCalendar(t *testing.T) {
	e := newEnv(t)
	c := e.login()

	rec := e.do(http.MethodPost, "/calendar", map[string]string{"calendarId": "F1"}, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"calendarName":"Calendar","events":[]}`, rec.Body.String())
	assert.Equal(t, "F1", e.gw.gotID)
	assert.Equal(t, remote.Window{Start: testNow, End: testNow.Add(24 * time.Hour)}, e.gw.gotWindow)

	rec = e.do(http.MethodPost, "/calendar", map[string]string{
		"calendarId": "F1",
		"timeMin":    "2024-06-01T00:00:00Z",
		"timeMax":    "2024-06-08T00:00:00Z",
	}, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), e.gw.gotWindow.Start)
	assert.Equal(t, time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC), e.gw.gotWindow.End)

	for name, body := range map[string]map[string]string{
		"no calendar id":  {},
		"bad timeMin":     {"calendarId": "F1", "timeMin": "tomorrow"},
		"bad timeMax":     {"calendarId": "F1", "timeMax": "2024-13-01"},
		"inverted window": {"calendarId": "F1", "timeMin": "2024-06-08T00:00:00Z", "timeMax": "2024-06-01T00:00:00Z"},
	} {
		rec = e.do(http.MethodPost, "/calendar", body, c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	c := e.login()

	rec := e.do(http.MethodPost, "/logout", nil, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	_, err := e.repo.Get(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, common.ErrNotFound)

	rec = e.do(http.MethodPost, "/emails", nil, c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type downRepo struct{ records.Repository }

func (downRepo) Get(context.Context, string) (*models.UserRecord, error) {
	return nil, fmt.Errorf("%w: dial tcp: refused", common.ErrStoreUnavailable)
}

func (downRepo) Delete(context.Context, string) error {
	return fmt.Errorf("%w: dial tcp: refused", common.ErrStoreUnavailable)
}

func TestStoreUnavailable(t *testing.T) {
	mem := records.NewMemoryRepository()
	up := newEnvWithRepo(t, mem)
	c := up.login()

	e := newEnvWithRepo(t, downRepo{Repository: mem})

	rec := e.do(http.MethodPost, "/emails", nil, c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())

	rec = e.do(http.MethodPost, "/logout", nil, c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = e.do(http.MethodGet, "/check-login", nil, c)
	assert.JSONEq(t, `{"loggedIn":false}`, rec.Body.String())
}

func TestRouting(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusMethodNotAllowed, e.do(http.MethodGet, "/login", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, e.do(http.MethodGet, "/emails", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/nope", nil).Code)

	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/health", nil).Code)
	rec := e.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mailvault_http_requests_total")
}

func TestRequestID(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/health", nil)
	_, err := uuid.Parse(rec.Header().Get(common.RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(common.RequestIDHeader, id)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	assert.Equal(t, id, rr.Header().Get(common.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(common.RequestIDHeader, "<script>")
	rr = httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	assert.NotEqual(t, "<script>", rr.Header().Get(common.RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		body   string
	}{
		{common.ErrNotAuthenticated, http.StatusUnauthorized, "not authenticated"},
		{common.ErrSessionInvalid, http.StatusUnauthorized, "not authenticated"},
		{fmt.Errorf("x: %w", common.ErrAuthRejected), http.StatusUnauthorized, "authentication failed"},
		{fmt.Errorf("%w: bad", common.ErrValidation), http.StatusBadRequest, "validation error: bad"},
		{common.ErrRemoteService, http.StatusInternalServerError, "remote service error"},
		{common.ErrStoreUnavailable, http.StatusInternalServerError, "internal error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		status, body := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.body, body.Error, tt.err.Error())
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	binder, err := auth.NewSessionBinder([]byte("s"), "", time.Hour)
	require.NoError(t, err)
	s := NewServer("127.0.0.1:0", logging.Nop{}, binder, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
