package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
	"github.com/dmitrijs2005/mailvault/internal/server/services"
)

const maxBodyBytes = 1 << 20

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	LoggedIn  bool              `json:"loggedIn"`
	Email     string            `json:"email"`
	Calendars []models.Calendar `json:"calendars"`
}

type checkLoginResponse struct {
	LoggedIn      bool              `json:"loggedIn"`
	Email         string            `json:"email"`
	HasCalendarID bool              `json:"hasCalendarId"`
	Calendars     []models.Calendar `json:"calendars"`
}

type loggedOutResponse struct {
	LoggedIn bool `json:"loggedIn"`
}

type calendarRequest struct {
	CalendarID string `json:"calendarId"`
	TimeMin    string `json:"timeMin,omitempty"`
	TimeMax    string `json:"timeMax,omitempty"`
}

type calendarEntryRequest struct {
	CalendarID   string `json:"calendarId"`
	CalendarName string `json:"calendarName"`
}

// decodeBody reads a JSON body into v. An empty body leaves v zero.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid request body", common.ErrValidation)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheckLogin(w http.ResponseWriter, r *http.Request) {
	email, err := s.binder.FromRequest(r)
	if err != nil {
		s.writeJSON(w, r, http.StatusOK, loggedOutResponse{})
		return
	}

	st := s.vault.CheckLogin(r.Context(), email)
	if !st.LoggedIn {
		s.writeJSON(w, r, http.StatusOK, loggedOutResponse{})
		return
	}

	s.writeJSON(w, r, http.StatusOK, checkLoginResponse{
		LoggedIn:      true,
		Email:         st.Email,
		HasCalendarID: st.HasCalendarID,
		Calendars:     nonNil(st.Calendars),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	email := strings.TrimSpace(req.Email)
	cals, err := s.vault.Login(r.Context(), email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.binder.SetCookie(w, email); err != nil {
		s.logger.Error(r.Context(), "issuing session failed", "request_id", RequestIDFrom(r.Context()), "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, r, http.StatusOK, loginResponse{LoggedIn: true, Email: email, Calendars: nonNil(cals)})
}

// handleLogout drops the stored record when the session is still valid and
// always clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if email, err := s.binder.FromRequest(r); err == nil {
		if err := s.vault.Logout(r.Context(), email); err != nil {
			s.logger.Error(r.Context(), "logout failed", "request_id", RequestIDFrom(r.Context()), "error", err)
			s.writeServiceError(w, r, err)
			return
		}
	}
	s.binder.ClearCookie(w)
	s.writeSuccess(w, r)
}

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cred, _ := services.CredentialFrom(ctx)

	limit := 0
	if top := r.URL.Query().Get("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n <= 0 {
			s.writeError(w, r, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := s.mailbox.Inbox(ctx, cred, limit)
	if err != nil {
		s.logger.Warn(ctx, "inbox listing failed", "request_id", RequestIDFrom(ctx), "email", cred.Email, "error", err)
		s.writeServiceError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []remote.Message{}
	}
	s.writeJSON(w, r, http.StatusOK, msgs)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cred, _ := services.CredentialFrom(ctx)

	var req calendarRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	start, err := parseBound(req.TimeMin)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "timeMin must be an RFC 3339 time")
		return
	}
	end, err := parseBound(req.TimeMax)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "timeMax must be an RFC 3339 time")
		return
	}

	view, err := s.mailbox.Events(ctx, cred, req.CalendarID, start, end)
	if err != nil {
		s.logger.Warn(ctx, "calendar listing failed", "request_id", RequestIDFrom(ctx), "email", cred.Email, "error", err)
		s.writeServiceError(w, r, err)
		return
	}
	if view.Events == nil {
		view.Events = []remote.Event{}
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleAddCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.finishRegistry(w, r, s.calendars.Add(r.Context(), emailFrom(r.Context()), req.CalendarID, req.CalendarName))
}

func (s *Server) handleDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.finishRegistry(w, r, s.calendars.Remove(r.Context(), emailFrom(r.Context()), req.CalendarID))
}

func (s *Server) handleUpdateCalendarID(w http.ResponseWriter, r *http.Request) {
	var req calendarEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.finishRegistry(w, r, s.calendars.ReplaceActive(r.Context(), emailFrom(r.Context()), req.CalendarID))
}

func (s *Server) finishRegistry(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSuccess(w, r)
}

func parseBound(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func nonNil(c []models.Calendar) []models.Calendar {
	if c == nil {
		return []models.Calendar{}
	}
	return c
}
