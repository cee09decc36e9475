package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/logging"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/repositories/records"
)

// CalendarService edits the calendar registry of existing records. Every
// edit is a single UpdateCalendars call, so concurrent edits of the same
// record do not lose each other.
type CalendarService struct {
	repo   records.Repository
	logger logging.Logger
}

func NewCalendarService(repo records.Repository, logger logging.Logger) *CalendarService {
	return &CalendarService{repo: repo, logger: logger.With("module", "calendars")}
}

// Add appends {id, name}. A duplicate id is appended again.
func (s *CalendarService) Add(ctx context.Context, email, id, name string) error {
	if id == "" || name == "" {
		return fmt.Errorf("%w: calendarId and calendarName are required", common.ErrValidation)
	}
	return s.update(ctx, "add", email, func(cur []models.Calendar) []models.Calendar {
		return append(cur, models.Calendar{ID: id, Name: name})
	})
}

// Remove drops every entry with id. Removing an unknown id succeeds.
func (s *CalendarService) Remove(ctx context.Context, email, id string) error {
	if id == "" {
		return fmt.Errorf("%w: calendarId is required", common.ErrValidation)
	}
	return s.update(ctx, "remove", email, func(cur []models.Calendar) []models.Calendar {
		out := make([]models.Calendar, 0, len(cur))
		for _, c := range cur {
			if c.ID != id {
				out = append(out, c)
			}
		}
		return out
	})
}

// ReplaceActive makes id the active calendar, which is the first entry.
// An existing entry keeps its name and moves to the front; an unknown id is
// prepended with the id standing in for its name.
func (s *CalendarService) ReplaceActive(ctx context.Context, email, id string) error {
	if id == "" {
		return fmt.Errorf("%w: calendarId is required", common.ErrValidation)
	}
	return s.update(ctx, "replace_active", email, func(cur []models.Calendar) []models.Calendar {
		active := models.Calendar{ID: id, Name: id}
		rest := make([]models.Calendar, 0, len(cur))
		found := false
		for _, c := range cur {
			if c.ID == id && !found {
				active = c
				found = true
				continue
			}
			rest = append(rest, c)
		}
		return append([]models.Calendar{active}, rest...)
	})
}

func (s *CalendarService) update(ctx context.Context, op, email string, fn records.CalendarsFunc) error {
	cals, err := s.repo.UpdateCalendars(ctx, email, fn)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrSessionInvalid
		}
		s.logger.Error(ctx, "calendar update failed", "op", op, "email", email, "error", err)
		return fmt.Errorf("%s calendar: %w", op, err)
	}
	s.logger.Debug(ctx, "calendar registry updated", "op", op, "email", email, "calendars", len(cals))
	return nil
}
