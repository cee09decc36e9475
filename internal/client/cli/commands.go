package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/client/client"
	"github.com/dmitrijs2005/mailvault/internal/client/models"
	"github.com/dmitrijs2005/mailvault/internal/common"
)

const defaultTop = 10

// dateLayouts are tried in order when parsing calendar bounds.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

var errUsage = errors.New("usage")

func (a *App) report(err error) {
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(a.out, err.Error())
	case errors.Is(err, client.ErrUnauthorized):
		a.status = &models.LoginStatus{}
		fmt.Fprintln(a.out, "Not logged in. Use 'login' first.")
	case errors.Is(err, client.ErrAuthFailed):
		fmt.Fprintln(a.out, "Login failed: the mailbox rejected the credentials.")
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server is unavailable, try again later.")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter mailbox email", a.out)
	if err != nil {
		return err
	}
	if email == "" {
		err := usage("email must not be empty")
		a.report(err)
		return err
	}

	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	st, err := a.authService.Login(ctx, email, password)
	if err != nil {
		a.report(err)
		return err
	}
	a.refresh(ctx, st)
	fmt.Fprintf(a.out, "Logged in as %s\n", a.status.Email)
	return nil
}

// refresh replaces the cached status with the server's view, falling back
// to fallback when the server cannot be asked.
func (a *App) refresh(ctx context.Context, fallback *models.LoginStatus) {
	st, err := a.authService.Status(ctx)
	if err != nil || st == nil {
		if fallback != nil {
			a.status = fallback
		}
		return
	}
	a.status = st
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.authService.Status(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	a.status = st
	printStatus(a, st)
	return nil
}

func printStatus(a *App, st *models.LoginStatus) {
	if !st.LoggedIn {
		fmt.Fprintln(a.out, "Not logged in.")
		return
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", st.Email)
	if len(st.Calendars) == 0 {
		fmt.Fprintln(a.out, "No calendars registered.")
		return
	}
	fmt.Fprintln(a.out, "Calendars:")
	for i, c := range st.Calendars {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(a.out, " %s %s  %s\n", marker, c.ID, c.Name)
	}
}

func (a *App) Emails(ctx context.Context, args []string) error {
	top := defaultTop
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			err := usage("emails [top], top must be a positive number")
			a.report(err)
			return err
		}
		top = n
	}

	msgs, err := a.mailboxService.Emails(ctx, top)
	if err != nil {
		a.report(err)
		return err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "Inbox is empty.")
		return nil
	}
	for _, m := range msgs {
		fmt.Fprintf(a.out, "%s  %-30s  %s\n", m.ReceivedDate, m.From, m.Subject)
	}
	return nil
}

func (a *App) Calendar(ctx context.Context, args []string) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else if c, ok := a.status.ActiveCalendar(); ok {
		id = c.ID
	} else {
		err := usage("calendar <id> [from] [to], no active calendar")
		a.report(err)
		return err
	}

	var from, to time.Time
	var err error
	if len(args) > 1 {
		if from, err = parseDate(args[1]); err != nil {
			a.report(err)
			return err
		}
	}
	if len(args) > 2 {
		if to, err = parseDate(args[2]); err != nil {
			a.report(err)
			return err
		}
	}

	view, err := a.mailboxService.Calendar(ctx, id, from, to)
	if err != nil {
		a.report(err)
		return err
	}
	printCalendar(a, view)
	return nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, usage(fmt.Sprintf("bad date %q, use YYYY-MM-DD or RFC3339", s))
}

func printCalendar(a *App, view *models.CalendarView) {
	name := view.CalendarName
	if name == "" {
		name = "calendar"
	}
	if len(view.Events) == 0 {
		fmt.Fprintf(a.out, "No events in %s.\n", name)
		return
	}
	fmt.Fprintf(a.out, "%s:\n", name)
	for _, e := range view.Events {
		when := e.Start.Local().Format("2006-01-02 15:04") + " - " + e.End.Local().Format("15:04")
		if e.IsAllDay {
			when = e.Start.Local().Format("2006-01-02") + " all day"
		}
		line := fmt.Sprintf("  %s  %s", when, e.Subject)
		if e.Location != nil && *e.Location != "" {
			line += " @ " + *e.Location
		}
		if e.IsRecurring {
			line += " (recurring)"
		}
		fmt.Fprintln(a.out, line)
	}
}

func (a *App) AddCalendar(ctx context.Context, args []string) error {
	if len(args) < 2 {
		err := usage("addcal <id> <name>")
		a.report(err)
		return err
	}
	name := strings.Join(args[1:], " ")
	if err := a.mailboxService.AddCalendar(ctx, args[0], name); err != nil {
		a.report(err)
		return err
	}
	a.refresh(ctx, nil)
	fmt.Fprintf(a.out, "Calendar %s added.\n", name)
	return nil
}

func (a *App) DeleteCalendar(ctx context.Context, args []string) error {
	if len(args) != 1 {
		err := usage("delcal <id>")
		a.report(err)
		return err
	}
	if err := a.mailboxService.DeleteCalendar(ctx, args[0]); err != nil {
		a.report(err)
		return err
	}
	a.refresh(ctx, nil)
	fmt.Fprintf(a.out, "Calendar %s removed.\n", args[0])
	return nil
}

func (a *App) UseCalendar(ctx context.Context, args []string) error {
	if len(args) != 1 {
		err := usage("usecal <id>")
		a.report(err)
		return err
	}
	if err := a.mailboxService.UseCalendar(ctx, args[0]); err != nil {
		a.report(err)
		return err
	}
	a.refresh(ctx, nil)
	fmt.Fprintf(a.out, "Calendar %s is now active.\n", args[0])
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.authService.Logout(ctx)
	a.status = &models.LoginStatus{}
	if err != nil && !errors.Is(err, client.ErrUnauthorized) {
		a.report(err)
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
