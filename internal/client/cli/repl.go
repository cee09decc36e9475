package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Status(ctx context.Context) error
	Emails(ctx context.Context, args []string) error
	Calendar(ctx context.Context, args []string) error
	AddCalendar(ctx context.Context, args []string) error
	DeleteCalendar(ctx context.Context, args []string) error
	UseCalendar(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
}

// runREPL reads a line from scanner, parses the first token as the command
// and dispatches to a. The loop exits on scanner EOF or on "exit"/"quit".
//
//	Not logged in:
//	  - help             show available commands
//	  - login            authenticate against the mailbox
//	  - status           ask the server about the session
//	  - exit | quit
//
//	Logged in:
//	  - emails [top]                 newest messages
//	  - calendar [id] [from] [to]    events, active calendar by default
//	  - addcal <id> <name>           register a calendar
//	  - delcal <id>                  forget a calendar
//	  - usecal <id>                  make a calendar the active one
//	  - status | logout | exit
//
// Command handlers report their own errors; the loop keeps going.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("mv %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: emails, calendar, addcal, delcal, usecal, status, logout, exit")
			} else {
				printlnFn("Available commands: login, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "status":
			_ = a.Status(ctx)

		case "emails", "mail":
			_ = a.Emails(ctx, args)

		case "calendar", "cal":
			_ = a.Calendar(ctx, args)

		case "addcal":
			_ = a.AddCalendar(ctx, args)

		case "delcal":
			_ = a.DeleteCalendar(ctx, args)

		case "usecal":
			_ = a.UseCalendar(ctx, args)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
