package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/mailvault/internal/netx"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("not logged in")
	ErrAuthFailed   = errors.New("mailbox rejected the credentials")
	ErrBadRequest   = errors.New("bad request")
	ErrServer       = errors.New("server error")
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// mapError turns a transport or status error into one of the sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var se *netx.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var body errorBody
	_ = json.Unmarshal(se.Body, &body)
	msg := body.Error
	if body.Details != "" {
		msg += ": " + body.Details
	}
	if msg == "" {
		msg = http.StatusText(se.Code)
	}

	switch {
	case se.Code == http.StatusUnauthorized && body.Error == "authentication failed":
		return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	case se.Code == http.StatusUnauthorized:
		return ErrUnauthorized
	case se.Code >= 400 && se.Code < 500:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	default:
		return fmt.Errorf("%w: %s", ErrServer, msg)
	}
}
