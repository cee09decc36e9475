// Package imap serves mailboxes that only speak IMAP. It has no calendar
// support: logins report no calendars and event listing always fails.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/logging"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/dmitrijs2005/mailvault/internal/server/remote"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

const inbox = "INBOX"

type Config struct {
	Addr       string
	TLS        bool
	WebmailURL string
	Timeout    time.Duration
	Location   *time.Location
}

// Gateway implements remote.Gateway over IMAP.
type Gateway struct {
	cfg    Config
	logger logging.Logger
}

var _ remote.Gateway = (*Gateway)(nil)

func New(cfg Config, logger logging.Logger) *Gateway {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Gateway{cfg: cfg, logger: logger.With("module", "imap")}
}

// connect dials, optionally wraps in TLS and logs in. The connection
// deadline follows ctx so no command outlives the caller.
func (g *Gateway) connect(ctx context.Context, cred models.Credential) (*imapclient.Client, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", g.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to IMAP %s: %v", common.ErrRemoteService, g.cfg.Addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if g.cfg.TLS {
		host, _, _ := net.SplitHostPort(g.cfg.Addr)
		tlsConn := tls.Client(conn, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: TLS handshake with %s: %v", common.ErrRemoteService, g.cfg.Addr, err)
		}
		conn = tlsConn
	}

	client := imapclient.New(conn, nil)
	if err := client.Login(cred.Email, cred.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: IMAP login for %s: %v", common.ErrAuthRejected, cred.Email, err)
	}
	return client, nil
}

func (g *Gateway) disconnect(ctx context.Context, client *imapclient.Client) {
	if err := client.Logout().Wait(); err != nil {
		g.logger.Debug(ctx, "imap logout failed", "error", err)
	}
	_ = client.Close()
}

// Login checks cred with LOGIN and SELECT INBOX.
func (g *Gateway) Login(ctx context.Context, cred models.Credential) ([]models.Calendar, error) {
	client, err := g.connect(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAuthRejected, err)
	}
	defer g.disconnect(ctx, client)

	if _, err := client.Select(inbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("%w: selecting INBOX: %v", common.ErrAuthRejected, err)
	}
	return []models.Calendar{}, nil
}

// ListInboxMessages returns the last limit messages of INBOX, newest first.
func (g *Gateway) ListInboxMessages(ctx context.Context, cred models.Credential, limit int) ([]remote.Message, error) {
	client, err := g.connect(ctx, cred)
	if err != nil {
		return nil, err
	}
	defer g.disconnect(ctx, client)

	mbox, err := client.Select(inbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("%w: selecting INBOX: %v", common.ErrRemoteService, err)
	}

	msgs := []remote.Message{}
	if mbox.NumMessages == 0 {
		return msgs, nil
	}

	limit = remote.ClampLimit(limit)
	first := uint32(1)
	if mbox.NumMessages > uint32(limit) {
		first = mbox.NumMessages - uint32(limit) + 1
	}
	var seq imap.SeqSet
	seq.AddRange(first, mbox.NumMessages)

	bufs, err := client.Fetch(seq, &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching envelopes: %v", common.ErrRemoteService, err)
	}

	sort.Slice(bufs, func(i, j int) bool { return bufs[i].SeqNum > bufs[j].SeqNum })
	for _, buf := range bufs {
		msgs = append(msgs, g.toMessage(buf))
	}
	return msgs, nil
}

// ListCalendarEvents is not available over IMAP.
func (g *Gateway) ListCalendarEvents(context.Context, models.Credential, string, remote.Window) (*remote.CalendarView, error) {
	return nil, fmt.Errorf("%w: calendar not supported by imap backend", common.ErrRemoteService)
}

func (g *Gateway) toMessage(buf *imapclient.FetchMessageBuffer) remote.Message {
	m := remote.Message{Link: g.link(uint32(buf.UID))}

	received := buf.InternalDate
	if env := buf.Envelope; env != nil {
		m.Subject = env.Subject
		if len(env.From) > 0 {
			from := env.From[0]
			m.From = from.Name
			if m.From == "" {
				m.From = from.Addr()
			}
		}
		if received.IsZero() {
			received = env.Date
		}
	}
	if !received.IsZero() {
		m.ReceivedDate = remote.FormatReceived(received, g.cfg.Location)
	}
	return m
}

// link opens one INBOX message in the configured webmail.
func (g *Gateway) link(uid uint32) string {
	q := url.Values{}
	q.Set("_action", "show")
	q.Set("_mbox", inbox)
	q.Set("_uid", strconv.FormatUint(uint64(uid), 10))
	return g.cfg.WebmailURL + "?" + q.Encode()
}
