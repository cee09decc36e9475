// Package ews is a minimal Exchange Web Services client covering the four
// operations the vault needs: GetFolder, FindFolder, FindItem and FindItem
// with a CalendarView.
package ews

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Azure/go-ntlmssp"
	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/logging"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Auth schemes.
const (
	AuthBasic = "basic"
	AuthNTLM  = "ntlm"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 16 << 20

type Config struct {
	URL        string
	Auth       string
	OWABaseURL string
	Timeout    time.Duration
	Location   *time.Location
}

// Client implements remote.Gateway against an EWS endpoint.
type Client struct {
	cfg          Config
	logger       logging.Logger
	newTransport func() *http.Transport
	now          func() time.Time
}

type Option func(*Client)

// WithTransportFactory overrides how the per-operation transport is built.
func WithTransportFactory(f func() *http.Transport) Option {
	return func(c *Client) { c.newTransport = f }
}

func New(cfg Config, logger logging.Logger, opts ...Option) *Client {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	c := &Client{
		cfg:    cfg,
		logger: logger.With("module", "ews"),
		newTransport: func() *http.Transport {
			return http.DefaultTransport.(*http.Transport).Clone()
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// session is one authenticated conversation with the service. It owns its
// transport, so nothing negotiated for one user is ever reused for another.
type session struct {
	client    *Client
	http      *http.Client
	transport *http.Transport
	cred      models.Credential
}

func (c *Client) open(cred models.Credential) *session {
	base := c.newTransport()

	var rt http.RoundTripper = base
	if c.cfg.Auth == AuthNTLM {
		rt = ntlmssp.Negotiator{RoundTripper: base}
	}

	return &session{
		client:    c,
		http:      &http.Client{Transport: otelhttp.NewTransport(rt)},
		transport: base,
		cred:      cred,
	}
}

func (s *session) close() {
	s.transport.CloseIdleConnections()
}

// call posts one SOAP request and decodes the body of the response into T.
// A 401 from the service is common.ErrAuthRejected; every other failure,
// including an expired deadline, is common.ErrRemoteService.
func call[T any](ctx context.Context, s *session, op string, body any) (*T, error) {
	payload, err := xml.Marshal(newEnvelope(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: encode request: %v", common.ErrRemoteService, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.cfg.URL, bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrRemoteService, op, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "text/xml")
	// The NTLM negotiator reads the credential from the basic auth header.
	req.SetBasicAuth(s.cred.Email, s.cred.Password)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrRemoteService, op, err)
	}
	defer resp.Body.Close()

	s.client.logger.Debug(ctx, "ews call", "op", op, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, fmt.Errorf("%w: %s: service returned 401", common.ErrAuthRejected, op)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read response: %v", common.ErrRemoteService, op, err)
	}

	var env responseEnvelope[T]
	decodeErr := xml.Unmarshal(raw, &env)

	if decodeErr == nil && env.Body.Fault != nil {
		return nil, fmt.Errorf("%w: %s: soap fault %s: %s", common.ErrRemoteService, op, env.Body.Fault.Code, env.Body.Fault.String)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status %d", common.ErrRemoteService, op, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", common.ErrRemoteService, op, decodeErr)
	}
	if env.Body.Content == nil {
		return nil, fmt.Errorf("%w: %s: empty response body", common.ErrRemoteService, op)
	}
	return env.Body.Content, nil
}

func checkMessage(op string, m responseMessage) error {
	if m.ResponseClass != "Success" {
		return fmt.Errorf("%w: %s: %s %s: %s", common.ErrRemoteService, op, m.ResponseClass, m.ResponseCode, m.MessageText)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}
