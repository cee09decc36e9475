package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
)

// SessionBinder issues session tokens and moves them in and out of the
// session cookie. Its signing secret must differ from the credential key.
type SessionBinder struct {
	secret     []byte
	cookieName string
	secure     bool
	validity   time.Duration
	now        func() time.Time
}

type Option func(*SessionBinder)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *SessionBinder) { b.now = now }
}

// WithSecureCookie marks issued cookies Secure.
func WithSecureCookie(secure bool) Option {
	return func(b *SessionBinder) { b.secure = secure }
}

func NewSessionBinder(secret []byte, cookieName string, validity time.Duration, opts ...Option) (*SessionBinder, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret is empty")
	}
	if cookieName == "" {
		cookieName = common.DefaultSessionCookieName
	}
	b := &SessionBinder{
		secret:     append([]byte(nil), secret...),
		cookieName: cookieName,
		validity:   validity,
		now:        time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// CookieName is the name of the session cookie.
func (b *SessionBinder) CookieName() string {
	return b.cookieName
}

// Issue returns a signed session token naming email.
func (b *SessionBinder) Issue(email string) (string, error) {
	return GenerateToken(email, b.secret, b.now(), b.validity)
}

// Resolve returns the email named by token or common.ErrNotAuthenticated.
func (b *SessionBinder) Resolve(token string) (string, error) {
	if token == "" {
		return "", common.ErrNotAuthenticated
	}
	return GetUserEmailFromToken(token, b.secret, b.now())
}

// SetCookie issues a session for email and writes it to w.
func (b *SessionBinder) SetCookie(w http.ResponseWriter, email string) error {
	token, err := b.Issue(email)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     b.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(b.validity.Seconds()),
		Expires:  b.now().Add(b.validity),
		HttpOnly: true,
		Secure:   b.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FromRequest resolves the session cookie of r. A missing cookie is
// common.ErrNotAuthenticated like any other bad session.
func (b *SessionBinder) FromRequest(r *http.Request) (string, error) {
	c, err := r.Cookie(b.cookieName)
	if err != nil {
		return "", common.ErrNotAuthenticated
	}
	return b.Resolve(c.Value)
}

// ClearCookie tells the client to drop its session cookie.
func (b *SessionBinder) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     b.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   b.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
