package auth

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"ampflux/internal/models"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

type accountKey struct{}

// AccountSource loads the account behind a verified token subject.
type AccountSource interface {
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
}

// CookieOptions controls the session cookie attributes. Secure is off in
// development, SameSite stays lax either way.
type CookieOptions struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SessionMiddleware resolves the caller's identity from the access-token
// cookie on every request and fails closed. All failures produce the same
// opaque 401 so callers cannot probe which check tripped.
type SessionMiddleware struct {
	Tokens   *TokenService
	Accounts AccountSource
}

func (m *SessionMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(AccessCookie)
		if err != nil || c.Value == "" {
			unauthorized(w)
			return
		}
		claims, err := m.Tokens.Verify(c.Value, KindAccess)
		if err != nil {
			unauthorized(w)
			return
		}
		id, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			unauthorized(w)
			return
		}
		acc, err := m.Accounts.GetAccount(r.Context(), uint(id))
		if err != nil || acc == nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
	})
}

func unauthorized(w http.ResponseWriter) {
	models.WriteProblem(w, http.StatusUnauthorized,
		"Unauthorized", "could not validate credentials", nil)
}

func WithAccount(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, acc)
}

// AccountFromContext returns the authenticated account attached by Require.
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	acc, ok := ctx.Value(accountKey{}).(*models.Account)
	return acc, ok
}

// SetSessionCookies writes both token cookies with their respective TTLs.
func SetSessionCookies(w http.ResponseWriter, opts CookieOptions, access, refresh string) {
	http.SetCookie(w, sessionCookie(AccessCookie, access, opts.Secure, opts.AccessTTL))
	http.SetCookie(w, sessionCookie(RefreshCookie, refresh, opts.Secure, opts.RefreshTTL))
}

// SetAccessCookie rewrites only the access cookie (used by refresh; the
// refresh token itself is not rotated).
func SetAccessCookie(w http.ResponseWriter, opts CookieOptions, access string) {
	http.SetCookie(w, sessionCookie(AccessCookie, access, opts.Secure, opts.AccessTTL))
}

// ClearSessionCookies expires both cookies. Safe to call with none present.
func ClearSessionCookies(w http.ResponseWriter, opts CookieOptions) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := sessionCookie(name, "", opts.Secure, 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func sessionCookie(name, value string, secure bool, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.Expires = time.Now().Add(ttl)
	}
	return c
}
