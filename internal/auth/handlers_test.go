package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ampflux/internal/models"
	"ampflux/internal/notify"
	"ampflux/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	d, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(
		&models.Company{}, &models.License{}, &models.Account{},
	))
	return d
}

func newTestRouter(t *testing.T) (*mux.Router, *repo.AccountStore, *TokenService) {
	t.Helper()
	db := newTestDB(t)
	accounts := repo.NewAccountStore(db)
	tokens, err := NewTokenService("unit-test-secret", NewMemRevocationSet())
	require.NoError(t, err)

	h := &Handler{
		Accounts: accounts,
		Tokens:   tokens,
		Cookies:  CookieOptions{AccessTTL: time.Minute, RefreshTTL: time.Hour},
		Mailer:   notify.New(notify.SMTPConfig{}),
	}
	r := mux.NewRouter()
	RegisterRoutes(r, h)
	return r, accounts, tokens
}

func doJSON(r *mux.Router, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerAlice(t *testing.T, r *mux.Router) {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"password123"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func cookieByName(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterCreatesTenant(t *testing.T) {
	r, accounts, _ := newTestRouter(t)
	registerAlice(t, r)

	acc, err := accounts.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCompanyAdmin, acc.Role)
	assert.NotZero(t, acc.CompanyID)
	assert.NotEqual(t, "password123", acc.PasswordHash)

	full, err := accounts.GetWithCompany(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice's Company", full.Company.Name)

	lics, err := accounts.CompanyLicenses(context.Background(), acc.CompanyID)
	require.NoError(t, err)
	require.Len(t, lics, 1)
	assert.Equal(t, models.LicenseTrial, lics[0].Status)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	r, accounts, _ := newTestRouter(t)
	registerAlice(t, r)

	w := doJSON(r, http.MethodPost, "/auth/register",
		`{"name":"Alice Again","email":"alice@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email already registered")

	// the failed attempt must not have created a second tenant
	acc, err := accounts.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	all, err := accounts.ListCompanyAccounts(context.Background(), acc.CompanyID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegisterValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cases := []struct {
		name string
		body string
	}{
		{"short name", `{"name":"A","email":"a@example.com","password":"password123"}`},
		{"bad email", `{"name":"Alice","email":"not-an-email","password":"password123"}`},
		{"short password", `{"name":"Alice","email":"a@example.com","password":"short"}`},
		{"bad json", `{"name":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/auth/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLoginSetsSessionCookies(t *testing.T) {
	r, accounts, tokens := newTestRouter(t)
	registerAlice(t, r)

	w := doJSON(r, http.MethodPost, "/auth/login",
		`{"email":"alice@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := w.Result()
	access := cookieByName(res, AccessCookie)
	refresh := cookieByName(res, RefreshCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)

	claims, err := tokens.Verify(access.Value, KindAccess)
	require.NoError(t, err)
	acc, err := accounts.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatUint(uint64(acc.ID), 10), claims.Subject)

	_, err = tokens.Verify(refresh.Value, KindRefresh)
	assert.NoError(t, err)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r, _, _ := newTestRouter(t)
	registerAlice(t, r)

	wrongPass := doJSON(r, http.MethodPost, "/auth/login",
		`{"email":"alice@example.com","password":"not-the-password"}`)
	unknown := doJSON(r, http.MethodPost, "/auth/login",
		`{"email":"nobody@example.com","password":"password123"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	// identical bodies: the response must not reveal which check failed
	assert.Equal(t, wrongPass.Body.String(), unknown.Body.String())
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	r, _, tokens := newTestRouter(t)
	registerAlice(t, r)

	login := doJSON(r, http.MethodPost, "/auth/login",
		`{"email":"alice@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, login.Code)
	refresh := cookieByName(login.Result(), RefreshCookie)
	require.NotNil(t, refresh)

	w := doJSON(r, http.MethodPost, "/auth/refresh", "", refresh)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	access := cookieByName(w.Result(), AccessCookie)
	require.NotNil(t, access)
	_, err := tokens.Verify(access.Value, KindAccess)
	assert.NoError(t, err)
	// refresh must not rotate the refresh cookie
	assert.Nil(t, cookieByName(w.Result(), RefreshCookie))
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	r, _, _ := newTestRouter(t)
	registerAlice(t, r)

	login := doJSON(r, http.MethodPost, "/auth/login",
		`{"email":"alice@example.com","password":"password123"}`)
	access := cookieByName(login.Result(), AccessCookie)
	require.NotNil(t, access)

	// an access token presented in the refresh cookie slot must not work
	w := doJSON(r, http.MethodPost, "/auth/refresh", "",
		&http.Cookie{Name: RefreshCookie, Value: access.Value})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(r, http.MethodPost, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesAndClears(t *testing.T) {
	r, _, tokens := newTestRouter(t)
	registerAlice(t, r)

	login := doJSON(r, http.MethodPost, "/auth/login",
		`{"email":"alice@example.com","password":"password123"}`)
	res := login.Result()
	access := cookieByName(res, AccessCookie)
	refresh := cookieByName(res, RefreshCookie)

	w := doJSON(r, http.MethodPost, "/auth/logout", "", access, refresh)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := tokens.Verify(access.Value, KindAccess)
	assert.ErrorIs(t, err, ErrRevokedToken)
	_, err = tokens.Verify(refresh.Value, KindRefresh)
	assert.ErrorIs(t, err, ErrRevokedToken)

	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := cookieByName(w.Result(), name)
		require.NotNil(t, c)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestLogoutWithoutCookiesIsIdempotent(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(r, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
