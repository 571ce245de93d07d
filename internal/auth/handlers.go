package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"ampflux/internal/logs"
	"ampflux/internal/models"
	"ampflux/internal/notify"
	"ampflux/internal/repo"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type Handler struct {
	Accounts *repo.AccountStore
	Tokens   *TokenService
	Cookies  CookieOptions
	Mailer   notify.Mailer
}

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	IsCompany   bool   `json:"is_company"`
	CompanyName string `json:"company_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// Register creates the account and its company tenant.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case len(req.Name) < 2:
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "name must be at least 2 characters", nil)
		return
	case !emailRe.MatchString(req.Email):
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "invalid email address", nil)
		return
	case len(req.Password) < 8:
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "password must be at least 8 characters", nil)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not hash password", nil)
		return
	}

	companyName := ""
	if req.IsCompany {
		companyName = req.CompanyName
	}
	acc, err := h.Accounts.Register(r.Context(), repo.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    hash,
		CompanyName: companyName,
	})
	if errors.Is(err, repo.ErrEmailTaken) {
		models.WriteProblem(w, http.StatusBadRequest, "Conflict", "Email already registered", nil)
		return
	}
	if err != nil {
		logs.Logger.Errorf("register failed: email=%s err=%v", req.Email, err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "registration failed", nil)
		return
	}

	notify.Welcome(h.Mailer, acc.Email, acc.Name)
	models.WriteJSON(w, http.StatusCreated, acc)
}

// Login verifies credentials and sets both session cookies.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	acc, err := h.Accounts.FindByEmail(r.Context(), req.Email)
	// Same response for unknown email and bad password.
	if err != nil || !VerifyPassword(req.Password, acc.PasswordHash) {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials", nil)
		return
	}

	sub := strconv.FormatUint(uint64(acc.ID), 10)
	access, err := h.Tokens.Issue(sub, KindAccess, h.Cookies.AccessTTL)
	if err == nil {
		var refresh string
		refresh, err = h.Tokens.Issue(sub, KindRefresh, h.Cookies.RefreshTTL)
		if err == nil {
			SetSessionCookies(w, h.Cookies, access, refresh)
			models.WriteJSON(w, http.StatusOK, tokenResponse{
				AccessToken:  access,
				RefreshToken: refresh,
				TokenType:    "bearer",
			})
			return
		}
	}
	logs.Logger.Errorf("token issue failed: account=%d err=%v", acc.ID, err)
	models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not issue tokens", nil)
}

// Refresh exchanges a valid refresh cookie for a new access cookie. The
// refresh token is not rotated.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		unauthorized(w)
		return
	}
	claims, err := h.Tokens.Verify(c.Value, KindRefresh)
	if err != nil {
		unauthorized(w)
		return
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		unauthorized(w)
		return
	}
	if _, err := h.Accounts.GetAccount(r.Context(), uint(id)); err != nil {
		unauthorized(w)
		return
	}

	access, err := h.Tokens.Issue(claims.Subject, KindAccess, h.Cookies.AccessTTL)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not issue token", nil)
		return
	}
	SetAccessCookie(w, h.Cookies, access)
	models.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer"})
}

// Logout revokes whatever tokens the caller presented and clears both
// cookies. Calling it without cookies is fine.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			h.Tokens.Revoke(c.Value)
		}
	}
	ClearSessionCookies(w, h.Cookies)
	models.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
