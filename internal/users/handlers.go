package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"ampflux/internal/auth"
	"ampflux/internal/models"
	"ampflux/internal/notify"
	"ampflux/internal/repo"
)

type Handler struct {
	Accounts *repo.AccountStore
	Mailer   notify.Mailer
}

// Me returns the caller's account with its company preloaded.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	full, err := h.Accounts.GetWithCompany(r.Context(), acc.ID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load account", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, full)
}

// List returns the caller's company roster.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	out, err := h.Accounts.ListCompanyAccounts(r.Context(), acc.CompanyID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not list accounts", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}

// Company returns the tenant and its licenses.
func (h *Handler) Company(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	company, err := h.Accounts.GetCompany(r.Context(), acc.CompanyID)
	if err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "company not found", nil)
		return
	}
	licenses, err := h.Accounts.CompanyLicenses(r.Context(), acc.CompanyID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load licenses", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{
		"company":  company,
		"licenses": licenses,
	})
}

type inviteRequest struct {
	Email string `json:"email"`
}

// Invite sends a join invitation; admin only. Registration stays
// self-service, so this only checks for an existing account and mails the
// address.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	if acc.Role != models.RoleCompanyAdmin {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "company_admin role required", nil)
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "email is required", nil)
		return
	}

	if _, err := h.Accounts.FindByEmail(r.Context(), email); err == nil {
		models.WriteProblem(w, http.StatusBadRequest, "Conflict", "account already exists", nil)
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "lookup failed", nil)
		return
	}

	company, err := h.Accounts.GetCompany(r.Context(), acc.CompanyID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load company", nil)
		return
	}
	notify.AccountInvite(h.Mailer, email, company.Name)
	models.WriteJSON(w, http.StatusOK, map[string]string{"message": "invite sent to " + email})
}
