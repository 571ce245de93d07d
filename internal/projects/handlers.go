package projects

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"ampflux/internal/auth"
	"ampflux/internal/authz"
	"ampflux/internal/models"
	"ampflux/internal/notify"
	"ampflux/internal/repo"
)

type Handler struct {
	Projects *repo.ProjectStore
	Accounts *repo.AccountStore
	Authz    *authz.Resolver
	Audit    *repo.AuditStore
	Mailer   notify.Mailer
}

type createRequest struct {
	Name string `json:"name"`
}

type memberRequest struct {
	AccountID uint               `json:"account_id"`
	Role      models.ProjectRole `json:"role"`
}

type shareRequest struct {
	Email string             `json:"email"`
	Role  models.ProjectRole `json:"role"`
}

// load fetches the project and resolves the caller's permissions. A missing
// project and an inaccessible one both come back as 404 so existence is
// never leaked; any viewable project passes through.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Account, *models.Project, authz.Decision, bool) {
	acc, _ := auth.AccountFromContext(r.Context())
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "project not found", nil)
		return nil, nil, authz.Decision{}, false
	}
	project, err := h.Projects.Get(r.Context(), uint(id))
	if errors.Is(err, repo.ErrNotFound) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "project not found", nil)
		return nil, nil, authz.Decision{}, false
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load project", nil)
		return nil, nil, authz.Decision{}, false
	}
	d, err := h.Authz.Resolve(r.Context(), acc, project)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "permission check failed", nil)
		return nil, nil, authz.Decision{}, false
	}
	if !d.CanView {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "project not found", nil)
		return nil, nil, authz.Decision{}, false
	}
	return acc, project, d, true
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) < 3 {
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "project name must be at least 3 characters", nil)
		return
	}
	p, err := h.Projects.Create(r.Context(), req.Name, acc)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not create project", nil)
		return
	}
	h.Audit.Append(r.Context(), acc.ID, p.ID, "project.create")
	models.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	out, err := h.Projects.ListForAccount(r.Context(), acc)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not list projects", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	_, project, _, ok := h.load(w, r)
	if !ok {
		return
	}
	models.WriteJSON(w, http.StatusOK, project)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	acc, project, _, ok := h.load(w, r)
	if !ok {
		return
	}
	if !authz.CanManage(acc, project) {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden",
			"only the project owner or a company_admin may delete a project", nil)
		return
	}
	if err := h.Projects.Delete(r.Context(), project.ID); err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not delete project", nil)
		return
	}
	h.Audit.Append(r.Context(), acc.ID, project.ID, "project.delete")
	models.WriteJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
}

// Permissions reports the caller's effective grant on the project.
func (h *Handler) Permissions(w http.ResponseWriter, r *http.Request) {
	acc, project, d, ok := h.load(w, r)
	if !ok {
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{
		"can_view":   d.CanView,
		"can_edit":   d.CanEdit,
		"can_share":  authz.CanManage(acc, project),
		"can_delete": authz.CanManage(acc, project),
		"role":       d.Role,
		"is_owner":   acc.ID == project.OwnerID,
	})
}

// -------- membership --------

func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	_, project, _, ok := h.load(w, r)
	if !ok {
		return
	}
	out, err := h.Projects.Members(r.Context(), project.ID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not list members", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	acc, project, _, ok := h.load(w, r)
	if !ok {
		return
	}
	if !authz.CanManage(acc, project) {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden",
			"only the project owner or a company_admin may add members", nil)
		return
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", nil)
		return
	}
	if !req.Role.Valid() {
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "role must be viewer or editor", nil)
		return
	}
	// membership rows are the in-tenant mechanism; the target must belong
	// to the project's company
	target, err := h.Accounts.GetAccount(r.Context(), req.AccountID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && target.CompanyID != project.CompanyID) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "account not found in your company", nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "lookup failed", nil)
		return
	}

	m, err := h.Projects.AddMember(r.Context(), project.ID, target.ID, req.Role)
	if errors.Is(err, repo.ErrMemberExists) {
		models.WriteProblem(w, http.StatusBadRequest, "Conflict", err.Error(), nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not add member", nil)
		return
	}
	h.Audit.Append(r.Context(), acc.ID, project.ID, "member.add")
	models.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	acc, project, _, ok := h.load(w, r)
	if !ok {
		return
	}
	if !authz.CanManage(acc, project) {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden",
			"only the project owner or a company_admin may remove members", nil)
		return
	}
	targetID, err := strconv.ParseUint(mux.Vars(r)["account_id"], 10, 64)
	if err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "member not found", nil)
		return
	}
	err = h.Projects.RemoveMember(r.Context(), project.ID, uint(targetID))
	switch {
	case errors.Is(err, repo.ErrCannotRemoveOwner):
		models.WriteProblem(w, http.StatusBadRequest, "Conflict", err.Error(), nil)
		return
	case errors.Is(err, repo.ErrNotFound):
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "member not found", nil)
		return
	case err != nil:
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not remove member", nil)
		return
	}
	h.Audit.Append(r.Context(), acc.ID, project.ID, "member.remove")
	models.WriteJSON(w, http.StatusOK, map[string]string{"message": "member removed"})
}

// -------- sharing --------

func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	acc, project, _, ok := h.load(w, r)
	if !ok {
		return
	}
	if !authz.CanManage(acc, project) {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden",
			"only the project owner or a company_admin may share a project", nil)
		return
	}
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "email is required", nil)
		return
	}
	if !req.Role.Valid() {
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "role must be viewer or editor", nil)
		return
	}

	share, err := h.Projects.CreateShare(r.Context(), project.ID, acc.ID, req.Email, req.Role)
	if errors.Is(err, repo.ErrDuplicateShare) {
		models.WriteProblem(w, http.StatusBadRequest, "Conflict", err.Error(), nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not share project", nil)
		return
	}
	h.Audit.Append(r.Context(), acc.ID, project.ID, "share.create")
	notify.ShareInvite(h.Mailer, req.Email, project.Name, acc.Name)
	models.WriteJSON(w, http.StatusCreated, share)
}

func (h *Handler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	out, err := h.Projects.SharesForEmail(r.Context(), acc.Email)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not list shares", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}

// AcceptShare materializes a pending invitation as membership. No prior
// project access is required; the share itself is the grant.
func (h *Handler) AcceptShare(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "share invitation not found", nil)
		return
	}
	share, err := h.Projects.AcceptShare(r.Context(), uint(id), acc)
	if errors.Is(err, repo.ErrShareNotFound) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "share invitation not found", nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not accept share", nil)
		return
	}
	h.Audit.Append(r.Context(), acc.ID, uint(id), "share.accept")
	models.WriteJSON(w, http.StatusOK, share)
}

func (h *Handler) RejectShare(w http.ResponseWriter, r *http.Request) {
	acc, _ := auth.AccountFromContext(r.Context())
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "share invitation not found", nil)
		return
	}
	err = h.Projects.RejectShare(r.Context(), uint(id), acc)
	if errors.Is(err, repo.ErrShareNotFound) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "share invitation not found", nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not reject share", nil)
		return
	}
	h.Audit.Append(r.Context(), acc.ID, uint(id), "share.reject")
	models.WriteJSON(w, http.StatusOK, map[string]string{"message": "share rejected"})
}

// AuditTrail returns the project's action history, newest first. Restricted
// to accounts that could also alter the project's permissions.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	acc, project, _, ok := h.load(w, r)
	if !ok {
		return
	}
	if !authz.CanManage(acc, project) {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden",
			"only the project owner or a company_admin may read the audit trail", nil)
		return
	}
	out, err := h.Audit.ListForProject(r.Context(), project.ID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load audit trail", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}
