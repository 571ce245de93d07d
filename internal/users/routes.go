package users

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the account endpoints on an already-authenticated
// subrouter.
func RegisterRoutes(r *mux.Router, h *Handler) {
	s := r.PathPrefix("/users").Subrouter()
	s.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	s.HandleFunc("/company", h.Company).Methods(http.MethodGet)
	s.HandleFunc("/invite", h.Invite).Methods(http.MethodPost)
	s.HandleFunc("", h.List).Methods(http.MethodGet)
}
