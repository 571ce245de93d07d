package projects

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the project endpoints on an already-authenticated
// subrouter. The shared/with-me listing is registered before the {id}
// routes so it cannot be shadowed.
func RegisterRoutes(r *mux.Router, h *Handler) {
	s := r.PathPrefix("/projects").Subrouter()

	s.HandleFunc("/shared/with-me", h.SharedWithMe).Methods(http.MethodGet)

	s.HandleFunc("", h.Create).Methods(http.MethodPost)
	s.HandleFunc("", h.List).Methods(http.MethodGet)
	s.HandleFunc("/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	s.HandleFunc("/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	s.HandleFunc("/{id:[0-9]+}/permissions", h.Permissions).Methods(http.MethodGet)
	s.HandleFunc("/{id:[0-9]+}/audit", h.AuditTrail).Methods(http.MethodGet)

	s.HandleFunc("/{id:[0-9]+}/members", h.Members).Methods(http.MethodGet)
	s.HandleFunc("/{id:[0-9]+}/members", h.AddMember).Methods(http.MethodPost)
	s.HandleFunc("/{id:[0-9]+}/members/{account_id:[0-9]+}", h.RemoveMember).Methods(http.MethodDelete)

	s.HandleFunc("/{id:[0-9]+}/share", h.Share).Methods(http.MethodPost)
	s.HandleFunc("/{id:[0-9]+}/accept-share", h.AcceptShare).Methods(http.MethodPost)
	s.HandleFunc("/{id:[0-9]+}/reject-share", h.RejectShare).Methods(http.MethodPost)
}
